// Package graphql: GraphQL-вариант API Orbit. Роли проверяются на уровне полей,
// личность берется только из проверенных учетных данных запроса.
package graphql

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/graphql-go/graphql"
	"github.com/xela07ax/orbit-auth/internal/api/handler"
	"github.com/xela07ax/orbit-auth/internal/api/service"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra/auth"
	"go.uber.org/zap"
)

// Ответы GraphQL-клиенту: фиксированные, без деталей
var (
	errNotAuthorized   = errors.New("Not authorized")
	errWrongPassword   = errors.New("Wrong email or password")
	errEmailExists     = errors.New("Email already exists")
	errInvalidRole     = errors.New("Invalid user role")
	errNotAvailable    = errors.New("Not available in this authentication mode")
	errInvalidRequest  = errors.New("Invalid input")
	errTooManyAttempts = errors.New("Too many attempts, try again later")
	errInternal        = errors.New("Something went wrong")
)

var (
	anyUser = []domain.Role{domain.RoleUser, domain.RoleAdmin}
	admin   = []domain.Role{domain.RoleAdmin}
)

// Deliverer раскладывает выданные учетные данные по cookie и телу ответа.
type Deliverer interface {
	Deliver(w http.ResponseWriter, msg string, s *service.Session) domain.AuthResponse
}

type Services struct {
	Auth      *service.AuthService
	Users     *service.UserService
	Inventory *service.InventoryService
	Dashboard *service.DashboardService
	Transport Deliverer
}

type resolver struct {
	svc    Services
	authn  *auth.Authenticator
	logger *zap.Logger
}

// require проверяет роль/scope вызывающего из контекста запроса.
func (r *resolver) require(ctx context.Context, roles []domain.Role, scopes ...string) (*domain.Identity, error) {
	id := auth.IdentityFrom(ctx)
	if err := r.authn.Check(id, auth.Rule{Roles: roles, Scopes: scopes}); err != nil {
		return nil, errNotAuthorized
	}
	return id, nil
}

// public переводит доменную ошибку в сообщение клиенту; неизвестные пишем в лог.
func (r *resolver) public(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		return errWrongPassword
	case errors.Is(err, domain.ErrTooManyAttempts):
		return errTooManyAttempts
	case errors.Is(err, domain.ErrConflict):
		return errEmailExists
	case errors.Is(err, domain.ErrUnauthorized), errors.Is(err, domain.ErrForbidden):
		return errNotAuthorized
	case errors.Is(err, domain.ErrNotSupported):
		return errNotAvailable
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrNotFound):
		return errInvalidRequest
	}
	r.logger.Error("graphql resolver failed", zap.String("op", op), zap.Error(err))
	return errInternal
}

// NewSchema собирает схему поверх сервисов API.
func NewSchema(svc Services, authn *auth.Authenticator, logger *zap.Logger) (graphql.Schema, error) {
	if svc.Transport == nil {
		return graphql.Schema{}, errors.New("graphql schema requires a credential transport")
	}
	r := &resolver{svc: svc, authn: authn, logger: logger.Named("graphql")}

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query:    r.query(),
		Mutation: r.mutation(),
	})
	if err != nil {
		return graphql.Schema{}, fmt.Errorf("build graphql schema: %w", err)
	}
	return schema, nil
}

func (r *resolver) query() *graphql.Object {
	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"dashboardData": &graphql.Field{
				Type: dashboardType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if _, err := r.require(p.Context, anyUser, "read:dashboard"); err != nil {
						return nil, err
					}
					data, err := r.svc.Dashboard.Data(p.Context)
					if err != nil {
						return nil, r.public("dashboardData", err)
					}
					return dashboardMap(data), nil
				},
			},
			"users": &graphql.Field{
				Type: graphql.NewList(userType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					if _, err := r.require(p.Context, admin, "read:users"); err != nil {
						return nil, err
					}
					profiles, err := r.svc.Users.List(p.Context)
					if err != nil {
						return nil, r.public("users", err)
					}
					out := make([]map[string]interface{}, 0, len(profiles))
					for _, pp := range profiles {
						out = append(out, profileMap(pp))
					}
					return out, nil
				},
			},
			"user": &graphql.Field{
				Type: userType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := r.require(p.Context, anyUser, "read:user")
					if err != nil {
						return nil, err
					}
					info, err := r.svc.Users.Profile(p.Context, id)
					if err != nil {
						return nil, r.public("user", err)
					}
					return userInfoMap(info), nil
				},
			},
			"inventoryItems": &graphql.Field{
				Type: graphql.NewList(inventoryType),
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := r.require(p.Context, admin, "read:inventory")
					if err != nil {
						return nil, err
					}
					items, err := r.svc.Inventory.List(p.Context, id)
					if err != nil {
						return nil, r.public("inventoryItems", err)
					}
					out := make([]map[string]interface{}, 0, len(items))
					for i := range items {
						out = append(out, inventoryMap(&items[i]))
					}
					return out, nil
				},
			},
			"userBio": &graphql.Field{
				Type: bioType,
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := r.require(p.Context, anyUser, "read:user")
					if err != nil {
						return nil, err
					}
					bio, err := r.svc.Users.Bio(p.Context, id)
					if err != nil {
						return nil, r.public("userBio", err)
					}
					return map[string]interface{}{"bio": bio}, nil
				},
			},
		},
	})
}

func (r *resolver) mutation() *graphql.Object {
	nonNullString := graphql.NewNonNull(graphql.String)

	return graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"login": &graphql.Field{
				Type: authResultType,
				Args: graphql.FieldConfigArgument{
					"email":    &graphql.ArgumentConfig{Type: nonNullString},
					"password": &graphql.ArgumentConfig{Type: nonNullString},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ex, ok := exchangeFrom(p.Context)
					if !ok {
						return nil, errNotAvailable
					}
					req := domain.LoginRequest{
						Email:    stringArg(p, "email"),
						Password: stringArg(p, "password"),
					}
					s, err := r.svc.Auth.Login(p.Context, req, handler.RequestMeta(ex.r))
					if err != nil {
						return nil, r.public("login", err)
					}
					return authResult(r.svc.Transport.Deliver(ex.w, "Authentication successful!", s)), nil
				},
			},
			"signup": &graphql.Field{
				Type: authResultType,
				Args: graphql.FieldConfigArgument{
					"firstName": &graphql.ArgumentConfig{Type: nonNullString},
					"lastName":  &graphql.ArgumentConfig{Type: nonNullString},
					"email":     &graphql.ArgumentConfig{Type: nonNullString},
					"password":  &graphql.ArgumentConfig{Type: nonNullString},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					ex, ok := exchangeFrom(p.Context)
					if !ok {
						return nil, errNotAvailable
					}
					req := domain.SignupRequest{
						FirstName: stringArg(p, "firstName"),
						LastName:  stringArg(p, "lastName"),
						Email:     stringArg(p, "email"),
						Password:  stringArg(p, "password"),
					}
					if err := validate.Struct(req); err != nil {
						return nil, errInvalidRequest
					}
					s, err := r.svc.Auth.Signup(p.Context, req, handler.RequestMeta(ex.r))
					if err != nil {
						return nil, r.public("signup", err)
					}
					return authResult(r.svc.Transport.Deliver(ex.w, "User created!", s)), nil
				},
			},
			"addInventoryItem": &graphql.Field{
				Type: inventoryResultType,
				Args: graphql.FieldConfigArgument{
					"name":       &graphql.ArgumentConfig{Type: nonNullString},
					"itemNumber": &graphql.ArgumentConfig{Type: nonNullString},
					"unitPrice":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"image":      &graphql.ArgumentConfig{Type: graphql.String},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := r.require(p.Context, admin, "write:inventory")
					if err != nil {
						return nil, err
					}
					price, _ := p.Args["unitPrice"].(float64)
					req := domain.InventoryItemRequest{
						Name:       stringArg(p, "name"),
						ItemNumber: stringArg(p, "itemNumber"),
						UnitPrice:  price,
						Image:      stringArg(p, "image"),
					}
					if err := validate.Struct(req); err != nil {
						return nil, errInvalidRequest
					}
					item, err := r.svc.Inventory.Create(p.Context, id, req)
					if err != nil {
						return nil, r.public("addInventoryItem", err)
					}
					return map[string]interface{}{
						"message":       "Inventory item created!",
						"inventoryItem": inventoryMap(item),
					}, nil
				},
			},
			"deleteInventoryItem": &graphql.Field{
				Type: inventoryResultType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := r.require(p.Context, admin, "delete:inventory")
					if err != nil {
						return nil, err
					}
					item, err := r.svc.Inventory.Delete(p.Context, id, stringArg(p, "id"))
					if err != nil {
						return nil, r.public("deleteInventoryItem", err)
					}
					return map[string]interface{}{
						"message":       "Inventory item deleted!",
						"inventoryItem": inventoryMap(item),
					}, nil
				},
			},
			"updateUserRole": &graphql.Field{
				Type: userUpdateResultType,
				Args: graphql.FieldConfigArgument{
					"role":   &graphql.ArgumentConfig{Type: nonNullString},
					"userId": &graphql.ArgumentConfig{Type: graphql.ID},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := r.require(p.Context, admin, "edit:user")
					if err != nil {
						return nil, err
					}
					req := domain.RoleUpdateRequest{
						Role:   domain.Role(stringArg(p, "role")),
						UserID: stringArg(p, "userId"),
					}
					if err := r.svc.Users.UpdateRole(p.Context, id, req); err != nil {
						if errors.Is(err, domain.ErrInvalidInput) {
							return nil, errInvalidRole
						}
						return nil, r.public("updateUserRole", err)
					}
					return map[string]interface{}{
						"message": "User role updated. You must log in again for the changes to take effect.",
					}, nil
				},
			},
			"updateUserBio": &graphql.Field{
				Type: bioUpdateResultType,
				Args: graphql.FieldConfigArgument{
					"bio": &graphql.ArgumentConfig{Type: nonNullString},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id, err := r.require(p.Context, anyUser, "edit:user")
					if err != nil {
						return nil, err
					}
					req := domain.BioRequest{Bio: stringArg(p, "bio")}
					if err := validate.Struct(req); err != nil {
						return nil, errInvalidRequest
					}
					bio, err := r.svc.Users.UpdateBio(p.Context, id, req.Bio)
					if err != nil {
						return nil, r.public("updateUserBio", err)
					}
					return map[string]interface{}{
						"message": "Bio updated!",
						"userBio": map[string]interface{}{"bio": bio},
					}, nil
				},
			},
		},
	})
}

func stringArg(p graphql.ResolveParams, name string) string {
	s, _ := p.Args[name].(string)
	return s
}

// authResult: тело ответа транспорта в форме GraphQL. В cookie и session режимах token = null.
func authResult(resp domain.AuthResponse) map[string]interface{} {
	var token interface{}
	if resp.Token != "" {
		token = resp.Token
	}
	return map[string]interface{}{
		"message":   resp.Message,
		"token":     token,
		"userInfo":  userInfoMap(resp.UserInfo),
		"expiresAt": strconv.FormatInt(resp.ExpiresAt, 10),
	}
}
