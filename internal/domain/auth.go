package domain

import (
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role: грубая метка прав для гейтинга эндпоинтов.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// AllowedRoles: закрытый набор ролей. Ничего другого не выпускаем и не принимаем.
var AllowedRoles = []Role{RoleUser, RoleAdmin}

// Valid проверяет принадлежность роли закрытому набору.
func (r Role) Valid() bool {
	return slices.Contains(AllowedRoles, r)
}

// Claims: полезная нагрузка access-токена.
// Scope/Permissions приходят только от внешнего IdP (oauth режим).
type Claims struct {
	Email       string   `json:"email,omitempty"`
	Role        Role     `json:"role,omitempty"`
	Scope       string   `json:"scope,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// Identity: проверенная личность вызывающего, живет в контексте одного запроса.
type Identity struct {
	ID     string   `json:"sub"`
	Email  string   `json:"email,omitempty"`
	Role   Role     `json:"role,omitempty"`
	Scopes []string `json:"scopes,omitempty"`
}

// HasScope сообщает, выдан ли scope.
func (i *Identity) HasScope(scope string) bool {
	return i != nil && slices.Contains(i.Scopes, scope)
}

// Credential: подписанный access-токен и его временные рамки.
type Credential struct {
	Token     string    `json:"token"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshRecord: серверная запись refresh-токена.
// Храним только хэш, сам токен остается в HttpOnly cookie клиента.
type RefreshRecord struct {
	TokenHash string    `json:"-"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired сообщает, истекла ли запись к моменту now.
func (r *RefreshRecord) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

// RefreshToken: "сырое" значение refresh-токена для передачи клиенту.
type RefreshToken struct {
	Value     string
	ExpiresAt time.Time
}

// Secure Token Issuing
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type SignupRequest struct {
	FirstName string `json:"firstName" validate:"required,max=100"`
	LastName  string `json:"lastName" validate:"required,max=100"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6,max=72"`
}

// AuthResponse: ответ на логин/регистрацию, форма совпадает с фронтендом Orbit.
type AuthResponse struct {
	Message   string    `json:"message"`
	Token     string    `json:"token,omitempty"`
	UserInfo  *UserInfo `json:"userInfo"`
	ExpiresAt int64     `json:"expiresAt"`
}

type RefreshResponse struct {
	Token     string `json:"token,omitempty"`
	ExpiresAt int64  `json:"expiresAt"`
}

type RoleUpdateRequest struct {
	Role   Role   `json:"role" validate:"required"`
	UserID string `json:"userId,omitempty"`
}
