package graphql

import (
	"github.com/go-playground/validator/v10"
	"github.com/graphql-go/graphql"
	"github.com/xela07ax/orbit-auth/internal/domain"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

var saleType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Sale",
	Fields: graphql.Fields{
		"date":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"amount": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
	},
})

var dashboardType = graphql.NewObject(graphql.ObjectConfig{
	Name: "DashboardData",
	Fields: graphql.Fields{
		"salesVolume":  &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"newCustomers": &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"refunds":      &graphql.Field{Type: graphql.NewNonNull(graphql.Int)},
		"graphData":    &graphql.Field{Type: graphql.NewList(saleType)},
	},
})

// User: email и role заполнены только для собственного профиля
var userType = graphql.NewObject(graphql.ObjectConfig{
	Name: "User",
	Fields: graphql.Fields{
		"_id":       &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"firstName": &graphql.Field{Type: graphql.String},
		"lastName":  &graphql.Field{Type: graphql.String},
		"email":     &graphql.Field{Type: graphql.String},
		"role":      &graphql.Field{Type: graphql.String},
		"avatar":    &graphql.Field{Type: graphql.String},
		"bio":       &graphql.Field{Type: graphql.String},
	},
})

var inventoryType = graphql.NewObject(graphql.ObjectConfig{
	Name: "InventoryItem",
	Fields: graphql.Fields{
		"_id":        &graphql.Field{Type: graphql.NewNonNull(graphql.ID)},
		"user":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"name":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"itemNumber": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"unitPrice":  &graphql.Field{Type: graphql.NewNonNull(graphql.Float)},
		"image":      &graphql.Field{Type: graphql.String},
	},
})

var bioType = graphql.NewObject(graphql.ObjectConfig{
	Name: "UserBio",
	Fields: graphql.Fields{
		"bio": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var authResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "AuthenticationResult",
	Fields: graphql.Fields{
		"message":   &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"userInfo":  &graphql.Field{Type: graphql.NewNonNull(userType)},
		"token":     &graphql.Field{Type: graphql.String},                     // null, если токен ушел в HttpOnly cookie
		"expiresAt": &graphql.Field{Type: graphql.NewNonNull(graphql.String)}, // unix-время строкой, Int в GraphQL 32-битный
	},
})

var inventoryResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "InventoryItemResult",
	Fields: graphql.Fields{
		"message":       &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"inventoryItem": &graphql.Field{Type: inventoryType},
	},
})

var userUpdateResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "UserUpdateResult",
	Fields: graphql.Fields{
		"message": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
	},
})

var bioUpdateResultType = graphql.NewObject(graphql.ObjectConfig{
	Name: "UserBioUpdateResult",
	Fields: graphql.Fields{
		"message": &graphql.Field{Type: graphql.NewNonNull(graphql.String)},
		"userBio": &graphql.Field{Type: graphql.NewNonNull(bioType)},
	},
})

func dashboardMap(d *domain.DashboardData) map[string]interface{} {
	sales := make([]map[string]interface{}, 0, len(d.GraphData))
	for _, s := range d.GraphData {
		sales = append(sales, map[string]interface{}{"date": s.Date, "amount": s.Amount})
	}
	return map[string]interface{}{
		"salesVolume":  d.SalesVolume,
		"newCustomers": d.NewCustomers,
		"refunds":      d.Refunds,
		"graphData":    sales,
	}
}

func userInfoMap(u *domain.UserInfo) map[string]interface{} {
	return map[string]interface{}{
		"_id":       u.ID,
		"firstName": u.FirstName,
		"lastName":  u.LastName,
		"email":     u.Email,
		"role":      string(u.Role),
		"avatar":    u.Avatar,
	}
}

func profileMap(p domain.PublicProfile) map[string]interface{} {
	return map[string]interface{}{
		"_id":       p.ID,
		"firstName": p.FirstName,
		"lastName":  p.LastName,
		"avatar":    p.Avatar,
		"bio":       p.Bio,
	}
}

func inventoryMap(i *domain.InventoryItem) map[string]interface{} {
	if i == nil {
		return nil
	}
	return map[string]interface{}{
		"_id":        i.ID,
		"user":       i.UserID,
		"name":       i.Name,
		"itemNumber": i.ItemNumber,
		"unitPrice":  i.UnitPrice,
		"image":      i.Image,
	}
}
