package domain

import "time"

// DefaultInventoryImage подставляется, если клиент не прислал картинку.
const DefaultInventoryImage = "https://images.unsplash.com/photo-1580169980114-ccd0babfa840?ixlib=rb-1.2.1&q=80&fm=jpg&crop=entropy&cs=tinysrgb&w=800&h=600&fit=crop"

type InventoryItem struct {
	ID         string    `json:"_id"`
	UserID     string    `json:"user"`
	Name       string    `json:"name"`
	ItemNumber string    `json:"itemNumber"`
	UnitPrice  float64   `json:"unitPrice"`
	Image      string    `json:"image"`
	CreatedAt  time.Time `json:"created_at"`
}

type InventoryItemRequest struct {
	Name       string  `json:"name" validate:"required,max=200"`
	ItemNumber string  `json:"itemNumber" validate:"required,max=100"`
	UnitPrice  float64 `json:"unitPrice" validate:"gte=0"`
	Image      string  `json:"image,omitempty" validate:"omitempty,url"`
}
