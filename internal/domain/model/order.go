package model

import "time"

// Restaurant carries display information joined onto an order.
type Restaurant struct {
	ID    string
	Name  string
	Phone string
}

// OrderItem is a single dish line of an order.
type OrderItem struct {
	DishID   string
	Name     string
	Quantity int
	Price    float64
}

// Order describes a customer order placed at a restaurant table.
type Order struct {
	ID               string
	RestaurantID     string
	Restaurant       *Restaurant
	CustomerName     string
	CustomerPhone    string
	TableNumber      string
	Items            []OrderItem
	TotalAmount      float64
	PaymentStatus    PaymentStatus
	PaymentSessionID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Overlay returns update with descriptive fields that the update did not carry
// filled in from o. Realtime payloads contain the bare row, without joins.
func (o Order) Overlay(update Order) Order {
	merged := update
	if merged.ID == "" {
		merged.ID = o.ID
	}
	if merged.RestaurantID == "" {
		merged.RestaurantID = o.RestaurantID
	}
	if merged.Restaurant == nil {
		merged.Restaurant = o.Restaurant
	}
	if merged.CustomerName == "" {
		merged.CustomerName = o.CustomerName
	}
	if merged.CustomerPhone == "" {
		merged.CustomerPhone = o.CustomerPhone
	}
	if merged.TableNumber == "" {
		merged.TableNumber = o.TableNumber
	}
	if len(merged.Items) == 0 {
		merged.Items = o.Items
	}
	if merged.TotalAmount == 0 {
		merged.TotalAmount = o.TotalAmount
	}
	if merged.PaymentStatus == "" {
		merged.PaymentStatus = o.PaymentStatus
	}
	if merged.PaymentSessionID == "" {
		merged.PaymentSessionID = o.PaymentSessionID
	}
	if merged.CreatedAt.IsZero() {
		merged.CreatedAt = o.CreatedAt
	}
	if merged.UpdatedAt.IsZero() {
		merged.UpdatedAt = o.UpdatedAt
	}
	return merged
}
