package test

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/polkiloo/servenow/internal/domain/model"
)

var dishes = []string{"Masala Dosa", "Paneer Tikka", "Veg Biryani", "Filter Coffee", "Gulab Jamun"}

// RandomOrderID returns a fresh order identifier.
func RandomOrderID() string {
	return uuid.NewString()
}

// RandomOrder builds a fully populated order with the given payment status.
func RandomOrder(status model.PaymentStatus) model.Order {
	restaurantID := uuid.NewString()
	items := make([]model.OrderItem, 1+rand.IntN(3))
	var total float64
	for i := range items {
		items[i] = model.OrderItem{
			Name:     dishes[rand.IntN(len(dishes))],
			Quantity: 1 + rand.IntN(3),
			Price:    float64(50 + rand.IntN(400)),
		}
		total += items[i].Price * float64(items[i].Quantity)
	}
	now := time.Now().UTC().Truncate(time.Second)
	return model.Order{
		ID:           RandomOrderID(),
		RestaurantID: restaurantID,
		Restaurant: &model.Restaurant{
			ID:    restaurantID,
			Name:  "Spice Route",
			Phone: fmt.Sprintf("+91 98%08d", rand.IntN(100_000_000)),
		},
		CustomerName:  "Asha",
		CustomerPhone: fmt.Sprintf("+91 99%08d", rand.IntN(100_000_000)),
		TableNumber:   fmt.Sprintf("T%d", 1+rand.IntN(40)),
		Items:         items,
		TotalAmount:   total,
		PaymentStatus: status,
		CreatedAt:     now.Add(-time.Minute),
		UpdatedAt:     now,
	}
}
