package realtime

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/polkiloo/servenow/internal/domain/model"
)

// rowPayload is an orders row as serialized by the notify trigger.
type rowPayload struct {
	ID               string    `json:"id"`
	RestaurantID     *string   `json:"restaurant_id"`
	CustomerName     string    `json:"customer_name"`
	CustomerPhone    string    `json:"customer_phone"`
	TableNumber      string    `json:"table_number"`
	TotalAmount      float64   `json:"total_amount"`
	PaymentStatus    string    `json:"payment_status"`
	PaymentSessionID *string   `json:"payment_session_id"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// DecodeRow parses a notification payload into an order. Joined display
// fields are never present and stay zero.
func DecodeRow(payload []byte) (model.Order, error) {
	var row rowPayload
	if err := json.Unmarshal(payload, &row); err != nil {
		return model.Order{}, fmt.Errorf("decode order payload: %w", err)
	}
	if row.ID == "" {
		return model.Order{}, fmt.Errorf("decode order payload: missing id")
	}

	order := model.Order{
		ID:            row.ID,
		CustomerName:  row.CustomerName,
		CustomerPhone: row.CustomerPhone,
		TableNumber:   row.TableNumber,
		TotalAmount:   row.TotalAmount,
		PaymentStatus: model.NormalizePaymentStatus(row.PaymentStatus),
		CreatedAt:     row.CreatedAt,
		UpdatedAt:     row.UpdatedAt,
	}
	if row.RestaurantID != nil {
		order.RestaurantID = *row.RestaurantID
	}
	if row.PaymentSessionID != nil {
		order.PaymentSessionID = *row.PaymentSessionID
	}
	return order, nil
}
