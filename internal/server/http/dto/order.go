package dto

import (
	"time"

	"github.com/polkiloo/servenow/internal/domain/model"
)

// Envelope error codes.
const (
	CodeOrderNotFound        = "ORDER_NOT_FOUND"
	CodeInvalidOrderID       = "INVALID_ORDER_ID"
	CodeInvalidPaymentStatus = "INVALID_PAYMENT_STATUS"
	CodePaymentStatusFinal   = "PAYMENT_STATUS_FINAL"
	CodeInvalidRequest       = "INVALID_REQUEST"
	CodeUnauthorized         = "UNAUTHORIZED"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeInternal             = "INTERNAL_ERROR"
)

// RestaurantResponse is the restaurant joined onto an order.
type RestaurantResponse struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// OrderItemResponse is one dish line.
type OrderItemResponse struct {
	DishID   string  `json:"dish_id,omitempty"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// OrderResponse is the order record exchanged over the API.
type OrderResponse struct {
	ID               string              `json:"id"`
	RestaurantID     string              `json:"restaurant_id,omitempty"`
	Restaurant       *RestaurantResponse `json:"restaurants,omitempty"`
	CustomerName     string              `json:"customer_name"`
	CustomerPhone    string              `json:"customer_phone"`
	TableNumber      string              `json:"table_number"`
	Items            []OrderItemResponse `json:"items"`
	TotalAmount      float64             `json:"total_amount"`
	PaymentStatus    string              `json:"payment_status"`
	PaymentSessionID string              `json:"payment_session_id,omitempty"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

// OrderEnvelope wraps order endpoints' responses.
type OrderEnvelope struct {
	Success bool           `json:"success"`
	Order   *OrderResponse `json:"order,omitempty"`
	Error   string         `json:"error,omitempty"`
	Code    string         `json:"code,omitempty"`
}

// UpdateStatusRequest is the PATCH /api/orders/{id} body.
type UpdateStatusRequest struct {
	PaymentStatus string `json:"payment_status"`
}

// VerifyRequest is the POST /api/verify-payment body.
type VerifyRequest struct {
	OrderID string `json:"orderId"`
}

// VerifyResponse is the POST /api/verify-payment reply.
type VerifyResponse struct {
	Success       bool           `json:"success"`
	Order         *OrderResponse `json:"order,omitempty"`
	PaymentStatus string         `json:"payment_status,omitempty"`
	Error         string         `json:"error,omitempty"`
	Code          string         `json:"code,omitempty"`
}

// FromOrder converts a domain order to its wire form.
func FromOrder(order model.Order) OrderResponse {
	resp := OrderResponse{
		ID:               order.ID,
		RestaurantID:     order.RestaurantID,
		CustomerName:     order.CustomerName,
		CustomerPhone:    order.CustomerPhone,
		TableNumber:      order.TableNumber,
		Items:            make([]OrderItemResponse, 0, len(order.Items)),
		TotalAmount:      order.TotalAmount,
		PaymentStatus:    string(order.PaymentStatus),
		PaymentSessionID: order.PaymentSessionID,
		CreatedAt:        order.CreatedAt,
		UpdatedAt:        order.UpdatedAt,
	}
	if order.Restaurant != nil {
		resp.Restaurant = &RestaurantResponse{
			ID:    order.Restaurant.ID,
			Name:  order.Restaurant.Name,
			Phone: order.Restaurant.Phone,
		}
	}
	for _, item := range order.Items {
		resp.Items = append(resp.Items, OrderItemResponse{
			DishID:   item.DishID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return resp
}

// OrderPtr converts an optional domain order.
func OrderPtr(order *model.Order) *OrderResponse {
	if order == nil {
		return nil
	}
	resp := FromOrder(*order)
	return &resp
}

// Model converts the wire form back into a domain order. Unknown statuses
// read as pending.
func (r OrderResponse) Model() model.Order {
	order := model.Order{
		ID:               r.ID,
		RestaurantID:     r.RestaurantID,
		CustomerName:     r.CustomerName,
		CustomerPhone:    r.CustomerPhone,
		TableNumber:      r.TableNumber,
		TotalAmount:      r.TotalAmount,
		PaymentStatus:    model.NormalizePaymentStatus(r.PaymentStatus),
		PaymentSessionID: r.PaymentSessionID,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if r.Restaurant != nil {
		order.Restaurant = &model.Restaurant{ID: r.Restaurant.ID, Name: r.Restaurant.Name, Phone: r.Restaurant.Phone}
	}
	for _, item := range r.Items {
		order.Items = append(order.Items, model.OrderItem{
			DishID:   item.DishID,
			Name:     item.Name,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return order
}
