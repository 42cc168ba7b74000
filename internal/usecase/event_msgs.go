package usecase

import "time"

// Published on RabbitMQ after a reservation commits.
type CreatedMsg struct {
	OrderID   int64     `json:"orderId"`
	ProductID int64     `json:"productId"`
	Quantity  int       `json:"quantity"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
}

// Published on RabbitMQ after a transition, and consumed from Kafka when the
// fulfillment side reports progress (e.g. "SHIPPED").
type OrderStatusChangedMsg struct {
	OrderID int64  `json:"orderId"`
	From    string `json:"from,omitempty"`
	Status  string `json:"status"`
}
