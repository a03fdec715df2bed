package message

import (
	"time"

	apperrors "homly-notify/internal/errors"
)

// OrderNotificationInput is the order snapshot a trigger hands to the
// formatter after the order write has committed. Total is supplied by the
// caller and rendered as-is.
type OrderNotificationInput struct {
	ID              string          `json:"_id"`
	Items           []OrderItem     `json:"items"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	Subtotal        float64         `json:"subtotal"`
	Shipping        float64         `json:"shipping"`
	Discount        *float64        `json:"discount,omitempty"`
	Total           *float64        `json:"total"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	ScheduledAt     *time.Time      `json:"scheduledDeliveryTime,omitempty"`
	User            *UserRef        `json:"userId,omitempty"`
}

// OrderItem is one order line. Name and Unit fall back to the nested
// product reference when the line itself does not carry them.
type OrderItem struct {
	Name     string      `json:"name"`
	Unit     string      `json:"unit"`
	Quantity int         `json:"quantity"`
	Product  *ProductRef `json:"productId,omitempty"`
	Store    *StoreRef   `json:"storeId,omitempty"`
}

type ProductRef struct {
	Title string `json:"title"`
	Unit  string `json:"unit"`
}

type StoreRef struct {
	Name string `json:"name"`
}

type ShippingAddress struct {
	Name   string `json:"name"`
	Street string `json:"street"`
	City   string `json:"city"`
	Zip    string `json:"zip"`
	Mobile string `json:"mobile"`
}

type PaymentMethod struct {
	Type string `json:"type"`
}

type UserRef struct {
	Name   string `json:"name"`
	Email  string `json:"email"`
	Mobile string `json:"mobile"`
}

// ServiceRequestNotificationInput is the service request snapshot a
// trigger hands to the formatter after the request write has committed.
type ServiceRequestNotificationInput struct {
	ID      string      `json:"_id"`
	Service *ServiceRef `json:"serviceId,omitempty"`
	User    *UserRef    `json:"userId,omitempty"`
	Status  string      `json:"status"`
}

type ServiceRef struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Validate checks the fields the formatter cannot render without.
func (o *OrderNotificationInput) Validate() error {
	if o == nil {
		return apperrors.NewContractViolation("order", "order")
	}
	if o.ID == "" {
		return apperrors.NewContractViolation("order", "_id")
	}
	if o.Items == nil {
		return apperrors.NewContractViolation("order", "items")
	}
	if o.Total == nil {
		return apperrors.NewContractViolation("order", "total")
	}
	return nil
}

// Validate checks the fields the formatter cannot render without.
func (r *ServiceRequestNotificationInput) Validate() error {
	if r == nil {
		return apperrors.NewContractViolation("service_request", "service_request")
	}
	if r.ID == "" {
		return apperrors.NewContractViolation("service_request", "_id")
	}
	return nil
}
