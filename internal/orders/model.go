// Package orders exposes order status and tracking for customer support.
package orders

import (
	"time"
)

type Status string

const (
	StatusPending        Status = "pending"
	StatusConfirmed      Status = "confirmed"
	StatusProcessing     Status = "processing"
	StatusShipped        Status = "shipped"
	StatusOutForDelivery Status = "out_for_delivery"
	StatusDelivered      Status = "delivered"
	StatusCancelled      Status = "cancelled"
	StatusReturned       Status = "returned"
	StatusRefunded       Status = "refunded"
)

var statusDescriptions = map[Status]string{
	StatusPending:        "Your order is being processed and will be confirmed shortly.",
	StatusConfirmed:      "Your order has been confirmed! We're preparing it for shipment.",
	StatusProcessing:     "Your order is being packed and will be shipped soon.",
	StatusShipped:        "Great news! Your order has been shipped and is on its way!",
	StatusOutForDelivery: "Your order is out for delivery today!",
	StatusDelivered:      "Your order has been delivered. Enjoy!",
	StatusCancelled:      "This order has been cancelled.",
	StatusReturned:       "This order has been returned.",
	StatusRefunded:       "This order has been refunded to your original payment method.",
}

const unknownStatusDescription = "Status unknown. Please contact support."

// Description returns the customer-facing sentence for a status.
func (s Status) Description() string {
	if d, ok := statusDescriptions[s]; ok {
		return d
	}
	return unknownStatusDescription
}

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	_, ok := statusDescriptions[s]
	return ok
}

type Item struct {
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	TotalPrice  float64 `json:"total_price"`
	ImageURL    string  `json:"image_url,omitempty"`
}

type TrackingInfo struct {
	Carrier           string     `json:"carrier"`
	TrackingNumber    string     `json:"tracking_number"`
	TrackingURL       string     `json:"tracking_url,omitempty"`
	EstimatedDelivery *time.Time `json:"estimated_delivery,omitempty"`
	LastUpdate        string     `json:"last_update,omitempty"`
	CurrentLocation   string     `json:"current_location,omitempty"`
}

// Order is the stored order record.
type Order struct {
	OrderID       string        `json:"order_id"`
	CustomerID    string        `json:"customer_id"`
	Status        Status        `json:"status"`
	Items         []Item        `json:"items"`
	Subtotal      float64       `json:"subtotal"`
	ShippingCost  float64       `json:"shipping_cost"`
	Tax           float64       `json:"tax"`
	Total         float64       `json:"total"`
	PaymentMethod string        `json:"payment_method,omitempty"`
	PaymentStatus string        `json:"payment_status,omitempty"`
	Tracking      *TrackingInfo `json:"tracking,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     *time.Time    `json:"updated_at,omitempty"`
	ShippedAt     *time.Time    `json:"shipped_at,omitempty"`
	DeliveredAt   *time.Time    `json:"delivered_at,omitempty"`
}

type TimelineEvent struct {
	Status      string    `json:"status"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description"`
}

// View is an order with the derived fields customers ask about.
type View struct {
	OrderID           string          `json:"order_id"`
	Status            Status          `json:"status"`
	StatusDescription string          `json:"status_description"`
	ItemsCount        int             `json:"items_count"`
	Items             []Item          `json:"items"`
	Total             float64         `json:"total"`
	Tracking          *TrackingInfo   `json:"tracking,omitempty"`
	Timeline          []TimelineEvent `json:"timeline"`
	EstimatedDelivery string          `json:"estimated_delivery,omitempty"`
	CanCancel         bool            `json:"can_cancel"`
	CanReturn         bool            `json:"can_return"`
	CreatedAt         time.Time       `json:"created_at"`
	ShippedAt         *time.Time      `json:"shipped_at,omitempty"`
	DeliveredAt       *time.Time      `json:"delivered_at,omitempty"`
}

const deliveryDateLayout = "January 02, 2006"

const (
	shippedTransitDays = 3
	createdTransitDays = 6
)

// BuildView derives the tracking view; now stamps the out-for-delivery step.
func BuildView(o Order, now time.Time) View {
	return View{
		OrderID:           o.OrderID,
		Status:            o.Status,
		StatusDescription: o.Status.Description(),
		ItemsCount:        len(o.Items),
		Items:             o.Items,
		Total:             o.Total,
		Tracking:          o.Tracking,
		Timeline:          buildTimeline(o, now),
		EstimatedDelivery: estimatedDelivery(o),
		CanCancel:         o.Status == StatusPending || o.Status == StatusConfirmed,
		CanReturn:         o.Status == StatusDelivered,
		CreatedAt:         o.CreatedAt,
		ShippedAt:         o.ShippedAt,
		DeliveredAt:       o.DeliveredAt,
	}
}

func buildTimeline(o Order, now time.Time) []TimelineEvent {
	var events []TimelineEvent
	if !o.CreatedAt.IsZero() {
		events = append(events, TimelineEvent{Status: "Order Placed", Timestamp: o.CreatedAt, Description: "Your order was successfully placed"})
		if o.Status != StatusPending {
			events = append(events, TimelineEvent{Status: "Order Confirmed", Timestamp: o.CreatedAt, Description: "Order confirmed and payment verified"})
		}
	}
	if o.ShippedAt != nil {
		events = append(events, TimelineEvent{Status: "Shipped", Timestamp: *o.ShippedAt, Description: "Your order has been handed to the courier"})
	}
	if o.Status == StatusOutForDelivery {
		events = append(events, TimelineEvent{Status: "Out for Delivery", Timestamp: now, Description: "Package is with the delivery agent"})
	}
	if o.DeliveredAt != nil {
		events = append(events, TimelineEvent{Status: "Delivered", Timestamp: *o.DeliveredAt, Description: "Package was delivered successfully"})
	}
	return events
}

// estimatedDelivery prefers the carrier estimate, then a fixed transit window
// from shipment or creation. Finished orders have none.
func estimatedDelivery(o Order) string {
	switch o.Status {
	case StatusDelivered, StatusCancelled, StatusReturned, StatusRefunded:
		return ""
	}
	if o.Tracking != nil && o.Tracking.EstimatedDelivery != nil {
		return o.Tracking.EstimatedDelivery.Format(deliveryDateLayout)
	}
	if o.ShippedAt != nil {
		return o.ShippedAt.AddDate(0, 0, shippedTransitDays).Format(deliveryDateLayout)
	}
	if !o.CreatedAt.IsZero() {
		return o.CreatedAt.AddDate(0, 0, createdTransitDays).Format(deliveryDateLayout)
	}
	return ""
}
