package domain

// Notification event types recorded as outbox intents.
const (
	EventOrderCreated     = "order.created"
	EventOrderCancelled   = "order.cancelled"
	EventStatusChanged    = "order.status_changed"
	EventPaymentConfirmed = "order.payment_confirmed"
)

// Notification is a push-message intent addressed to one user. Delivery is
// at-least-once to the broker and best-effort beyond it; order mutations
// never fail or roll back because of it.
type Notification struct {
	UserID string            `json:"userId"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}
