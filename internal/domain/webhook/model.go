package webhook

import "time"

// EventType names the payload categories endpoints can subscribe to.
type EventType string

const (
	EventAlertCreated  EventType = "alert.created"
	EventAlertCritical EventType = "alert.critical"
	EventSyncCompleted EventType = "system.sync_completed"
)

func ValidEventType(event EventType) bool {
	switch event {
	case EventAlertCreated, EventAlertCritical, EventSyncCompleted:
		return true
	default:
		return false
	}
}

// Endpoint is a tenant-registered delivery target. Endpoints that fail too
// many times in a row are disabled until an operator re-enables them.
type Endpoint struct {
	ID                  string      `json:"id" db:"id"`
	TenantID            string      `json:"tenant_id" db:"tenant_id"`
	URL                 string      `json:"url" db:"url"`
	Secret              string      `json:"-" db:"secret"`
	Events              []EventType `json:"events" db:"-"`
	Active              bool        `json:"active" db:"active"`
	ConsecutiveFailures int         `json:"consecutive_failures" db:"consecutive_failures"`
	CreatedAt           time.Time   `json:"created_at" db:"created_at"`
}

// Subscribed reports whether the endpoint wants events of the given type.
// An endpoint with no explicit subscriptions receives everything.
func (e Endpoint) Subscribed(event EventType) bool {
	if len(e.Events) == 0 {
		return true
	}
	for _, candidate := range e.Events {
		if candidate == event {
			return true
		}
	}
	return false
}

type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusDelivered DeliveryStatus = "delivered"
	StatusFailed    DeliveryStatus = "failed"
)

// Attempt records one delivery try for the audit trail.
type Attempt struct {
	At         time.Time `json:"at"`
	StatusCode int       `json:"status_code,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Delivery tracks one event payload on its way to one endpoint. Terminal on
// Delivered, or on Failed once the attempt ceiling is exhausted; a Failed
// delivery is never retried automatically.
type Delivery struct {
	ID            string         `json:"id" db:"id"`
	EndpointID    string         `json:"endpoint_id" db:"endpoint_id"`
	TenantID      string         `json:"tenant_id" db:"tenant_id"`
	Event         EventType      `json:"event" db:"event"`
	SubjectID     int64          `json:"subject_id" db:"subject_id"`
	Payload       map[string]any `json:"payload" db:"-"`
	Status        DeliveryStatus `json:"status" db:"status"`
	AttemptCount  int            `json:"attempt_count" db:"attempt_count"`
	Attempts      []Attempt      `json:"attempts" db:"-"`
	CreatedAt     time.Time      `json:"created_at" db:"created_at"`
	LastAttemptAt time.Time      `json:"last_attempt_at,omitzero" db:"last_attempt_at"`
	NextRetryAt   time.Time      `json:"next_retry_at,omitzero" db:"next_retry_at"`
	DeliveredAt   time.Time      `json:"delivered_at,omitzero" db:"delivered_at"`
}

func (d Delivery) Terminal() bool {
	return d.Status == StatusDelivered || d.Status == StatusFailed
}
