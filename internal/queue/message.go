package queue

import "time"

// OrderJob is the wire shape of an "order created" event. It carries a
// reference, not a copy of the order, so consumers always read fresh
// state from the store.
type OrderJob struct {
	EventID string `json:"event_id"`
	OrderID int64  `json:"order_id"`
}

// DeadLetter wraps a job that exhausted its processing attempts.
type DeadLetter struct {
	EventID  string    `json:"event_id"`
	OrderID  int64     `json:"order_id"`
	Attempts int       `json:"attempts"`
	Reason   string    `json:"reason"`
	FailedAt time.Time `json:"failed_at"`
}
