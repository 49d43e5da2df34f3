package model

import "time"

// StatusChangeEvent is emitted once per state transition. Delivery is the
// notification subsystem's concern; emission never blocks a transition.
type StatusChangeEvent struct {
	TransactionID string    `json:"transaction_id"`
	FromStatus    Status    `json:"from_status"`
	ToStatus      Status    `json:"to_status"`
	ActorID       string    `json:"actor_id"`
	Timestamp     time.Time `json:"timestamp"`
}
