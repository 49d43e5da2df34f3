package model

import "time"

// Resolution is the outcome recorded on a dispute. A dispute is closed
// exactly once with resolved_for_payer or resolved_for_payee.
type Resolution string

const (
	ResolutionOpen        Resolution = "open"
	ResolutionUnderReview Resolution = "under_review"
	ResolutionForPayer    Resolution = "resolved_for_payer"
	ResolutionForPayee    Resolution = "resolved_for_payee"
)

// Dispute is one append-only record in the dispute ledger. The ledger is
// the sole writer of these records.
type Dispute struct {
	ID            int64      `json:"-"`
	DisputeID     string     `json:"id"`
	TransactionID string     `json:"transaction_id"`
	RaisedBy      string     `json:"raised_by"`
	Reason        string     `json:"reason"`
	Evidence      string     `json:"evidence,omitempty"`
	Resolution    Resolution `json:"resolution"`
	CreatedAt     time.Time  `json:"created_at"`
	ResolvedAt    time.Time  `json:"resolved_at,omitempty"`
}

// IsClosed reports whether the dispute has been resolved.
func (d *Dispute) IsClosed() bool {
	return d.Resolution == ResolutionForPayer || d.Resolution == ResolutionForPayee
}
