/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package model

import (
	"encoding/json"
	"time"
)

// Status is the lifecycle status of an escrow transaction.
type Status string

const (
	StatusPending           Status = "pending"
	StatusPaidInEscrow      Status = "paid_in_escrow"
	StatusWorkCompleted     Status = "work_completed"
	StatusApproved          Status = "approved"
	StatusRevisionRequested Status = "revision_requested"
	StatusDisputed          Status = "disputed"
	StatusReleased          Status = "released"
	StatusRefunded          Status = "refunded"
)

// Category classifies what kind of engagement the escrow covers. It drives
// the default completion deadline and review period.
type Category string

const (
	CategoryWork         Category = "work"
	CategoryBusinessSale Category = "business_sale"
	CategoryPartnership  Category = "partnership"
	CategoryService      Category = "service"
	CategoryConsulting   Category = "consulting"
	CategoryInvestment   Category = "investment"
	CategoryOther        Category = "other"
)

// Evidence is the completion bundle a payee attaches when submitting work.
// Resubmission replaces the whole bundle, it never merges.
type Evidence struct {
	Files       []string `json:"files,omitempty"`
	Links       []string `json:"links,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	Description string   `json:"description"`
}

// Transaction is the central escrow record. Status and the audit timestamps
// are written only through the state machine; Version is the optimistic
// concurrency token bumped on every status write.
type Transaction struct {
	ID            int64                  `json:"-"`
	TransactionID string                 `json:"id"`
	Reference     string                 `json:"reference"`
	PayerID       string                 `json:"payer_id"`
	PayeeID       string                 `json:"payee_id"`
	Amount        int64                  `json:"amount"`
	Currency      string                 `json:"currency"`
	Category      Category               `json:"category"`
	Status        Status                 `json:"status"`
	Description   string                 `json:"description,omitempty"`
	Version       int64                  `json:"version"`
	HoldRef       string                 `json:"hold_ref,omitempty"`
	TransferRef   string                 `json:"transfer_ref,omitempty"`
	RefundRef     string                 `json:"refund_ref,omitempty"`
	PayeeAccount  string                 `json:"payee_account,omitempty"`
	DisputeReason string                 `json:"dispute_reason,omitempty"`
	Evidence      *Evidence              `json:"evidence,omitempty"`
	MetaData      map[string]interface{} `json:"meta_data,omitempty"`

	CompletionDeadlineDays int       `json:"completion_deadline_days"`
	ReviewPeriodDays       int       `json:"review_period_days"`
	CompletionDeadline     time.Time `json:"completion_deadline"`
	AutoReleaseAt          time.Time `json:"auto_release_at,omitempty"`

	CreatedAt             time.Time `json:"created_at"`
	CompletionSubmittedAt time.Time `json:"completion_submitted_at,omitempty"`
	CompletionApprovedAt  time.Time `json:"completion_approved_at,omitempty"`
	FundsReleasedAt       time.Time `json:"funds_released_at,omitempty"`
}

func (transaction *Transaction) ToJSON() ([]byte, error) {
	return json.Marshal(transaction)
}

// IsTerminal reports whether the transaction has reached a final status.
// Terminal transactions accept no further mutation.
func (transaction *Transaction) IsTerminal() bool {
	return transaction.Status == StatusReleased || transaction.Status == StatusRefunded
}
