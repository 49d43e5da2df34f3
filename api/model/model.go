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
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/escrowhq/escrow/model"
)

// CreateTransaction is the request body for opening a new escrow transaction.
type CreateTransaction struct {
	Reference              string                 `json:"reference"`
	PayerID                string                 `json:"payer_id"`
	PayeeID                string                 `json:"payee_id"`
	Amount                 int64                  `json:"amount"`
	Currency               string                 `json:"currency"`
	Category               string                 `json:"category"`
	Description            string                 `json:"description"`
	CompletionDeadlineDays int                    `json:"completion_deadline_days,omitempty"`
	ReviewPeriodDays       int                    `json:"review_period_days,omitempty"`
	MetaData               map[string]interface{} `json:"meta_data"`
}

func (t *CreateTransaction) ValidateCreateTransaction() error {
	return validation.ValidateStruct(t,
		validation.Field(&t.PayerID, validation.Required),
		validation.Field(&t.PayeeID, validation.Required),
		validation.Field(&t.Amount, validation.Required, validation.Min(1)),
		validation.Field(&t.Currency, validation.Required, validation.Length(3, 3)),
		validation.Field(&t.Category, validation.Required),
	)
}

func (t *CreateTransaction) ToTransaction() *model.Transaction {
	return &model.Transaction{
		Reference:              t.Reference,
		PayerID:                t.PayerID,
		PayeeID:                t.PayeeID,
		Amount:                 t.Amount,
		Currency:               t.Currency,
		Category:               model.Category(t.Category),
		Description:            t.Description,
		CompletionDeadlineDays: t.CompletionDeadlineDays,
		ReviewPeriodDays:       t.ReviewPeriodDays,
		MetaData:               t.MetaData,
	}
}

// SubmitCompletion is the request body for a payee's work submission.
type SubmitCompletion struct {
	SubmitterID string   `json:"submitter_id"`
	Description string   `json:"description"`
	Notes       string   `json:"notes"`
	Files       []string `json:"files"`
	Links       []string `json:"links"`
}

func (s *SubmitCompletion) ValidateSubmitCompletion() error {
	return validation.ValidateStruct(s,
		validation.Field(&s.SubmitterID, validation.Required),
		validation.Field(&s.Description, validation.Required),
	)
}

func (s *SubmitCompletion) ToEvidence() model.Evidence {
	return model.Evidence{
		Description: s.Description,
		Notes:       s.Notes,
		Files:       s.Files,
		Links:       s.Links,
	}
}

// ApproveWork is the request body for a payer's approval.
type ApproveWork struct {
	ApproverID string `json:"approver_id"`
}

func (a *ApproveWork) ValidateApproveWork() error {
	return validation.ValidateStruct(a,
		validation.Field(&a.ApproverID, validation.Required),
	)
}

// RequestRevision is the request body for rejecting a submission.
type RequestRevision struct {
	RequesterID string `json:"requester_id"`
	Reason      string `json:"reason"`
}

func (r *RequestRevision) ValidateRequestRevision() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.RequesterID, validation.Required),
		validation.Field(&r.Reason, validation.Required),
	)
}

// RefundTransaction is the request body for a pre-completion cancellation.
type RefundTransaction struct {
	InitiatorID string `json:"initiator_id"`
}

func (r *RefundTransaction) ValidateRefundTransaction() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.InitiatorID, validation.Required),
	)
}

// OpenDispute is the request body for raising a dispute.
type OpenDispute struct {
	DisputerID string `json:"disputer_id"`
	Reason     string `json:"reason"`
	Evidence   string `json:"evidence"`
}

func (d *OpenDispute) ValidateOpenDispute() error {
	return validation.ValidateStruct(d,
		validation.Field(&d.DisputerID, validation.Required),
		validation.Field(&d.Reason, validation.Required),
	)
}

// ResolveDispute is the request body for an arbiter's decision.
type ResolveDispute struct {
	ArbiterID  string `json:"arbiter_id"`
	Resolution string `json:"resolution"`
}

func (r *ResolveDispute) ValidateResolveDispute() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.ArbiterID, validation.Required),
		validation.Field(&r.Resolution, validation.Required,
			validation.In(string(model.ResolutionForPayer), string(model.ResolutionForPayee))),
	)
}

// GatewayEvent is the envelope the payment processor posts to the webhook
// intake endpoint.
type GatewayEvent struct {
	Type string           `json:"type"`
	Data GatewayEventData `json:"data"`
}

// GatewayEventData carries the union of fields across gateway event types.
type GatewayEventData struct {
	TransactionID      string `json:"transaction_id"`
	HoldRef            string `json:"hold_ref"`
	PrincipalID        string `json:"principal_id"`
	AccountRef         string `json:"account_ref"`
	Status             string `json:"status"`
	OnboardingComplete bool   `json:"onboarding_complete"`
	ChargesEnabled     bool   `json:"charges_enabled"`
	PayoutsEnabled     bool   `json:"payouts_enabled"`
	RoleCategory       string `json:"role_category"`
}

func (e *GatewayEvent) ValidateGatewayEvent() error {
	return validation.ValidateStruct(e,
		validation.Field(&e.Type, validation.Required),
	)
}
