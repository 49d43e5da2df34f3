package model

import "time"

// AccountStatus is the gateway-side verification status of a connect account.
type AccountStatus string

const (
	AccountPending    AccountStatus = "pending"
	AccountActive     AccountStatus = "active"
	AccountRestricted AccountStatus = "restricted"
	AccountDisabled   AccountStatus = "disabled"
)

// ConnectAccount is the read-side record of a principal's payout account at
// the payment gateway. It is owned by the gateway onboarding flow; the escrow
// core only consults it at creation and release time.
type ConnectAccount struct {
	ID                 int64         `json:"-"`
	PrincipalID        string        `json:"principal_id"`
	AccountRef         string        `json:"account_ref"`
	Status             AccountStatus `json:"status"`
	OnboardingComplete bool          `json:"onboarding_complete"`
	ChargesEnabled     bool          `json:"charges_enabled"`
	PayoutsEnabled     bool          `json:"payouts_enabled"`
	RoleCategory       string        `json:"role_category,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// PayoutReady reports whether funds can be transferred out to this account.
func (a *ConnectAccount) PayoutReady() bool {
	return a != nil && a.Status == AccountActive && a.OnboardingComplete && a.PayoutsEnabled
}
