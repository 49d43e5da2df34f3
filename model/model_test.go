package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to paid_in_escrow", StatusPending, StatusPaidInEscrow, true},
		{"pending to refunded", StatusPending, StatusRefunded, true},
		{"pending to released", StatusPending, StatusReleased, false},
		{"paid_in_escrow to work_completed", StatusPaidInEscrow, StatusWorkCompleted, true},
		{"paid_in_escrow to disputed", StatusPaidInEscrow, StatusDisputed, true},
		{"paid_in_escrow to refunded", StatusPaidInEscrow, StatusRefunded, true},
		{"paid_in_escrow to approved", StatusPaidInEscrow, StatusApproved, false},
		{"work_completed to approved", StatusWorkCompleted, StatusApproved, true},
		{"work_completed to revision_requested", StatusWorkCompleted, StatusRevisionRequested, true},
		{"work_completed to disputed", StatusWorkCompleted, StatusDisputed, true},
		{"work_completed to refunded", StatusWorkCompleted, StatusRefunded, false},
		{"revision_requested to work_completed", StatusRevisionRequested, StatusWorkCompleted, true},
		{"revision_requested to approved", StatusRevisionRequested, StatusApproved, false},
		{"approved to released", StatusApproved, StatusReleased, true},
		{"disputed to released", StatusDisputed, StatusReleased, true},
		{"disputed to refunded", StatusDisputed, StatusRefunded, true},
		{"released is terminal", StatusReleased, StatusRefunded, false},
		{"refunded is terminal", StatusRefunded, StatusPending, false},
		{"unknown status", Status("limbo"), StatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(tt.from, tt.to))
		})
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	assert.Empty(t, AllowedTransitions[StatusReleased])
	assert.Empty(t, AllowedTransitions[StatusRefunded])
}

func TestTransactionValidate(t *testing.T) {
	valid := Transaction{
		Amount:   1000,
		Currency: "USD",
		Category: CategoryService,
		PayerID:  "usr_1",
		PayeeID:  "usr_2",
	}
	assert.NoError(t, valid.Validate())

	zeroAmount := valid
	zeroAmount.Amount = 0
	assert.Error(t, zeroAmount.Validate())

	negativeAmount := valid
	negativeAmount.Amount = -50
	assert.Error(t, negativeAmount.Validate())

	samePrincipal := valid
	samePrincipal.PayeeID = samePrincipal.PayerID
	assert.Error(t, samePrincipal.Validate())

	noCurrency := valid
	noCurrency.Currency = ""
	assert.Error(t, noCurrency.Validate())

	badCategory := valid
	badCategory.Category = "side_hustle"
	assert.Error(t, badCategory.Validate())
}

func TestIsTerminal(t *testing.T) {
	txn := Transaction{Status: StatusWorkCompleted}
	assert.False(t, txn.IsTerminal())
	txn.Status = StatusReleased
	assert.True(t, txn.IsTerminal())
	txn.Status = StatusRefunded
	assert.True(t, txn.IsTerminal())
}

func TestPayoutReady(t *testing.T) {
	var missing *ConnectAccount
	assert.False(t, missing.PayoutReady())

	account := &ConnectAccount{Status: AccountActive, OnboardingComplete: true, PayoutsEnabled: true}
	assert.True(t, account.PayoutReady())

	account.Status = AccountRestricted
	assert.False(t, account.PayoutReady())

	account.Status = AccountActive
	account.PayoutsEnabled = false
	assert.False(t, account.PayoutReady())
}

func TestDisputeIsClosed(t *testing.T) {
	d := Dispute{Resolution: ResolutionOpen}
	assert.False(t, d.IsClosed())
	d.Resolution = ResolutionUnderReview
	assert.False(t, d.IsClosed())
	d.Resolution = ResolutionForPayee
	assert.True(t, d.IsClosed())
}

func TestGenerateUUIDWithSuffix(t *testing.T) {
	id := GenerateUUIDWithSuffix("txn")
	assert.Contains(t, id, "txn_")
	assert.NotEqual(t, id, GenerateUUIDWithSuffix("txn"))
}
