package escrow

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/escrowhq/escrow/internal/apierror"
	"github.com/escrowhq/escrow/model"
)

func disputeRow(dispute *model.Dispute) *sqlmock.Rows {
	var resolvedAt interface{}
	if !dispute.ResolvedAt.IsZero() {
		resolvedAt = dispute.ResolvedAt
	}
	return sqlmock.NewRows([]string{"dispute_id", "transaction_id", "raised_by", "reason", "evidence", "resolution", "created_at", "resolved_at"}).
		AddRow(dispute.DisputeID, dispute.TransactionID, dispute.RaisedBy, dispute.Reason, dispute.Evidence, string(dispute.Resolution), dispute.CreatedAt, resolvedAt)
}

func TestOpenDispute(t *testing.T) {
	service, mock, _ := newTestEscrow(t)

	paid := sampleServiceTransaction(model.StatusPaidInEscrow)
	mock.ExpectQuery("SELECT .* FROM transactions WHERE transaction_id").
		WithArgs("txn_1").
		WillReturnRows(transactionRow(paid))
	mock.ExpectExec("UPDATE transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO disputes").
		WillReturnResult(sqlmock.NewResult(1, 1))

	dispute, err := service.OpenDispute(context.Background(), "txn_1", "usr_payee", "payment overdue", "")
	require.NoError(t, err)

	assert.Equal(t, model.ResolutionOpen, dispute.Resolution)
	assert.Equal(t, "usr_payee", dispute.RaisedBy)
	assert.Equal(t, "txn_1", dispute.TransactionID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDisputeLostRaceWritesNoRecord(t *testing.T) {
	service, mock, _ := newTestEscrow(t)

	paid := sampleServiceTransaction(model.StatusPaidInEscrow)
	mock.ExpectQuery("SELECT .* FROM transactions WHERE transaction_id").
		WithArgs("txn_1").
		WillReturnRows(transactionRow(paid))
	// Another actor moved the transaction between our read and our write;
	// the ledger must not gain an orphan open dispute.
	mock.ExpectExec("UPDATE transactions").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := service.OpenDispute(context.Background(), "txn_1", "usr_payee", "payment overdue", "")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidTransition, apiErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDisputeByStranger(t *testing.T) {
	service, mock, _ := newTestEscrow(t)

	paid := sampleServiceTransaction(model.StatusPaidInEscrow)
	mock.ExpectQuery("SELECT .* FROM transactions WHERE transaction_id").
		WithArgs("txn_1").
		WillReturnRows(transactionRow(paid))

	_, err := service.OpenDispute(context.Background(), "txn_1", "usr_bystander", "I disagree", "")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrInvalidTransition, apiErr.Code)
}

func TestResolveDisputeForPayer(t *testing.T) {
	service, mock, gw := newTestEscrow(t)

	dispute := &model.Dispute{
		DisputeID:     "dsp_1",
		TransactionID: "txn_1",
		RaisedBy:      "usr_payer",
		Reason:        "work never delivered",
		Resolution:    model.ResolutionOpen,
		CreatedAt:     time.Now().AddDate(0, 0, -2),
	}
	disputed := sampleServiceTransaction(model.StatusDisputed)

	mock.ExpectQuery("SELECT .* FROM disputes").
		WithArgs("dsp_1").
		WillReturnRows(disputeRow(dispute))
	mock.ExpectQuery("SELECT .* FROM transactions WHERE transaction_id").
		WithArgs("txn_1").
		WillReturnRows(transactionRow(disputed))
	mock.ExpectExec("UPDATE transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE disputes").
		WillReturnResult(sqlmock.NewResult(0, 1))

	txn, err := service.ResolveDispute(context.Background(), "dsp_1", model.ResolutionForPayer, "arbiter_1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusRefunded, txn.Status)
	require.Len(t, gw.RefundCalls, 1)
	assert.Empty(t, gw.ReleaseCalls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResolveDisputeForPayee(t *testing.T) {
	service, mock, gw := newTestEscrow(t)

	dispute := &model.Dispute{
		DisputeID:     "dsp_1",
		TransactionID: "txn_1",
		RaisedBy:      "usr_payee",
		Reason:        "payment overdue",
		Resolution:    model.ResolutionUnderReview,
		CreatedAt:     time.Now().AddDate(0, 0, -2),
	}
	disputed := sampleServiceTransaction(model.StatusDisputed)

	mock.ExpectQuery("SELECT .* FROM disputes").
		WithArgs("dsp_1").
		WillReturnRows(disputeRow(dispute))
	mock.ExpectQuery("SELECT .* FROM transactions WHERE transaction_id").
		WithArgs("txn_1").
		WillReturnRows(transactionRow(disputed))
	mock.ExpectExec("UPDATE transactions").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE disputes").
		WillReturnResult(sqlmock.NewResult(0, 1))

	txn, err := service.ResolveDispute(context.Background(), "dsp_1", model.ResolutionForPayee, "arbiter_1")
	require.NoError(t, err)

	assert.Equal(t, model.StatusReleased, txn.Status)
	require.Len(t, gw.ReleaseCalls, 1)
	assert.Equal(t, SellerAmount(disputed.Amount), gw.ReleaseCalls[0].Amount)
	assert.Empty(t, gw.RefundCalls)
}

func TestResolveDisputeAlreadyClosed(t *testing.T) {
	service, mock, gw := newTestEscrow(t)

	dispute := &model.Dispute{
		DisputeID:     "dsp_1",
		TransactionID: "txn_1",
		RaisedBy:      "usr_payer",
		Reason:        "work never delivered",
		Resolution:    model.ResolutionForPayer,
		CreatedAt:     time.Now().AddDate(0, 0, -5),
		ResolvedAt:    time.Now().AddDate(0, 0, -1),
	}
	mock.ExpectQuery("SELECT .* FROM disputes").
		WithArgs("dsp_1").
		WillReturnRows(disputeRow(dispute))

	_, err := service.ResolveDispute(context.Background(), "dsp_1", model.ResolutionForPayee, "arbiter_1")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
	assert.Empty(t, gw.ReleaseCalls)
	assert.Empty(t, gw.RefundCalls)
}

func TestResolveDisputeRejectsNonTerminalResolution(t *testing.T) {
	service, _, _ := newTestEscrow(t)

	_, err := service.ResolveDispute(context.Background(), "dsp_1", model.ResolutionUnderReview, "arbiter_1")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrValidation, apiErr.Code)
}
