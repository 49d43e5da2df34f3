package database

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

func TestRecordDispute(t *testing.T) {
	d, mock, err := newTestDataSource()
	require.NoError(t, err)

	dispute := &model.Dispute{
		DisputeID:     "dsp_1",
		TransactionID: "txn_1",
		RaisedBy:      "usr_payee",
		Reason:        "payment overdue",
		Resolution:    model.ResolutionOpen,
		CreatedAt:     time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO disputes").
		WithArgs(dispute.DisputeID, dispute.TransactionID, dispute.RaisedBy, dispute.Reason, dispute.Evidence, string(dispute.Resolution), dispute.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	saved, err := d.RecordDispute(context.Background(), dispute)
	require.NoError(t, err)
	assert.Equal(t, "dsp_1", saved.DisputeID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetDispute(t *testing.T) {
	d, mock, err := newTestDataSource()
	require.NoError(t, err)

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"dispute_id", "transaction_id", "raised_by", "reason", "evidence", "resolution", "created_at", "resolved_at"}).
		AddRow("dsp_1", "txn_1", "usr_payee", "payment overdue", nil, "open", now, nil)

	mock.ExpectQuery("SELECT .* FROM disputes").
		WithArgs("dsp_1").
		WillReturnRows(rows)

	dispute, err := d.GetDispute(context.Background(), "dsp_1")
	require.NoError(t, err)
	assert.Equal(t, model.ResolutionOpen, dispute.Resolution)
	assert.True(t, dispute.ResolvedAt.IsZero())
}

func TestGetDisputeNotFound(t *testing.T) {
	d, mock, err := newTestDataSource()
	require.NoError(t, err)

	mock.ExpectQuery("SELECT .* FROM disputes").
		WithArgs("dsp_missing").
		WillReturnRows(sqlmock.NewRows([]string{"dispute_id"}))

	_, err = d.GetDispute(context.Background(), "dsp_missing")
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrNotFound, apiErr.Code)
}

func TestCloseDispute(t *testing.T) {
	d, mock, err := newTestDataSource()
	require.NoError(t, err)

	resolvedAt := time.Now().UTC()
	mock.ExpectExec("UPDATE disputes").
		WithArgs(string(model.ResolutionForPayee), resolvedAt, "dsp_1", string(model.ResolutionOpen), string(model.ResolutionUnderReview)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, d.CloseDispute(context.Background(), "dsp_1", model.ResolutionForPayee, resolvedAt))
}

func TestCloseDisputeTwiceConflicts(t *testing.T) {
	d, mock, err := newTestDataSource()
	require.NoError(t, err)

	mock.ExpectExec("UPDATE disputes").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err = d.CloseDispute(context.Background(), "dsp_1", model.ResolutionForPayer, time.Now().UTC())
	require.Error(t, err)
	apiErr, ok := err.(apierror.APIError)
	require.True(t, ok)
	assert.Equal(t, apierror.ErrConflict, apiErr.Code)
}
