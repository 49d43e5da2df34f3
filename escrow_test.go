package escrow

import (
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/escrowhq/escrow/config"
	"github.com/escrowhq/escrow/database"
	"github.com/escrowhq/escrow/model"
)

func newTestDataSource() (database.IDataSource, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return nil, nil, err
	}
	return database.Datasource{Conn: db}, mock, nil
}

func newTestEscrow(t *testing.T) (*Escrow, sqlmock.Sqlmock, *MockGateway) {
	t.Helper()

	mr := miniredis.RunT(t)
	config.MockConfig(&config.Configuration{
		Redis: config.RedisConfig{Dns: mr.Addr()},
		Queue: config.QueueConfig{WebhookQueue: "new:webhook", AutoReleaseQueue: "new:auto-release"},
	})

	datasource, mock, err := newTestDataSource()
	require.NoError(t, err)

	gw := &MockGateway{}
	service, err := NewEscrow(datasource, gw)
	require.NoError(t, err)
	return service, mock, gw
}

func transactionColumns() []string {
	return []string{
		"transaction_id", "reference", "payer_id", "payee_id", "amount", "currency", "category", "status", "description", "version", "hold_ref", "transfer_ref", "refund_ref", "payee_account", "dispute_reason", "evidence", "meta_data", "completion_deadline_days", "review_period_days", "completion_deadline", "auto_release_at", "created_at", "completion_submitted_at", "completion_approved_at", "funds_released_at",
	}
}

func transactionRow(txn *model.Transaction) *sqlmock.Rows {
	evidenceJSON, _ := json.Marshal(txn.Evidence)
	metaDataJSON, _ := json.Marshal(txn.MetaData)
	return sqlmock.NewRows(transactionColumns()).AddRow(
		txn.TransactionID, txn.Reference, txn.PayerID, txn.PayeeID, txn.Amount, txn.Currency, txn.Category, txn.Status,
		txn.Description, txn.Version, txn.HoldRef, txn.TransferRef, txn.RefundRef, txn.PayeeAccount, txn.DisputeReason,
		evidenceJSON, metaDataJSON, txn.CompletionDeadlineDays, txn.ReviewPeriodDays, txn.CompletionDeadline,
		txn.AutoReleaseAt, txn.CreatedAt, txn.CompletionSubmittedAt, txn.CompletionApprovedAt, txn.FundsReleasedAt,
	)
}
