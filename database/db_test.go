package database

import (
	"github.com/DATA-DOG/go-sqlmock"
)

func newTestDataSource() (Datasource, sqlmock.Sqlmock, error) {
	db, mock, err := sqlmock.New()
	if err != nil {
		return Datasource{}, nil, err
	}
	return Datasource{Conn: db}, mock, nil
}

func transactionRows() []string {
	return []string{
		"transaction_id", "reference", "payer_id", "payee_id", "amount", "currency", "category", "status", "description", "version", "hold_ref", "transfer_ref", "refund_ref", "payee_account", "dispute_reason", "evidence", "meta_data", "completion_deadline_days", "review_period_days", "completion_deadline", "auto_release_at", "created_at", "completion_submitted_at", "completion_approved_at", "funds_released_at",
	}
}
