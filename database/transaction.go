package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/escrowhq/escrow/internal/apierror"
	"github.com/escrowhq/escrow/model"

	_ "github.com/lib/pq"
)

const transactionColumns = `transaction_id, reference, payer_id, payee_id, amount, currency, category, status, description, version, hold_ref, transfer_ref, refund_ref, payee_account, dispute_reason, evidence, meta_data, completion_deadline_days, review_period_days, completion_deadline, auto_release_at, created_at, completion_submitted_at, completion_approved_at, funds_released_at`

func (d Datasource) RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error) {
	ctx, span := otel.Tracer("escrow.database").Start(ctx, "Saving transaction to db")
	defer span.End()

	metaDataJSON, err := json.Marshal(txn.MetaData)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal metadata", err)
	}
	evidenceJSON, err := json.Marshal(txn.Evidence)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal evidence", err)
	}

	_, err = d.Conn.ExecContext(ctx,
		`INSERT INTO transactions(transaction_id,reference,payer_id,payee_id,amount,currency,category,status,description,version,hold_ref,transfer_ref,refund_ref,payee_account,dispute_reason,evidence,meta_data,completion_deadline_days,review_period_days,completion_deadline,auto_release_at,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22)`,
		txn.TransactionID, txn.Reference, txn.PayerID, txn.PayeeID, txn.Amount, txn.Currency, txn.Category, txn.Status, txn.Description, txn.Version, txn.HoldRef, txn.TransferRef, txn.RefundRef, txn.PayeeAccount, txn.DisputeReason, evidenceJSON, metaDataJSON, txn.CompletionDeadlineDays, txn.ReviewPeriodDays, txn.CompletionDeadline, nullTime(txn.AutoReleaseAt), txn.CreatedAt,
	)

	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record transaction", err)
	}

	return txn, nil
}

func (d Datasource) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE transaction_id = $1
	`, transactionColumns), id)

	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}
	return txn, nil
}

func (d Datasource) GetTransactionByRef(ctx context.Context, reference string) (*model.Transaction, error) {
	row := d.Conn.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE reference = $1
	`, transactionColumns), reference)

	txn, err := scanTransaction(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Transaction with reference '%s' not found", reference), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transaction", err)
	}
	return txn, nil
}

func (d Datasource) TransactionExistsByRef(ctx context.Context, reference string) (bool, error) {
	ctx, span := otel.Tracer("escrow.database").Start(ctx, "Checking transaction reference")
	defer span.End()

	var exists bool
	err := d.Conn.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM transactions WHERE reference = $1)
	`, reference).Scan(&exists)

	if err != nil {
		return false, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to check if transaction exists", err)
	}

	return exists, nil
}

// UpdateTransaction persists the transaction's mutable fields guarded by a
// compare-and-set on both the status it was loaded in and its version. A lost
// race surfaces as a CONFLICT, which the service reports as an invalid
// transition. On success the in-memory version is bumped to match the row.
func (d Datasource) UpdateTransaction(ctx context.Context, txn *model.Transaction, expectedStatus model.Status) error {
	ctx, span := otel.Tracer("escrow.database").Start(ctx, "Updating transaction with version guard")
	defer span.End()

	evidenceJSON, err := json.Marshal(txn.Evidence)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to marshal evidence", err)
	}

	result, err := d.Conn.ExecContext(ctx, `
		UPDATE transactions
		SET status = $1,
			version = version + 1,
			hold_ref = $2,
			transfer_ref = $3,
			refund_ref = $4,
			payee_account = $5,
			dispute_reason = $6,
			evidence = $7,
			auto_release_at = $8,
			completion_submitted_at = $9,
			completion_approved_at = $10,
			funds_released_at = $11
		WHERE transaction_id = $12 AND status = $13 AND version = $14
	`, txn.Status, txn.HoldRef, txn.TransferRef, txn.RefundRef, txn.PayeeAccount, txn.DisputeReason, evidenceJSON, nullTime(txn.AutoReleaseAt), nullTime(txn.CompletionSubmittedAt), nullTime(txn.CompletionApprovedAt), nullTime(txn.FundsReleasedAt), txn.TransactionID, expectedStatus, txn.Version)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to update transaction", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read update result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Transaction '%s' was modified concurrently", txn.TransactionID), nil)
	}

	txn.Version++
	return nil
}

func (d Datasource) GetAllTransactions(ctx context.Context, limit, offset int) ([]model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`, transactionColumns), limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transactions", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

func (d Datasource) GetTransactionsByParty(ctx context.Context, principalID string, limit, offset int) ([]model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE payer_id = $1 OR payee_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`, transactionColumns), principalID, limit, offset)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve transactions", err)
	}
	defer rows.Close()

	return collectTransactions(rows)
}

// GetDueForAutoRelease returns work_completed transactions whose review
// period has elapsed. The sweep approves them on behalf of the system actor.
func (d Datasource) GetDueForAutoRelease(ctx context.Context, now time.Time, limit int) ([]*model.Transaction, error) {
	rows, err := d.Conn.QueryContext(ctx, fmt.Sprintf(`
		SELECT %s
		FROM transactions
		WHERE status = $1 AND auto_release_at IS NOT NULL AND auto_release_at <= $2
		ORDER BY auto_release_at ASC
		LIMIT $3
	`, transactionColumns), model.StatusWorkCompleted, now, limit)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve due transactions", err)
	}
	defer rows.Close()

	var due []*model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction", err)
		}
		due = append(due, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate transactions", err)
	}
	return due, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	txn := &model.Transaction{}
	var (
		description, holdRef, transferRef, refundRef, payeeAccount, disputeReason sql.NullString
		evidenceJSON, metaDataJSON                                                []byte
		autoReleaseAt, submittedAt, approvedAt, releasedAt                        sql.NullTime
	)

	err := row.Scan(&txn.TransactionID, &txn.Reference, &txn.PayerID, &txn.PayeeID, &txn.Amount, &txn.Currency, &txn.Category, &txn.Status, &description, &txn.Version, &holdRef, &transferRef, &refundRef, &payeeAccount, &disputeReason, &evidenceJSON, &metaDataJSON, &txn.CompletionDeadlineDays, &txn.ReviewPeriodDays, &txn.CompletionDeadline, &autoReleaseAt, &txn.CreatedAt, &submittedAt, &approvedAt, &releasedAt)
	if err != nil {
		return nil, err
	}

	txn.Description = description.String
	txn.HoldRef = holdRef.String
	txn.TransferRef = transferRef.String
	txn.RefundRef = refundRef.String
	txn.PayeeAccount = payeeAccount.String
	txn.DisputeReason = disputeReason.String
	txn.AutoReleaseAt = autoReleaseAt.Time
	txn.CompletionSubmittedAt = submittedAt.Time
	txn.CompletionApprovedAt = approvedAt.Time
	txn.FundsReleasedAt = releasedAt.Time

	if len(evidenceJSON) > 0 {
		if err := json.Unmarshal(evidenceJSON, &txn.Evidence); err != nil {
			return nil, err
		}
	}
	if len(metaDataJSON) > 0 {
		if err := json.Unmarshal(metaDataJSON, &txn.MetaData); err != nil {
			return nil, err
		}
	}

	return txn, nil
}

func collectTransactions(rows *sql.Rows) ([]model.Transaction, error) {
	var transactions []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan transaction", err)
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate transactions", err)
	}
	return transactions, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
