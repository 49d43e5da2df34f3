package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/escrowhq/escrow/internal/apierror"
	"github.com/escrowhq/escrow/model"
)

func (d Datasource) RecordDispute(ctx context.Context, dispute *model.Dispute) (*model.Dispute, error) {
	_, err := d.Conn.ExecContext(ctx,
		`INSERT INTO disputes(dispute_id,transaction_id,raised_by,reason,evidence,resolution,created_at) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		dispute.DisputeID, dispute.TransactionID, dispute.RaisedBy, dispute.Reason, dispute.Evidence, dispute.Resolution, dispute.CreatedAt,
	)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to record dispute", err)
	}
	return dispute, nil
}

func (d Datasource) GetDispute(ctx context.Context, id string) (*model.Dispute, error) {
	row := d.Conn.QueryRowContext(ctx, `
		SELECT dispute_id, transaction_id, raised_by, reason, evidence, resolution, created_at, resolved_at
		FROM disputes
		WHERE dispute_id = $1
	`, id)

	dispute := &model.Dispute{}
	var evidence sql.NullString
	var resolvedAt sql.NullTime
	err := row.Scan(&dispute.DisputeID, &dispute.TransactionID, &dispute.RaisedBy, &dispute.Reason, &evidence, &dispute.Resolution, &dispute.CreatedAt, &resolvedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Dispute with ID '%s' not found", id), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve dispute", err)
	}
	dispute.Evidence = evidence.String
	dispute.ResolvedAt = resolvedAt.Time
	return dispute, nil
}

func (d Datasource) GetDisputesByTransaction(ctx context.Context, transactionID string) ([]model.Dispute, error) {
	rows, err := d.Conn.QueryContext(ctx, `
		SELECT dispute_id, transaction_id, raised_by, reason, evidence, resolution, created_at, resolved_at
		FROM disputes
		WHERE transaction_id = $1
		ORDER BY created_at ASC
	`, transactionID)
	if err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve disputes", err)
	}
	defer rows.Close()

	var disputes []model.Dispute
	for rows.Next() {
		dispute := model.Dispute{}
		var evidence sql.NullString
		var resolvedAt sql.NullTime
		err := rows.Scan(&dispute.DisputeID, &dispute.TransactionID, &dispute.RaisedBy, &dispute.Reason, &evidence, &dispute.Resolution, &dispute.CreatedAt, &resolvedAt)
		if err != nil {
			return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to scan dispute", err)
		}
		dispute.Evidence = evidence.String
		dispute.ResolvedAt = resolvedAt.Time
		disputes = append(disputes, dispute)
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to iterate disputes", err)
	}
	return disputes, nil
}

// CloseDispute records the final resolution of a dispute. The guard on the
// current resolution makes closing idempotent-hostile on purpose: a dispute
// is closed exactly once.
func (d Datasource) CloseDispute(ctx context.Context, id string, resolution model.Resolution, resolvedAt time.Time) error {
	result, err := d.Conn.ExecContext(ctx, `
		UPDATE disputes
		SET resolution = $1, resolved_at = $2
		WHERE dispute_id = $3 AND resolution IN ($4, $5)
	`, resolution, resolvedAt, id, model.ResolutionOpen, model.ResolutionUnderReview)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to close dispute", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to read close result", err)
	}
	if affected == 0 {
		return apierror.NewAPIError(apierror.ErrConflict, fmt.Sprintf("Dispute '%s' is already closed or does not exist", id), nil)
	}
	return nil
}
