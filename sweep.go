package escrow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/escrowhq/escrow/internal/apierror"
)

const sweepBatchSize = 100

// ProcessAutoRelease handles the per-transaction task scheduled at a
// submission's auto-release date. The review period has elapsed without the
// payer acting, so the system approves on their behalf. A transaction that
// was meanwhile approved, disputed, or sent back for revision makes the task
// a no-op.
func (l *Escrow) ProcessAutoRelease(ctx context.Context, task *asynq.Task) error {
	var transactionID string
	if err := json.Unmarshal(task.Payload(), &transactionID); err != nil {
		logrus.Errorf("Error unmarshaling auto release payload: %v", err)
		return err
	}

	_, err := l.ApproveWork(ctx, transactionID, SystemActor)
	if err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrInvalidTransition {
			logrus.Infof("auto release skipped for %s: %s", transactionID, apiErr.Message)
			return nil
		}
		return err
	}
	logrus.Infof("auto released transaction %s", transactionID)
	return nil
}

// ProcessDueReleases scans for transactions still awaiting review past their
// auto-release date and approves them as the system actor. Safety net behind
// the scheduled tasks; safe to run concurrently with manual approvals, the
// conditional status write makes the losing attempt a no-op.
func (l *Escrow) ProcessDueReleases(ctx context.Context) error {
	due, err := l.datasource.GetDueForAutoRelease(ctx, time.Now(), sweepBatchSize)
	if err != nil {
		return err
	}

	for _, transaction := range due {
		if _, err := l.ApproveWork(ctx, transaction.TransactionID, SystemActor); err != nil {
			if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrInvalidTransition {
				continue
			}
			logrus.Errorf("Error auto releasing transaction %s: %v", transaction.TransactionID, err)
		}
	}
	return nil
}
