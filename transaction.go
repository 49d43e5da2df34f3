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

package escrow

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	"github.com/escrowhq/escrow/config"
	"github.com/escrowhq/escrow/gateway"
	"github.com/escrowhq/escrow/internal/apierror"
	redlock "github.com/escrowhq/escrow/internal/lock"
	"github.com/escrowhq/escrow/internal/notification"
	"github.com/escrowhq/escrow/model"
)

var tracer = otel.Tracer("escrow.lifecycle")

// SystemActor identifies transitions not initiated by either party: hold
// confirmations from the gateway webhook and auto-release approvals.
const SystemActor = "system"

// acquireLock takes the per-transaction redis lock that serializes the
// gateway call section. Concurrency control is scoped to one transaction id.
func (l *Escrow) acquireLock(ctx context.Context, transactionID string) (*redlock.Locker, error) {
	locker := redlock.NewLocker(l.redis, transactionID, model.GenerateUUIDWithSuffix("loc"))
	err := locker.Lock(ctx, time.Minute)
	if err != nil {
		return nil, err
	}
	return locker, nil
}

func (l *Escrow) releaseLock(ctx context.Context, locker *redlock.Locker) {
	if err := locker.Unlock(ctx); err != nil {
		logrus.Error("lock error", err)
	}
}

// postTransitionActions emits the status change event for a committed
// transition. Delivery failures are reported, never propagated: a transition
// that already happened is not rolled back because a webhook could not be
// sent.
func (l *Escrow) postTransitionActions(_ context.Context, transaction *model.Transaction, from model.Status, actorID string) {
	event := model.StatusChangeEvent{
		TransactionID: transaction.TransactionID,
		FromStatus:    from,
		ToStatus:      transaction.Status,
		ActorID:       actorID,
		Timestamp:     time.Now(),
	}
	go func() {
		err := l.SendWebhook(NewWebhook{
			Event:   getEventFromStatus(transaction.Status),
			Payload: transaction,
		})
		if err != nil {
			notification.NotifyError(err)
		}
		if err := l.events.Publish(context.Background(), event); err != nil {
			logrus.Errorf("Error publishing status change event: %v", err)
		}
	}()
}

// commitTransition writes the transaction conditionally on the status it was
// loaded with. A lost compare-and-set race surfaces as an invalid transition,
// the caller re-fetches and decides.
func (l *Escrow) commitTransition(ctx context.Context, transaction *model.Transaction, from model.Status, actorID string) error {
	if err := l.datasource.UpdateTransaction(ctx, transaction, from); err != nil {
		if apiErr, ok := err.(apierror.APIError); ok && apiErr.Code == apierror.ErrConflict {
			return apierror.NewAPIError(apierror.ErrInvalidTransition,
				fmt.Sprintf("Transaction %s was modified concurrently", transaction.TransactionID), err)
		}
		return err
	}
	l.postTransitionActions(ctx, transaction, from, actorID)
	return nil
}

// loadForTransition fetches the transaction and verifies the requested move
// is legal from the status just read.
func (l *Escrow) loadForTransition(ctx context.Context, transactionID string, to model.Status) (*model.Transaction, error) {
	transaction, err := l.datasource.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if !model.CanTransition(transaction.Status, to) {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Transaction %s cannot move from %s to %s", transactionID, transaction.Status, to), nil)
	}
	return transaction, nil
}

// resolvePayeeAccount looks up the payee's connect account, read model first,
// gateway second. Absence is allowed at creation time and simply recorded;
// release is where a missing account hard-fails.
func (l *Escrow) resolvePayeeAccount(ctx context.Context, payeeID string) string {
	account, err := l.datasource.GetConnectAccount(ctx, payeeID)
	if err != nil {
		account, err = l.gateway.GetConnectAccount(ctx, payeeID)
		if err != nil {
			logrus.Warnf("payee %s has no connect account yet: %v", payeeID, err)
			return ""
		}
		if err := l.datasource.UpsertConnectAccount(ctx, account); err != nil {
			logrus.Errorf("Error saving connect account for %s: %v", payeeID, err)
		}
	}
	if !account.PayoutReady() {
		logrus.Warnf("payee %s connect account is not payout ready (status %s)", payeeID, account.Status)
		return ""
	}
	return account.AccountRef
}

// CreateTransaction validates and persists a new escrow transaction in
// pending status, derives its deadlines from the category timeline table, and
// places the gateway hold. The transaction only advances to paid_in_escrow
// when the gateway confirms the hold through the webhook.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - transaction *model.Transaction: The transaction to create.
//
// Returns:
// - *model.Transaction: The persisted transaction.
// - error: An error if validation, persistence, or hold placement fails.
func (l *Escrow) CreateTransaction(ctx context.Context, transaction *model.Transaction) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Creating escrow transaction")
	defer span.End()

	if err := transaction.Validate(); err != nil {
		return nil, apierror.NewAPIError(apierror.ErrValidation, err.Error(), err)
	}

	if transaction.Reference != "" {
		exists, err := l.datasource.TransactionExistsByRef(ctx, transaction.Reference)
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, apierror.NewAPIError(apierror.ErrConflict,
				fmt.Sprintf("Transaction with reference '%s' already exists", transaction.Reference), nil)
		}
	} else {
		transaction.Reference = model.GenerateUUIDWithSuffix("ref")
	}

	conf, err := config.Fetch()
	if err != nil {
		return nil, err
	}

	transaction.TransactionID = model.GenerateUUIDWithSuffix("txn")
	transaction.Status = model.StatusPending
	transaction.CreatedAt = time.Now()

	// Creation-time day count overrides win over the category table; once
	// persisted they are immutable.
	timeline := TimelineFor(transaction.Category, conf)
	if transaction.CompletionDeadlineDays <= 0 {
		transaction.CompletionDeadlineDays = timeline.CompletionDeadlineDays
	}
	if transaction.ReviewPeriodDays <= 0 {
		transaction.ReviewPeriodDays = timeline.ReviewPeriodDays
	}
	transaction.CompletionDeadline = DeadlineDate(transaction.CreatedAt, transaction.CompletionDeadlineDays)

	transaction.PayeeAccount = l.resolvePayeeAccount(ctx, transaction.PayeeID)

	persisted, err := l.datasource.RecordTransaction(ctx, transaction)
	if err != nil {
		logrus.Errorf("ERROR saving transaction to db. %s", err)
		return nil, err
	}
	// Creation is a transition from nothing; the event carries an empty
	// from status.
	l.postTransitionActions(ctx, persisted, model.Status(""), persisted.PayerID)

	holdRef, err := l.gateway.CreateHold(ctx, gateway.HoldParams{
		TransactionID:      persisted.TransactionID,
		Amount:             persisted.Amount,
		Currency:           persisted.Currency,
		ApplicationFee:     PlatformFee(persisted.Amount),
		DestinationAccount: persisted.PayeeAccount,
	})
	if err != nil {
		// The pending record stays; the caller retries hold placement
		// under the same idempotency key.
		return persisted, err
	}

	persisted.HoldRef = holdRef
	if err := l.datasource.UpdateTransaction(ctx, persisted, model.StatusPending); err != nil {
		return persisted, err
	}
	return persisted, nil
}

// ConfirmEscrowPayment moves a transaction from pending to paid_in_escrow
// once the gateway reports the hold as captured. System-triggered, normally
// from the gateway webhook handler.
func (l *Escrow) ConfirmEscrowPayment(ctx context.Context, transactionID, holdRef string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Confirming escrow payment")
	defer span.End()

	transaction, err := l.loadForTransition(ctx, transactionID, model.StatusPaidInEscrow)
	if err != nil {
		return nil, err
	}

	from := transaction.Status
	if holdRef != "" {
		transaction.HoldRef = holdRef
	}
	transaction.Status = model.StatusPaidInEscrow
	if err := l.commitTransition(ctx, transaction, from, SystemActor); err != nil {
		return nil, err
	}
	return transaction, nil
}

// SubmitWorkCompletion records the payee's evidence bundle and moves the
// transaction to work_completed. Valid from paid_in_escrow and
// revision_requested. The evidence bundle is replaced whole, the submission
// timestamp is stamped on first submission only, and the auto-release date is
// recomputed from this submission.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - transactionID string: The ID of the transaction.
// - submitterID string: The principal submitting; must be the payee.
// - evidence model.Evidence: The completion evidence; description required.
//
// Returns:
// - *model.Transaction: The updated transaction.
// - error: An error if validation or the transition fails.
func (l *Escrow) SubmitWorkCompletion(ctx context.Context, transactionID, submitterID string, evidence model.Evidence) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Submitting work completion")
	defer span.End()

	if evidence.Description == "" {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "Evidence description is required", nil)
	}

	transaction, err := l.loadForTransition(ctx, transactionID, model.StatusWorkCompleted)
	if err != nil {
		return nil, err
	}
	if transaction.PayeeID != submitterID {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Only the payee can submit completion for transaction %s", transactionID), nil)
	}

	now := time.Now()
	from := transaction.Status
	transaction.Evidence = &evidence
	transaction.DisputeReason = ""
	if transaction.CompletionSubmittedAt.IsZero() {
		transaction.CompletionSubmittedAt = now
	}
	transaction.AutoReleaseAt = AutoReleaseDate(now, transaction.ReviewPeriodDays)
	transaction.Status = model.StatusWorkCompleted

	if err := l.commitTransition(ctx, transaction, from, submitterID); err != nil {
		return nil, err
	}

	// Best effort. The periodic sweep catches anything the scheduled task
	// misses.
	if err := l.queue.queueAutoRelease(transaction.TransactionID, transaction.AutoReleaseAt); err != nil {
		logrus.Errorf("Error scheduling auto release for %s: %v", transaction.TransactionID, err)
	}
	return transaction, nil
}

// ApproveWork records the payer's approval and releases the held funds to the
// payee. The approval timestamp and the approved status are persisted before
// the gateway call: the approval decision is final. If the transfer fails the
// transaction stays approved and the caller retries the release with the same
// idempotency key.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - transactionID string: The ID of the transaction.
// - approverID string: The approving principal; the payer or the system.
//
// Returns:
// - *model.Transaction: The updated transaction.
// - error: ErrReleaseFailed if the transfer failed after approval.
func (l *Escrow) ApproveWork(ctx context.Context, transactionID, approverID string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Approving work")
	defer span.End()

	locker, err := l.acquireLock(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	defer l.releaseLock(ctx, locker)

	transaction, err := l.datasource.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if approverID != transaction.PayerID && approverID != SystemActor {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Only the payer can approve transaction %s", transactionID), nil)
	}

	switch transaction.Status {
	case model.StatusWorkCompleted:
		from := transaction.Status
		transaction.CompletionApprovedAt = time.Now()
		transaction.Status = model.StatusApproved
		if err := l.commitTransition(ctx, transaction, from, approverID); err != nil {
			return nil, err
		}
	case model.StatusApproved:
		// Release retry after an earlier gateway failure.
	default:
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Transaction %s cannot be approved from %s", transactionID, transaction.Status), nil)
	}

	return l.releaseFunds(ctx, transaction, model.StatusApproved, approverID)
}

// releaseFunds transfers the net amount to the payee and moves the
// transaction to released. The gross amount less the platform fee is what the
// payee receives; the fee is computed once, against the original amount.
func (l *Escrow) releaseFunds(ctx context.Context, transaction *model.Transaction, from model.Status, actorID string) (*model.Transaction, error) {
	// A payee who onboarded after creation has no account ref on the record
	// yet; pick it up now so the release can reach them. The refreshed ref is
	// persisted with the released commit.
	if transaction.PayeeAccount == "" {
		transaction.PayeeAccount = l.resolvePayeeAccount(ctx, transaction.PayeeID)
	}

	transferRef, err := l.gateway.ReleaseToPayee(ctx, gateway.ReleaseParams{
		TransactionID:      transaction.TransactionID,
		HoldRef:            transaction.HoldRef,
		Amount:             SellerAmount(transaction.Amount),
		DestinationAccount: transaction.PayeeAccount,
	})
	if err != nil {
		return transaction, apierror.NewAPIError(apierror.ErrReleaseFailed,
			fmt.Sprintf("Funds release failed for transaction %s", transaction.TransactionID), err)
	}

	transaction.TransferRef = transferRef
	transaction.FundsReleasedAt = time.Now()
	transaction.Status = model.StatusReleased
	if err := l.commitTransition(ctx, transaction, from, actorID); err != nil {
		return nil, err
	}
	return transaction, nil
}

// refundFunds reverses the hold back to the payer and moves the transaction
// to refunded.
func (l *Escrow) refundFunds(ctx context.Context, transaction *model.Transaction, from model.Status, actorID string) (*model.Transaction, error) {
	if transaction.HoldRef != "" {
		refundRef, err := l.gateway.RefundToPayer(ctx, gateway.RefundParams{
			TransactionID: transaction.TransactionID,
			HoldRef:       transaction.HoldRef,
			Amount:        transaction.Amount,
		})
		if err != nil {
			return transaction, apierror.NewAPIError(apierror.ErrRefundFailed,
				fmt.Sprintf("Refund failed for transaction %s", transaction.TransactionID), err)
		}
		transaction.RefundRef = refundRef
	}

	transaction.Status = model.StatusRefunded
	if err := l.commitTransition(ctx, transaction, from, actorID); err != nil {
		return nil, err
	}
	return transaction, nil
}

// RequestRevision records the payer's rejection with a reason and sends the
// transaction back to the payee for another submission.
func (l *Escrow) RequestRevision(ctx context.Context, transactionID, requesterID, reason string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Requesting revision")
	defer span.End()

	if reason == "" {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "A revision reason is required", nil)
	}

	transaction, err := l.loadForTransition(ctx, transactionID, model.StatusRevisionRequested)
	if err != nil {
		return nil, err
	}
	if transaction.PayerID != requesterID {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Only the payer can request a revision on transaction %s", transactionID), nil)
	}

	from := transaction.Status
	transaction.DisputeReason = reason
	transaction.Status = model.StatusRevisionRequested
	if err := l.commitTransition(ctx, transaction, from, requesterID); err != nil {
		return nil, err
	}
	return transaction, nil
}

// Refund cancels a transaction before any work is accepted and returns the
// held funds to the payer. Valid from pending and paid_in_escrow only.
func (l *Escrow) Refund(ctx context.Context, transactionID, initiatorID string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Refunding transaction")
	defer span.End()

	locker, err := l.acquireLock(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	defer l.releaseLock(ctx, locker)

	transaction, err := l.loadForTransition(ctx, transactionID, model.StatusRefunded)
	if err != nil {
		return nil, err
	}
	if transaction.Status == model.StatusDisputed {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Transaction %s is disputed; use dispute resolution", transactionID), nil)
	}
	if initiatorID != transaction.PayerID && initiatorID != SystemActor {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Only the payer can refund transaction %s", transactionID), nil)
	}

	return l.refundFunds(ctx, transaction, transaction.Status, initiatorID)
}

// GetTransaction retrieves a single transaction by its ID.
func (l *Escrow) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	return l.datasource.GetTransaction(ctx, transactionID)
}

// GetTransactionByRef retrieves a single transaction by its caller-supplied
// reference.
func (l *Escrow) GetTransactionByRef(ctx context.Context, reference string) (*model.Transaction, error) {
	return l.datasource.GetTransactionByRef(ctx, reference)
}

// GetAllTransactions retrieves transactions, newest first.
func (l *Escrow) GetAllTransactions(ctx context.Context, limit, offset int) ([]model.Transaction, error) {
	return l.datasource.GetAllTransactions(ctx, limit, offset)
}

// GetTransactionsByParty retrieves transactions where the principal is payer
// or payee.
func (l *Escrow) GetTransactionsByParty(ctx context.Context, principalID string, limit, offset int) ([]model.Transaction, error) {
	return l.datasource.GetTransactionsByParty(ctx, principalID, limit, offset)
}
