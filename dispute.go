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

	"github.com/escrowhq/escrow/internal/apierror"
	"github.com/escrowhq/escrow/model"
)

// OpenDispute appends an open dispute record and moves the transaction to
// disputed. Either party can raise one, from paid_in_escrow or
// work_completed.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - transactionID string: The ID of the transaction under dispute.
// - disputerID string: The principal raising the dispute; payer or payee.
// - reason string: Why the dispute is raised; required.
// - evidence string: Optional supporting material.
//
// Returns:
// - *model.Dispute: The recorded dispute.
// - error: An error if validation or the transition fails.
func (l *Escrow) OpenDispute(ctx context.Context, transactionID, disputerID, reason, evidence string) (*model.Dispute, error) {
	ctx, span := tracer.Start(ctx, "Opening dispute")
	defer span.End()

	if reason == "" {
		return nil, apierror.NewAPIError(apierror.ErrValidation, "A dispute reason is required", nil)
	}

	transaction, err := l.loadForTransition(ctx, transactionID, model.StatusDisputed)
	if err != nil {
		return nil, err
	}
	if disputerID != transaction.PayerID && disputerID != transaction.PayeeID {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Only a party to transaction %s can open a dispute", transactionID), nil)
	}

	// The status CAS goes first: losing the race must not leave an open
	// dispute row behind on a transaction that is no longer disputable.
	from := transaction.Status
	transaction.DisputeReason = reason
	transaction.Status = model.StatusDisputed
	if err := l.commitTransition(ctx, transaction, from, disputerID); err != nil {
		return nil, err
	}

	dispute := &model.Dispute{
		DisputeID:     model.GenerateUUIDWithSuffix("dsp"),
		TransactionID: transactionID,
		RaisedBy:      disputerID,
		Reason:        reason,
		Evidence:      evidence,
		Resolution:    model.ResolutionOpen,
		CreatedAt:     time.Now(),
	}
	dispute, err = l.datasource.RecordDispute(ctx, dispute)
	if err != nil {
		logrus.Errorf("Transaction %s is disputed but the dispute record failed to write: %v", transactionID, err)
		return nil, err
	}
	return dispute, nil
}

// ResolveDispute closes a dispute exactly once and drives the transaction to
// its terminal status: released when resolved for the payee, refunded when
// resolved for the payer. Administrative operation, performed by an external
// arbiter.
//
// Parameters:
// - ctx context.Context: The context for the operation.
// - disputeID string: The ID of the dispute to close.
// - resolution model.Resolution: The final resolution.
// - arbiterID string: The resolving principal, recorded as the actor.
//
// Returns:
// - *model.Transaction: The transaction in its terminal status.
// - error: An error if the dispute is already closed or the gateway call fails.
func (l *Escrow) ResolveDispute(ctx context.Context, disputeID string, resolution model.Resolution, arbiterID string) (*model.Transaction, error) {
	ctx, span := tracer.Start(ctx, "Resolving dispute")
	defer span.End()

	if resolution != model.ResolutionForPayer && resolution != model.ResolutionForPayee {
		return nil, apierror.NewAPIError(apierror.ErrValidation,
			fmt.Sprintf("'%s' is not a terminal dispute resolution", resolution), nil)
	}

	dispute, err := l.datasource.GetDispute(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if dispute.IsClosed() {
		return nil, apierror.NewAPIError(apierror.ErrConflict,
			fmt.Sprintf("Dispute %s is already closed", disputeID), nil)
	}

	locker, err := l.acquireLock(ctx, dispute.TransactionID)
	if err != nil {
		return nil, err
	}
	defer l.releaseLock(ctx, locker)

	transaction, err := l.datasource.GetTransaction(ctx, dispute.TransactionID)
	if err != nil {
		return nil, err
	}
	if transaction.Status != model.StatusDisputed {
		return nil, apierror.NewAPIError(apierror.ErrInvalidTransition,
			fmt.Sprintf("Transaction %s is not disputed", dispute.TransactionID), nil)
	}

	// The gateway moves the money first; the dispute record closes once the
	// transaction has reached its terminal status.
	if resolution == model.ResolutionForPayee {
		transaction, err = l.releaseFunds(ctx, transaction, model.StatusDisputed, arbiterID)
	} else {
		transaction, err = l.refundFunds(ctx, transaction, model.StatusDisputed, arbiterID)
	}
	if err != nil {
		return transaction, err
	}

	if err := l.datasource.CloseDispute(ctx, disputeID, resolution, time.Now()); err != nil {
		return transaction, err
	}
	return transaction, nil
}

// GetDispute retrieves a dispute record by its ID.
func (l *Escrow) GetDispute(ctx context.Context, disputeID string) (*model.Dispute, error) {
	return l.datasource.GetDispute(ctx, disputeID)
}

// GetDisputesByTransaction retrieves every dispute raised against a
// transaction, oldest first.
func (l *Escrow) GetDisputesByTransaction(ctx context.Context, transactionID string) ([]model.Dispute, error) {
	return l.datasource.GetDisputesByTransaction(ctx, transactionID)
}
