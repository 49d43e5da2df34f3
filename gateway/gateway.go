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

package gateway

import (
	"context"
	"fmt"

	"github.com/escrowhq/escrow/model"
)

// Operation names used to derive idempotency keys. One logical intent per
// transaction maps to exactly one key, so retries never double-move funds.
const (
	OpHold    = "hold"
	OpRelease = "release"
	OpRefund  = "refund"
)

// IdempotencyKey derives the deduplication key the processor sees for a
// given transaction and operation.
func IdempotencyKey(transactionID, operation string) string {
	return fmt.Sprintf("%s:%s", transactionID, operation)
}

// HoldParams describes a request to place funds in custody.
type HoldParams struct {
	TransactionID      string
	Amount             int64
	Currency           string
	ApplicationFee     int64
	DestinationAccount string // optional; set when the payee is already onboarded
}

// ReleaseParams describes a transfer of the net amount to the payee.
type ReleaseParams struct {
	TransactionID      string
	HoldRef            string
	Amount             int64
	DestinationAccount string
}

// RefundParams describes a reversal of all or part of a hold back to the
// payer. A zero Amount refunds the full hold.
type RefundParams struct {
	TransactionID string
	HoldRef       string
	Amount        int64
}

// Gateway is the payment processor capability the state machine depends on.
// Every mutating call is idempotent under the key derived from the
// transaction id and operation.
type Gateway interface {
	CreateHold(ctx context.Context, params HoldParams) (string, error)
	ReleaseToPayee(ctx context.Context, params ReleaseParams) (string, error)
	RefundToPayer(ctx context.Context, params RefundParams) (string, error)
	GetConnectAccount(ctx context.Context, principalID string) (*model.ConnectAccount, error)
}
