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

package database

import (
	"context"
	"time"

	"github.com/escrowhq/escrow/model"
)

// IDataSource defines the interface for data source operations, grouping related functionalities.
type IDataSource interface {
	transaction    // Interface for escrow transaction operations
	dispute        // Interface for the dispute ledger
	connectAccount // Interface for the connect account read model
}

// transaction defines methods for handling escrow transactions.
type transaction interface {
	RecordTransaction(ctx context.Context, txn *model.Transaction) (*model.Transaction, error)                        // Records a new escrow transaction
	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)                                        // Retrieves a transaction by ID
	GetTransactionByRef(ctx context.Context, reference string) (*model.Transaction, error)                            // Retrieves a transaction by reference
	TransactionExistsByRef(ctx context.Context, reference string) (bool, error)                                       // Checks if a transaction exists by reference
	UpdateTransaction(ctx context.Context, txn *model.Transaction, expectedStatus model.Status) error                 // Conditional write guarded by status and version
	GetAllTransactions(ctx context.Context, limit, offset int) ([]model.Transaction, error)                           // Retrieves transactions, newest first
	GetDueForAutoRelease(ctx context.Context, now time.Time, limit int) ([]*model.Transaction, error)                 // work_completed transactions past their auto-release date
	GetTransactionsByParty(ctx context.Context, principalID string, limit, offset int) ([]model.Transaction, error)   // Transactions where the principal is payer or payee
}

// dispute defines methods for the append-only dispute ledger.
type dispute interface {
	RecordDispute(ctx context.Context, d *model.Dispute) (*model.Dispute, error)                               // Appends a new dispute record
	GetDispute(ctx context.Context, id string) (*model.Dispute, error)                                         // Retrieves a dispute by ID
	GetDisputesByTransaction(ctx context.Context, transactionID string) ([]model.Dispute, error)               // Retrieves disputes raised against a transaction
	CloseDispute(ctx context.Context, id string, resolution model.Resolution, resolvedAt time.Time) error      // Closes an open dispute exactly once
}

// connectAccount defines methods for the gateway account read model.
type connectAccount interface {
	UpsertConnectAccount(ctx context.Context, account *model.ConnectAccount) error        // Creates or refreshes the read-side record
	GetConnectAccount(ctx context.Context, principalID string) (*model.ConnectAccount, error) // Retrieves the record for a principal
}
