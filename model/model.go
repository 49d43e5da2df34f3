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

package model

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// GenerateUUIDWithSuffix generates a UUID with a given module name as a prefix.
// This is useful for creating unique identifiers with context-specific prefixes.
func GenerateUUIDWithSuffix(module string) string {
	id := uuid.New()
	uuidStr := id.String()
	idWithSuffix := fmt.Sprintf("%s_%s", module, uuidStr)
	return idWithSuffix
}

// AllowedTransitions is the full escrow state machine. The key is the current
// status, the value the set of statuses reachable from it. Anything not in
// this table is an invalid transition. released and refunded are terminal.
var AllowedTransitions = map[Status][]Status{
	StatusPending: {
		StatusPaidInEscrow,
		StatusRefunded,
	},
	StatusPaidInEscrow: {
		StatusWorkCompleted,
		StatusDisputed,
		StatusRefunded,
	},
	StatusWorkCompleted: {
		StatusApproved,
		StatusRevisionRequested,
		StatusDisputed,
	},
	StatusRevisionRequested: {
		StatusWorkCompleted,
	},
	StatusApproved: {
		StatusReleased,
	},
	StatusDisputed: {
		StatusReleased,
		StatusRefunded,
	},
	StatusReleased: {},
	StatusRefunded: {},
}

// CanTransition reports whether moving from one status to another is allowed
// by the state machine table.
func CanTransition(from, to Status) bool {
	allowed, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// ValidCategory reports whether the category is one of the closed set.
func ValidCategory(c Category) bool {
	switch c {
	case CategoryWork, CategoryBusinessSale, CategoryPartnership,
		CategoryService, CategoryConsulting, CategoryInvestment, CategoryOther:
		return true
	}
	return false
}

// Validate checks the creation-time invariants of the transaction.
func (transaction *Transaction) Validate() error {
	if transaction.Amount <= 0 {
		return errors.New("transaction amount must be positive")
	}
	if transaction.PayerID == transaction.PayeeID {
		return errors.New("payer and payee must be distinct")
	}
	if transaction.Currency == "" {
		return errors.New("transaction currency is required")
	}
	if !ValidCategory(transaction.Category) {
		return fmt.Errorf("unknown transaction category %q", transaction.Category)
	}
	return nil
}
