package escrow

import (
	"context"

	"github.com/escrowhq/escrow/model"
)

// UpsertConnectAccount refreshes the payee read model from a gateway account
// event.
func (l *Escrow) UpsertConnectAccount(ctx context.Context, account *model.ConnectAccount) error {
	return l.datasource.UpsertConnectAccount(ctx, account)
}

// GetConnectAccount retrieves the connect account read model for a principal.
func (l *Escrow) GetConnectAccount(ctx context.Context, principalID string) (*model.ConnectAccount, error) {
	return l.datasource.GetConnectAccount(ctx, principalID)
}
