package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/escrowhq/escrow/internal/apierror"
	"github.com/escrowhq/escrow/model"
)

const connectAccountCacheTTL = 5 * time.Minute

func connectAccountCacheKey(principalID string) string {
	return fmt.Sprintf("connect-account:%s", principalID)
}

func (d Datasource) UpsertConnectAccount(ctx context.Context, account *model.ConnectAccount) error {
	_, err := d.Conn.ExecContext(ctx, `
		INSERT INTO connect_accounts(principal_id,account_ref,status,onboarding_complete,charges_enabled,payouts_enabled,role_category,created_at,updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$8)
		ON CONFLICT (principal_id) DO UPDATE
		SET account_ref = EXCLUDED.account_ref,
			status = EXCLUDED.status,
			onboarding_complete = EXCLUDED.onboarding_complete,
			charges_enabled = EXCLUDED.charges_enabled,
			payouts_enabled = EXCLUDED.payouts_enabled,
			role_category = EXCLUDED.role_category,
			updated_at = EXCLUDED.updated_at
	`, account.PrincipalID, account.AccountRef, account.Status, account.OnboardingComplete, account.ChargesEnabled, account.PayoutsEnabled, account.RoleCategory, account.UpdatedAt)
	if err != nil {
		return apierror.NewAPIError(apierror.ErrInternalServer, "Failed to upsert connect account", err)
	}
	if d.Cache != nil {
		if err := d.Cache.Delete(ctx, connectAccountCacheKey(account.PrincipalID)); err != nil {
			logrus.Warnf("failed to invalidate connect account cache: %v", err)
		}
	}
	return nil
}

func (d Datasource) GetConnectAccount(ctx context.Context, principalID string) (*model.ConnectAccount, error) {
	if d.Cache != nil {
		cached := &model.ConnectAccount{}
		if err := d.Cache.Get(ctx, connectAccountCacheKey(principalID), cached); err == nil && cached.PrincipalID != "" {
			return cached, nil
		}
	}

	row := d.Conn.QueryRowContext(ctx, `
		SELECT principal_id, account_ref, status, onboarding_complete, charges_enabled, payouts_enabled, role_category, created_at, updated_at
		FROM connect_accounts
		WHERE principal_id = $1
	`, principalID)

	account := &model.ConnectAccount{}
	var roleCategory sql.NullString
	err := row.Scan(&account.PrincipalID, &account.AccountRef, &account.Status, &account.OnboardingComplete, &account.ChargesEnabled, &account.PayoutsEnabled, &roleCategory, &account.CreatedAt, &account.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apierror.NewAPIError(apierror.ErrNotFound, fmt.Sprintf("Connect account for principal '%s' not found", principalID), err)
		}
		return nil, apierror.NewAPIError(apierror.ErrInternalServer, "Failed to retrieve connect account", err)
	}
	account.RoleCategory = roleCategory.String

	if d.Cache != nil {
		if err := d.Cache.Set(ctx, connectAccountCacheKey(principalID), account, connectAccountCacheTTL); err != nil {
			logrus.Warnf("failed to cache connect account: %v", err)
		}
	}
	return account, nil
}
