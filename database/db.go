package database

import (
	"database/sql"
	"log"
	"sync"

	"github.com/escrowhq/escrow/internal/cache"

	"github.com/escrowhq/escrow/config"
)

// Declare a package-level variable to hold the singleton instance.
// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

type Datasource struct {
	Conn  *sql.DB
	Cache cache.Cache
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		readCache, errCache := cache.NewCache()
		if errCache != nil {
			log.Printf("connect account cache disabled: %v", errCache)
		}
		instance = &Datasource{Conn: con, Cache: readCache}
	})
	if err != nil {
		return nil, err
	}
	return instance, nil
}

func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}
	err = db.Ping()
	if err != nil {
		log.Printf("database connection error: %v", err)
		return nil, err
	}
	err = createTransactionTable(db)
	if err != nil {
		return nil, err
	}
	err = createDisputeTable(db)
	if err != nil {
		return nil, err
	}
	err = createConnectAccountTable(db)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// createTransactionTable creates the PostgreSQL table backing escrow transactions.
// version is the optimistic concurrency token; every status write bumps it.
func createTransactionTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS transactions (
			id SERIAL PRIMARY KEY,
			transaction_id TEXT NOT NULL UNIQUE,
			reference TEXT NOT NULL UNIQUE,
			payer_id TEXT NOT NULL,
			payee_id TEXT NOT NULL,
			amount BIGINT NOT NULL CHECK (amount > 0),
			currency TEXT NOT NULL,
			category TEXT NOT NULL,
			status TEXT NOT NULL,
			description TEXT,
			version BIGINT NOT NULL DEFAULT 0,
			hold_ref TEXT,
			transfer_ref TEXT,
			refund_ref TEXT,
			payee_account TEXT,
			dispute_reason TEXT,
			evidence JSONB,
			meta_data JSONB,
			completion_deadline_days INT NOT NULL,
			review_period_days INT NOT NULL,
			completion_deadline TIMESTAMP NOT NULL,
			auto_release_at TIMESTAMP,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			completion_submitted_at TIMESTAMP,
			completion_approved_at TIMESTAMP,
			funds_released_at TIMESTAMP,
			CHECK (payer_id <> payee_id)
		)
	`)
	return err
}

// createDisputeTable creates the append-only dispute ledger table.
func createDisputeTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS disputes (
			id SERIAL PRIMARY KEY,
			dispute_id TEXT NOT NULL UNIQUE,
			transaction_id TEXT NOT NULL REFERENCES transactions(transaction_id),
			raised_by TEXT NOT NULL,
			reason TEXT NOT NULL,
			evidence TEXT,
			resolution TEXT NOT NULL DEFAULT 'open',
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMP
		)
	`)
	return err
}

// createConnectAccountTable creates the read-side mirror of gateway connect
// accounts. Rows are upserted from gateway webhook events.
func createConnectAccountTable(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS connect_accounts (
			id SERIAL PRIMARY KEY,
			principal_id TEXT NOT NULL UNIQUE,
			account_ref TEXT NOT NULL,
			status TEXT NOT NULL,
			onboarding_complete BOOLEAN NOT NULL DEFAULT FALSE,
			charges_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			payouts_enabled BOOLEAN NOT NULL DEFAULT FALSE,
			role_category TEXT,
			created_at TIMESTAMP NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMP NOT NULL DEFAULT NOW()
		)
	`)
	return err
}
