package database

import (
	"database/sql"
	"time"
)

// Account is a principal's credit account. Balance is only ever changed
// through Store.Adjust, which also writes a LedgerEntry.
type Account struct {
	UserID      int64     `db:"user_id"`
	DisplayName string    `db:"display_name"`
	Balance     int64     `db:"balance"`
	Whitelisted bool      `db:"whitelisted"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// LedgerEntry records one relative balance adjustment. For any account the
// sum of its entries' Delta equals its current balance.
type LedgerEntry struct {
	ID           int64     `db:"id"`
	UserID       int64     `db:"user_id"`
	Delta        int64     `db:"delta"`
	BalanceAfter int64     `db:"balance_after"`
	Reason       string    `db:"reason"`
	Reference    string    `db:"reference"`
	CreatedAt    time.Time `db:"created_at"`
}

// Reconciliation records a refund that could not be applied and needs manual
// correction.
type Reconciliation struct {
	ID         int64        `db:"id"`
	UserID     int64        `db:"user_id"`
	Amount     int64        `db:"amount"`
	Reference  string       `db:"reference"`
	Error      string       `db:"error"`
	CreatedAt  time.Time    `db:"created_at"`
	ResolvedAt sql.NullTime `db:"resolved_at"`
}

// Ledger entry reasons.
const (
	ReasonInitialGrant = "initial_grant"
	ReasonAdminGrant   = "admin_grant"
	ReasonSkillCharge  = "skill_charge"
	ReasonSkillRefund  = "skill_refund"
)
