package skill

import "errors"

// Error kinds reported in Outcome.Err. Each maps to one reply.
var (
	// ErrUsage means the command had no argument.
	ErrUsage = errors.New("missing argument")
	// ErrContentViolation means the argument contains a denylisted entry.
	ErrContentViolation = errors.New("content violation")
	// ErrInsufficientCredit means the balance is below the skill price.
	ErrInsufficientCredit = errors.New("insufficient credit")
	// ErrLedger means the ledger failed before the provider was called.
	ErrLedger = errors.New("ledger error")
	// ErrProvider means the provider call failed.
	ErrProvider = errors.New("provider error")
	// ErrRefund means a failed call could not be refunded. The principal is
	// out of pocket until an administrator reconciles the account.
	ErrRefund = errors.New("refund failed")
)
