// Package skill runs paid commands: it admits the request, charges the
// principal before calling the provider, refunds on failure and replies.
package skill

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/skillbot/internal/config"
	"github.com/edgard/skillbot/internal/database"
	"github.com/edgard/skillbot/internal/filter"
	"github.com/edgard/skillbot/internal/provider"
	"github.com/edgard/skillbot/internal/reply"
)

// settleTimeout bounds refund and other ledger writes that must outlive the
// request context.
const settleTimeout = 10 * time.Second

// Ledger is the credit store as seen by the executor. Adjust applies a
// relative delta atomically and refuses debits that would go below zero with
// database.ErrInsufficientBalance.
type Ledger interface {
	Balance(ctx context.Context, userID int64) (int64, error)
	Adjust(ctx context.Context, userID int64, delta int64, reason, reference string) (int64, error)
	IsWhitelisted(ctx context.Context, userID int64) (bool, error)
}

// RefundFailure describes a charge that could not be returned.
type RefundFailure struct {
	InvocationID string
	Skill        string
	UserID       int64
	Amount       int64
	Cause        error
}

// Alerter escalates refund failures for manual reconciliation.
type Alerter interface {
	RefundFailed(ctx context.Context, f RefundFailure)
}

// State is a step of the invocation pipeline.
type State int

const (
	StateReceived State = iota
	StateRejected
	StateAdmitted
	StateCharged
	StateInvoked
	StateSettled
	StateRefunded
	StateReplied
)

func (s State) String() string {
	switch s {
	case StateReceived:
		return "received"
	case StateRejected:
		return "rejected"
	case StateAdmitted:
		return "admitted"
	case StateCharged:
		return "charged"
	case StateInvoked:
		return "invoked"
	case StateSettled:
		return "settled"
	case StateRefunded:
		return "refunded"
	case StateReplied:
		return "replied"
	default:
		return "unknown"
	}
}

// Outcome summarizes a finished invocation.
type Outcome struct {
	// State is the last state reached. Successful and failed calls both end
	// in StateReplied; Settled tells them apart.
	State State
	// Settled is true when the provider call succeeded.
	Settled bool
	// Refunded is true when a charge was returned after a failure.
	Refunded bool
	// Waived is true for administrators and whitelisted principals.
	Waived bool
	// Charged is the amount debited and kept.
	Charged int64
	// Balance is the balance right after the debit, when one happened.
	Balance int64
	// Err is one of the package error kinds, or nil.
	Err    error
	Result provider.Result
}

// Deps are the collaborators shared by all executors.
type Deps struct {
	Ledger    Ledger
	Filter    *filter.Filter
	Formatter *reply.Formatter
	Alerter   Alerter
	Messages  config.MessagesConfig
	Logger    *slog.Logger
}

// Executor runs one configured skill.
type Executor struct {
	cfg     config.SkillConfig
	adapter provider.Adapter
	params  provider.Params
	deps    Deps
	logger  *slog.Logger
}

// NewExecutor creates the executor for cfg.
func NewExecutor(cfg config.SkillConfig, adapter provider.Adapter, deps Deps) *Executor {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{
		cfg:     cfg,
		adapter: adapter,
		params:  provider.ParamsFromSkill(cfg),
		deps:    deps,
		logger:  logger.With("component", "skill", "skill", cfg.Name),
	}
}

// Config returns the skill configuration.
func (e *Executor) Config() config.SkillConfig { return e.cfg }

// Execute runs inv through the pipeline and sends every reply. It does not
// return an error; the outcome carries the error kind.
func (e *Executor) Execute(ctx context.Context, inv Invocation) Outcome {
	log := e.logger.With("invocation_id", inv.ID, "user_id", inv.Principal.ID, "chat_id", inv.Origin.ChatID)
	out := Outcome{State: StateReceived}

	prompt := strings.TrimSpace(inv.Command.Argument)
	if prompt == "" {
		return e.reject(ctx, log, inv, out, ErrUsage, e.cfg.Help)
	}

	// The denylist sees the argument as typed, separators included.
	if word, hit := e.deps.Filter.Match(inv.Command.Argument); hit {
		log.InfoContext(ctx, "Denylisted content rejected", "entry", word)
		return e.reject(ctx, log, inv, out, ErrContentViolation, e.deps.Messages.ContentViolation)
	}

	waived, err := e.isWaived(ctx, inv.Principal)
	if err != nil {
		log.ErrorContext(ctx, "Whitelist lookup failed", "error", err)
		return e.reject(ctx, log, inv, out, ErrLedger, e.deps.Messages.LedgerUnavailable)
	}
	out.Waived = waived

	if !waived && e.cfg.Price > 0 {
		balance, err := e.deps.Ledger.Balance(ctx, inv.Principal.ID)
		if err != nil {
			log.ErrorContext(ctx, "Balance lookup failed", "error", err)
			return e.reject(ctx, log, inv, out, ErrLedger, e.deps.Messages.LedgerUnavailable)
		}
		if balance < e.cfg.Price {
			return e.reject(ctx, log, inv, out, ErrInsufficientCredit,
				fmt.Sprintf(e.deps.Messages.InsufficientCredit, e.cfg.Price))
		}
	}

	out.State = StateAdmitted
	if err := e.send(ctx, inv, e.deps.Messages.Acknowledged); err != nil {
		log.WarnContext(ctx, "Acknowledgement not delivered", "error", err)
	}

	if !waived && e.cfg.Price > 0 {
		balance, err := e.deps.Ledger.Adjust(ctx, inv.Principal.ID, -e.cfg.Price, database.ReasonSkillCharge, inv.ID)
		switch {
		case errors.Is(err, database.ErrInsufficientBalance):
			return e.reject(ctx, log, inv, out, ErrInsufficientCredit,
				fmt.Sprintf(e.deps.Messages.InsufficientCredit, e.cfg.Price))
		case err != nil:
			log.ErrorContext(ctx, "Charge failed", "price", e.cfg.Price, "error", err)
			return e.reject(ctx, log, inv, out, ErrLedger, e.deps.Messages.LedgerUnavailable)
		}
		out.Charged = e.cfg.Price
		out.Balance = balance
	}
	out.State = StateCharged

	callCtx := ctx
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	start := time.Now()
	out.Result = e.adapter.Invoke(callCtx, prompt, e.params)
	out.State = StateInvoked
	log.InfoContext(ctx, "Provider returned", "provider", e.adapter.Name(), "ok", out.Result.OK(), "duration", time.Since(start))

	if out.Result.OK() {
		out.State = StateSettled
		out.Settled = true
		e.replySuccess(ctx, log, inv, out)
		out.State = StateReplied
		return out
	}

	out.Err = ErrProvider
	text := fmt.Sprintf(e.deps.Messages.WaivedFailure, out.Result.Diagnostic())
	if out.Charged > 0 {
		if err := e.refund(ctx, log, inv, out.Charged); err != nil {
			out.Err = ErrRefund
			text = fmt.Sprintf(e.deps.Messages.RefundFailed, out.Result.Diagnostic())
		} else {
			text = fmt.Sprintf(e.deps.Messages.RefundedFailure, out.Charged, out.Result.Diagnostic())
			out.State = StateRefunded
			out.Refunded = true
			out.Charged = 0
		}
	}

	if err := e.send(ctx, inv, text); err != nil {
		log.WarnContext(ctx, "Failure reply not delivered", "error", err)
	}
	out.State = StateReplied
	return out
}

// isWaived reports whether the principal skips charging. Administrators are
// waived without a ledger lookup.
func (e *Executor) isWaived(ctx context.Context, p Principal) (bool, error) {
	if p.Admin {
		return true, nil
	}
	if e.cfg.Price == 0 {
		return false, nil
	}
	return e.deps.Ledger.IsWhitelisted(ctx, p.ID)
}

func (e *Executor) reject(ctx context.Context, log *slog.Logger, inv Invocation, out Outcome, kind error, text string) Outcome {
	log.InfoContext(ctx, "Invocation rejected", "reason", kind)
	if err := e.send(ctx, inv, text); err != nil {
		log.WarnContext(ctx, "Rejection reply not delivered", "error", err)
	}
	out.State = StateRejected
	out.Err = kind
	return out
}

// refund returns amount to the principal. It runs detached from ctx so a
// shutdown cannot strand a charge. Failures are escalated.
func (e *Executor) refund(ctx context.Context, log *slog.Logger, inv Invocation, amount int64) error {
	refundCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), settleTimeout)
	defer cancel()

	if _, err := e.deps.Ledger.Adjust(refundCtx, inv.Principal.ID, amount, database.ReasonSkillRefund, inv.ID); err != nil {
		log.ErrorContext(ctx, "Refund failed", "amount", amount, "needs_reconciliation", true, "error", err)
		if e.deps.Alerter != nil {
			e.deps.Alerter.RefundFailed(refundCtx, RefundFailure{
				InvocationID: inv.ID,
				Skill:        e.cfg.Name,
				UserID:       inv.Principal.ID,
				Amount:       amount,
				Cause:        err,
			})
		}
		return fmt.Errorf("%w: %w", ErrRefund, err)
	}

	log.InfoContext(ctx, "Charge refunded", "amount", amount)
	return nil
}

func (e *Executor) replySuccess(ctx context.Context, log *slog.Logger, inv Invocation, out Outcome) {
	msgs := e.deps.Messages

	var header string
	switch {
	case out.Waived:
		header = msgs.WaivedSuccess
	case out.Charged > 0:
		header = fmt.Sprintf(msgs.ChargedSuccess, out.Charged, out.Balance)
	}

	if out.Result.IsArtifact() {
		text := joinLines(header, msgs.ImageGenerated)
		if err := e.send(ctx, inv, text); err != nil {
			log.WarnContext(ctx, "Success reply not delivered", "error", err)
		}
		if err := e.deps.Formatter.SendImage(ctx, inv.Recipient(), out.Result.ArtifactPath()); err != nil {
			log.ErrorContext(ctx, "Image not delivered", "path", out.Result.ArtifactPath(), "error", err)
		}
		return
	}

	body := fmt.Sprintf(msgs.Answer, e.cfg.DisplayLabel()) + "\n" + out.Result.Output()
	text := joinLines(header, body)
	if e.cfg.Model != "" {
		text += "\n\n" + fmt.Sprintf(msgs.ModelFooter, e.cfg.Model)
	}
	if err := e.send(ctx, inv, text); err != nil {
		log.WarnContext(ctx, "Success reply not delivered", "error", err)
	}
}

func (e *Executor) send(ctx context.Context, inv Invocation, text string) error {
	return e.deps.Formatter.Send(ctx, inv.Recipient(), text)
}

func joinLines(lines ...string) string {
	var kept []string
	for _, l := range lines {
		if l != "" {
			kept = append(kept, l)
		}
	}
	return strings.Join(kept, "\n")
}
