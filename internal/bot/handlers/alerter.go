package handlers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/edgard/skillbot/internal/config"
	"github.com/edgard/skillbot/internal/database"
	"github.com/edgard/skillbot/internal/reply"
	"github.com/edgard/skillbot/internal/skill"
)

// RefundAlerter records failed refunds for reconciliation and notifies every
// administrator by direct message.
type RefundAlerter struct {
	store     database.Store
	transport reply.Transport
	cfg       *config.Config
	logger    *slog.Logger
}

// NewRefundAlerter creates a RefundAlerter.
func NewRefundAlerter(store database.Store, transport reply.Transport, cfg *config.Config, logger *slog.Logger) *RefundAlerter {
	return &RefundAlerter{
		store:     store,
		transport: transport,
		cfg:       cfg,
		logger:    logger.With("component", "refund_alerter"),
	}
}

// RefundFailed implements skill.Alerter.
func (a *RefundAlerter) RefundFailed(ctx context.Context, f skill.RefundFailure) {
	cause := ""
	if f.Cause != nil {
		cause = f.Cause.Error()
	}

	err := a.store.RecordReconciliation(ctx, &database.Reconciliation{
		UserID:    f.UserID,
		Amount:    f.Amount,
		Reference: f.InvocationID,
		Error:     cause,
	})
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to record reconciliation",
			"user_id", f.UserID, "amount", f.Amount, "invocation_id", f.InvocationID, "needs_reconciliation", true, "error", err)
	}

	text := fmt.Sprintf(a.cfg.Messages.RefundAlert, f.UserID, f.Amount, f.InvocationID, cause)
	for _, adminID := range a.cfg.Telegram.AdminIDs {
		if err := a.transport.SendText(ctx, adminID, text, nil); err != nil {
			a.logger.ErrorContext(ctx, "Failed to notify administrator", "admin_id", adminID, "error", err)
		}
	}
}

var _ skill.Alerter = (*RefundAlerter)(nil)
