package worker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bidua-hosting/backend/internal/logger"
	"github.com/bidua-hosting/backend/internal/provider"
	"github.com/bidua-hosting/backend/internal/queue"

	"github.com/hibiken/asynq"
)

// Consumer handles asynchronous ledger tasks.
type Consumer struct {
	*provider.Container
}

// NewConsumer creates the task consumer.
func NewConsumer(c *provider.Container) *Consumer {
	return &Consumer{
		Container: c,
	}
}

// Register binds the task handlers.
func (c *Consumer) Register(mux *asynq.ServeMux) {
	if c == nil || mux == nil {
		logger.Debugw("worker_register_skip_nil", "consumer_nil", c == nil, "mux_nil", mux == nil)
		return
	}
	mux.HandleFunc(queue.TaskEarningApproveDue, c.handleEarningApproveDue)
	mux.HandleFunc(queue.TaskPayoutNotify, c.handlePayoutNotify)
}

func (c *Consumer) handleEarningApproveDue(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_earning_approve_due_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.EarningApproveDuePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_earning_approve_due_unmarshal_failed", "error", err)
		return err
	}
	if c.LedgerService == nil {
		logger.Warnw("worker_earning_approve_due_skip_ledger_service_nil", "order_no", payload.OrderNo)
		return nil
	}
	// The sweep confirms every due entry, not just the triggering
	// order, so a lost task is recovered by the next one.
	updated, err := c.LedgerService.ApproveDue(time.Now())
	if err != nil {
		logger.Warnw("worker_earning_approve_due_failed", "order_no", payload.OrderNo, "error", err)
		return err
	}
	if updated > 0 {
		logger.Infow("worker_earning_approve_due_confirmed", "order_no", payload.OrderNo, "updated", updated)
	}
	return nil
}

func (c *Consumer) handlePayoutNotify(_ context.Context, task *asynq.Task) error {
	if c == nil || task == nil {
		logger.Debugw("worker_payout_notify_skip_nil", "consumer_nil", c == nil, "task_nil", task == nil)
		return nil
	}
	var payload queue.PayoutNotifyPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		logger.Warnw("worker_payout_notify_unmarshal_failed", "error", err)
		return err
	}
	if payload.PayoutID == 0 {
		logger.Debugw("worker_payout_notify_skip_invalid_payload", "payout_id", payload.PayoutID)
		return nil
	}
	if c.PayoutService == nil {
		logger.Warnw("worker_payout_notify_skip_payout_service_nil", "payout_id", payload.PayoutID)
		return nil
	}
	payout, err := c.PayoutService.GetPayout(payload.PayoutID)
	if err != nil {
		logger.Warnw("worker_payout_notify_fetch_failed", "payout_id", payload.PayoutID, "error", err)
		return nil
	}
	// Delivery channel (email, telegram) is site-specific; for now the
	// notification is an audit log line.
	logger.Infow("worker_payout_notify",
		"payout_id", payout.ID,
		"payout_no", payout.PayoutNo,
		"user_id", payout.UserID,
		"status", payload.Status,
	)
	return nil
}
