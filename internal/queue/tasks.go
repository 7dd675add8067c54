package queue

import (
	"encoding/json"

	"github.com/bidua-hosting/backend/internal/constants"

	"github.com/hibiken/asynq"
)

const (
	// TaskEarningApproveDue flips pending earnings whose verification
	// window has elapsed to approved.
	TaskEarningApproveDue = constants.TaskEarningApproveDue
	// TaskPayoutNotify notifies a user about a payout status change.
	TaskPayoutNotify = constants.TaskPayoutNotify
)

// EarningApproveDuePayload carries the settled order whose ledger entries
// come due.
type EarningApproveDuePayload struct {
	OrderNo string `json:"order_no"`
}

// PayoutNotifyPayload carries a payout status change.
type PayoutNotifyPayload struct {
	PayoutID uint   `json:"payout_id"`
	Status   string `json:"status"`
}

// NewEarningApproveDueTask creates the verification-expiry task.
func NewEarningApproveDueTask(payload EarningApproveDuePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEarningApproveDue, body), nil
}

// NewPayoutNotifyTask creates the payout notification task.
func NewPayoutNotifyTask(payload PayoutNotifyPayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPayoutNotify, body), nil
}
