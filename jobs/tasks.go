package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskInterestRecalc triggers the nightly moratory-interest batch.
	TaskInterestRecalc = "credit:interest_recalc"
)

// InterestRecalcPayload carries scheduling metadata for the interest batch.
type InterestRecalcPayload struct {
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewInterestRecalcTask constructs an Asynq task for the interest batch.
func NewInterestRecalcTask(at time.Time) (*asynq.Task, error) {
	body, err := json.Marshal(InterestRecalcPayload{ScheduledFor: at})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInterestRecalc, body, asynq.Queue(QueueDefault)), nil
}
