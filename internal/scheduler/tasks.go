package scheduler

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const TaskReconcileStale = "calls.reconcile"

type ReconcileStalePayload struct {
	TriggeredAt time.Time `json:"triggeredAt"`
}

func NewReconcileStaleTask(payload ReconcileStalePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskReconcileStale, data), nil
}

func ParseReconcileStalePayload(task *asynq.Task) (ReconcileStalePayload, error) {
	var payload ReconcileStalePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ReconcileStalePayload{}, err
	}
	return payload, nil
}
