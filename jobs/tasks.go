package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskSessionsSweep removes sessions whose lifetime has elapsed.
	TaskSessionsSweep = "sessions:sweep"
)

// SessionsSweepPayload describes a sweep run. Reason is informational.
type SessionsSweepPayload struct {
	Reason string `json:"reason"`
}

// NewSessionsSweepTask constructs an Asynq task for the session sweeper.
func NewSessionsSweepTask(reason string) (*asynq.Task, error) {
	data, err := json.Marshal(SessionsSweepPayload{Reason: reason})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSessionsSweep, data), nil
}
