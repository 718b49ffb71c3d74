// ABOUTME: Sync job payload carried on the queue
// ABOUTME: Encodes jobs as watermill messages keyed by job id
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
)

// Job asks a worker to run one full sync.
type Job struct {
	ID         string    `json:"id"`
	Reason     string    `json:"reason"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

func NewJob(reason string) Job {
	return Job{ID: uuid.NewString(), Reason: reason, EnqueuedAt: time.Now().UTC()}
}

func (j Job) Message() (*message.Message, error) {
	payload, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to encode job %s: %w", j.ID, err)
	}
	msg := message.NewMessage(j.ID, payload)
	msg.Metadata.Set("reason", j.Reason)
	return msg, nil
}

func DecodeJob(msg *message.Message) (Job, error) {
	var j Job
	if err := json.Unmarshal(msg.Payload, &j); err != nil {
		return Job{}, fmt.Errorf("failed to decode job %s: %w", msg.UUID, err)
	}
	if j.ID == "" {
		j.ID = msg.UUID
	}
	return j, nil
}
