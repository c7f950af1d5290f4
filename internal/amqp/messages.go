package amqp

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Reasons attached to refresh messages.
const (
	ReasonContributionRecorded = "contribution_recorded"
	ReasonScheduled            = "scheduled"
	ReasonManual               = "manual"
)

// AnalysisRefreshMessage asks the worker to recompute and snapshot the
// analysis of one goal. It carries only the goal id; the worker loads the
// current data itself.
type AnalysisRefreshMessage struct {
	MessageID string    `json:"message_id"`
	GoalID    int64     `json:"goal_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewAnalysisRefreshMessage(goalID int64, reason string) *AnalysisRefreshMessage {
	return &AnalysisRefreshMessage{
		MessageID: uuid.NewString(),
		GoalID:    goalID,
		Reason:    reason,
		Timestamp: time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *AnalysisRefreshMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// AnalysisRefreshMessageFromJSON decodes and validates a message body.
func AnalysisRefreshMessageFromJSON(data []byte) (*AnalysisRefreshMessage, error) {
	var msg AnalysisRefreshMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.GoalID <= 0 {
		return nil, errors.New("missing goal_id")
	}
	return &msg, nil
}
