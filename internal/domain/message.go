package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// queueMessage is the wire shape of a submission on the queue:
// {"username": "...", "data": {"question_id": "...", "option": "..."}, "timestamp": "..."}
type queueMessage struct {
	Username string `json:"username"`
	Data     struct {
		QuestionID string `json:"question_id"`
		Option     string `json:"option"`
	} `json:"data"`
	Timestamp string `json:"timestamp"`
}

// EncodeSubmission serializes a submission into its queue wire form.
func EncodeSubmission(sub Submission) ([]byte, error) {
	var msg queueMessage
	msg.Username = sub.Username
	msg.Data.QuestionID = sub.QuestionID
	msg.Data.Option = sub.OptionID
	msg.Timestamp = sub.SubmittedAt.UTC().Format(time.RFC3339Nano)
	return json.Marshal(msg)
}

// DecodeSubmission parses the queue wire form back into a submission.
func DecodeSubmission(raw []byte) (Submission, error) {
	var msg queueMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Submission{}, fmt.Errorf("decode submission: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, msg.Timestamp)
	if err != nil {
		return Submission{}, fmt.Errorf("decode submission timestamp: %w", err)
	}
	return Submission{
		Username:    msg.Username,
		QuestionID:  msg.Data.QuestionID,
		OptionID:    msg.Data.Option,
		SubmittedAt: ts,
	}, nil
}
