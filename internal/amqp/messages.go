package amqp

import (
	"encoding/json"
	"time"
)

// LeadCapturedMessage announces a stored lead. It carries only the id; the
// worker reads the lead itself from the database.
type LeadCapturedMessage struct {
	LeadID    string    `json:"lead_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewLeadCapturedMessage(leadID string) *LeadCapturedMessage {
	return &LeadCapturedMessage{
		LeadID:    leadID,
		Timestamp: time.Now().UTC(),
	}
}

func (m *LeadCapturedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func LeadCapturedMessageFromJSON(data []byte) (*LeadCapturedMessage, error) {
	var msg LeadCapturedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
