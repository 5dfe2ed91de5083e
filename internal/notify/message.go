// Package notify moves task notifications through a Redis stream: the API
// publishes, the worker consumes and delivers by email or SMS.
package notify

import (
	"encoding/json"
	"errors"
)

type Kind string

const (
	KindEmail Kind = "email"
	KindSMS   Kind = "sms"
)

var errNoRecipient = errors.New("message without recipient")

type Message struct {
	Kind    Kind   `json:"kind"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	TaskID  string `json:"taskId"`
}

func (m Message) values() map[string]any {
	return map[string]any{
		"kind":    string(m.Kind),
		"to":      m.To,
		"subject": m.Subject,
		"body":    m.Body,
		"taskId":  m.TaskID,
	}
}

func decodeMessage(values map[string]interface{}) (Message, error) {
	raw, err := json.Marshal(values)
	if err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return Message{}, err
	}
	if msg.To == "" {
		return Message{}, errNoRecipient
	}
	return msg, nil
}
