package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Realtime event names published on the gateway's environment channel.
const (
	EventServiceStatusChanged   = "service.status.changed"
	EventProjectStatusChanged   = "project.status.changed"
	EventProjectDeletionChanged = "project.deletion.changed"
)

// EventTime is a timestamp as the gateway emits it: epoch milliseconds.
// RFC3339 strings from older gateway builds are tolerated on decode.
type EventTime struct {
	time.Time
}

// UnmarshalJSON accepts a JSON number (epoch milliseconds), an RFC3339
// string, or null.
func (t *EventTime) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" {
		t.Time = time.Time{}
		return nil
	}
	if len(s) > 0 && s[0] == '"' {
		return t.Time.UnmarshalJSON(data)
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("timestamp %s is neither epoch milliseconds nor RFC3339", s)
		}
		ms = int64(f)
	}
	t.Time = time.UnixMilli(ms).UTC()
	return nil
}

// MarshalJSON emits epoch milliseconds, or null for the zero time.
func (t EventTime) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return strconv.AppendInt(nil, t.UnixMilli(), 10), nil
}

// Envelope frames every realtime message with its event name. Payloads stay
// raw until a consumer routes them to a typed decode.
type Envelope struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp EventTime       `json:"timestamp,omitempty"`
}

// ServiceStatusEvent reports a service state change. JobID is empty for
// unsolicited updates that do not resolve a dispatched action.
type ServiceStatusEvent struct {
	JobID     string    `json:"job_id"`
	Service   string    `json:"service"`
	Status    string    `json:"status"`
	Action    string    `json:"action,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp EventTime `json:"timestamp,omitempty"`
}

// ProjectLifecycleEvent reports progress of a project creation or deletion,
// depending on which event name carried it.
type ProjectLifecycleEvent struct {
	Slug   string `json:"slug"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
