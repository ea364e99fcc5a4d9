package domain

import (
	"encoding/json"
	"testing"
	"time"
)

func TestServiceStatusEventDecodesGatewayPayloads(t *testing.T) {
	wireTime := time.UnixMilli(1712345678123).UTC()
	cases := []struct {
		name      string
		raw       string
		wantJobID string
		wantTime  time.Time
	}{
		{
			name:      "epoch millisecond timestamp",
			raw:       `{"job_id":"7f9af01e","service":"redis","status":"running","action":"start","timestamp":1712345678123}`,
			wantJobID: "7f9af01e",
			wantTime:  wireTime,
		},
		{
			name:     "null job id for unsolicited updates",
			raw:      `{"job_id":null,"service":"redis","status":"running","timestamp":1712345678123}`,
			wantTime: wireTime,
		},
		{
			name:     "fractional epoch milliseconds",
			raw:      `{"service":"redis","status":"running","timestamp":1712345678123.0}`,
			wantTime: wireTime,
		},
		{
			name:     "rfc3339 string from older builds",
			raw:      `{"service":"redis","status":"running","timestamp":"2024-04-05T19:34:38.123Z"}`,
			wantTime: wireTime,
		},
		{
			name: "null timestamp",
			raw:  `{"service":"redis","status":"running","timestamp":null}`,
		},
		{
			name: "absent timestamp",
			raw:  `{"service":"redis","status":"running"}`,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var evt ServiceStatusEvent
			if err := json.Unmarshal([]byte(tc.raw), &evt); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			if evt.Service != "redis" || evt.Status != ServiceStatusRunning {
				t.Fatalf("unexpected event %+v", evt)
			}
			if evt.JobID != tc.wantJobID {
				t.Fatalf("expected job id %q, got %q", tc.wantJobID, evt.JobID)
			}
			if !evt.Timestamp.Equal(tc.wantTime) {
				t.Fatalf("expected timestamp %v, got %v", tc.wantTime, evt.Timestamp.Time)
			}
		})
	}
}

func TestServiceStatusEventRejectsMalformedTimestamp(t *testing.T) {
	var evt ServiceStatusEvent
	if err := json.Unmarshal([]byte(`{"service":"redis","status":"running","timestamp":"soon"}`), &evt); err == nil {
		t.Fatal("malformed timestamp must surface a decode error")
	}
}

func TestEnvelopeDecodesNumericTimestamp(t *testing.T) {
	raw := `{"event":"service.status.changed","data":{"service":"redis"},"timestamp":1712345678123}`
	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.Event != EventServiceStatusChanged {
		t.Fatalf("unexpected event %q", env.Event)
	}
	if !env.Timestamp.Equal(time.UnixMilli(1712345678123).UTC()) {
		t.Fatalf("unexpected timestamp %v", env.Timestamp.Time)
	}
}

func TestEventTimeRoundTripsAsMilliseconds(t *testing.T) {
	stamp := EventTime{Time: time.UnixMilli(1712345678123).UTC()}
	data, err := json.Marshal(stamp)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "1712345678123" {
		t.Fatalf("expected epoch milliseconds on the wire, got %s", data)
	}
	var decoded EventTime
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.Equal(stamp.Time) {
		t.Fatalf("round trip drifted: %v != %v", decoded.Time, stamp.Time)
	}
	zero, err := json.Marshal(EventTime{})
	if err != nil {
		t.Fatalf("marshal zero: %v", err)
	}
	if string(zero) != "null" {
		t.Fatalf("zero time must serialize as null, got %s", zero)
	}
}
