package realtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hardimpactdev/orbit-console/internal/domain"
)

func newTestListener(url string) *Listener {
	l := NewListener(url, slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelDebug})))
	l.backoffMin = time.Millisecond
	l.backoffMax = 10 * time.Millisecond
	return l
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Errorf("marshal event: %v", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Errorf("write event: %v", err)
	}
}

func waitEvent(t *testing.T, events <-chan domain.Envelope) domain.Envelope {
	t.Helper()
	select {
	case env, ok := <-events:
		if !ok {
			t.Fatal("event channel closed early")
		}
		return env
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return domain.Envelope{}
}

func TestListenerDeliversEventsAndSkipsMalformed(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		defer conn.Close()
		sendJSON(t, conn, domain.Envelope{Event: domain.EventServiceStatusChanged, Data: json.RawMessage(`{"service":"redis"}`)})
		conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		conn.WriteMessage(websocket.TextMessage, []byte(`{"data":{}}`))
		sendJSON(t, conn, domain.Envelope{Event: domain.EventProjectStatusChanged, Data: json.RawMessage(`{"slug":"shop"}`)})
		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	l := newTestListener(wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	first := waitEvent(t, l.Events())
	if first.Event != domain.EventServiceStatusChanged {
		t.Fatalf("unexpected first event %q", first.Event)
	}
	second := waitEvent(t, l.Events())
	if second.Event != domain.EventProjectStatusChanged {
		t.Fatalf("malformed frames must be skipped, got %q", second.Event)
	}
}

func TestListenerReconnectsAfterDrop(t *testing.T) {
	var dials atomic.Int64
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := dials.Add(1)
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		if n == 1 {
			// Drop the first connection immediately.
			conn.Close()
			return
		}
		defer conn.Close()
		sendJSON(t, conn, domain.Envelope{Event: domain.EventServiceStatusChanged})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	l := newTestListener(wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	env := waitEvent(t, l.Events())
	if env.Event != domain.EventServiceStatusChanged {
		t.Fatalf("unexpected event %q", env.Event)
	}
	if dials.Load() < 2 {
		t.Fatalf("expected a redial, got %d dials", dials.Load())
	}
}

func TestListenerPublishesConnectionStates(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	l := newTestListener(wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	deadline := time.After(5 * time.Second)
	sawConnecting, sawConnected := false, false
	for !sawConnected {
		select {
		case state := <-l.States():
			switch state {
			case StateConnecting:
				sawConnecting = true
			case StateConnected:
				sawConnected = true
			}
		case <-deadline:
			t.Fatal("timed out waiting for connected state")
		}
	}
	if !sawConnecting {
		t.Fatal("expected a connecting state before connected")
	}
}

func TestListenerStopsOnCancel(t *testing.T) {
	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	l := newTestListener(wsURL(srv))
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	// Wait for the connection so cancellation exercises the read path.
	deadline := time.After(5 * time.Second)
	for connected := false; !connected; {
		select {
		case state := <-l.States():
			connected = state == StateConnected
		case <-deadline:
			t.Fatal("timed out waiting for connection")
		}
	}
	cancel()

	select {
	case _, ok := <-l.Events():
		if ok {
			t.Fatal("expected closed event channel")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("event channel did not close after cancel")
	}
}
