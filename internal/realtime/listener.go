// Package realtime subscribes to the gateway's websocket event feed. The
// listener decodes envelopes and republishes them on a channel, reconnecting
// with backoff whenever the connection drops. Consumers treat the feed as
// advisory: a broken stream degrades freshness, never correctness, because
// every state change is re-derivable from a fetch.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hardimpactdev/orbit-console/internal/domain"
)

// Connection states published on the States channel.
const (
	StateConnecting   = "connecting"
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
)

// Listener maintains a websocket subscription until its context is
// cancelled.
type Listener struct {
	url    string
	dialer *websocket.Dialer
	logger *slog.Logger

	events chan domain.Envelope
	states chan string

	backoffMin  time.Duration
	backoffMax  time.Duration
	readTimeout time.Duration
}

// NewListener returns a listener for the given websocket URL. Run must be
// called to start it.
func NewListener(url string, logger *slog.Logger) *Listener {
	if logger == nil {
		logger = slog.Default()
	}
	return &Listener{
		url:         url,
		dialer:      websocket.DefaultDialer,
		logger:      logger.With("component", "realtime"),
		events:      make(chan domain.Envelope, 16),
		states:      make(chan string, 4),
		backoffMin:  time.Second,
		backoffMax:  30 * time.Second,
		readTimeout: 5 * time.Minute,
	}
}

// Events returns the decoded event feed. The channel closes when Run
// returns.
func (l *Listener) Events() <-chan domain.Envelope {
	return l.events
}

// States returns connection-state transitions. Sends never block; a slow
// consumer misses intermediate states, not the final one it reads next.
func (l *Listener) States() <-chan string {
	return l.states
}

// Run dials and reads until ctx is cancelled, redialing with exponential
// backoff after failures. It closes both channels on return.
func (l *Listener) Run(ctx context.Context) {
	defer close(l.events)
	defer close(l.states)

	backoff := l.backoffMin
	for {
		if ctx.Err() != nil {
			return
		}
		l.publishState(StateConnecting)
		conn, _, err := l.dialer.DialContext(ctx, l.url, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Warn("event stream dial failed", "url", l.url, "error", err)
			l.publishState(StateDisconnected)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			if backoff *= 2; backoff > l.backoffMax {
				backoff = l.backoffMax
			}
			continue
		}

		backoff = l.backoffMin
		l.publishState(StateConnected)
		l.logger.Info("event stream connected", "url", l.url)
		l.read(ctx, conn)
		l.publishState(StateDisconnected)
	}
}

// read pumps messages from one connection until it breaks or ctx ends.
func (l *Listener) read(ctx context.Context, conn *websocket.Conn) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
		case <-stop:
		}
		conn.Close()
	}()

	conn.SetReadDeadline(time.Now().Add(l.readTimeout))
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				l.logger.Warn("event stream read failed", "error", err)
			}
			return
		}
		// Any traffic proves the connection is alive.
		conn.SetReadDeadline(time.Now().Add(l.readTimeout))

		var env domain.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			l.logger.Debug("malformed event skipped", "error", err)
			continue
		}
		if env.Event == "" {
			continue
		}
		select {
		case l.events <- env:
		case <-ctx.Done():
			return
		}
	}
}

func (l *Listener) publishState(state string) {
	select {
	case l.states <- state:
	default:
	}
}
