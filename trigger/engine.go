package trigger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/kwld/homescript/hsvm"
	"github.com/kwld/homescript/script"
)

const reconnectBackoff = 5 * time.Second

// ScriptSource supplies the read path the engine needs on every bus event:
// every currently-registered script with a non-empty trigger config.
type ScriptSource interface {
	WithRules() []script.Script
}

// Dispatcher launches a matched script with an event payload bound into its
// scope. The execution host (C4) implements this; the engine never touches
// the interpreter directly.
type Dispatcher interface {
	DispatchTriggered(ctx context.Context, sc script.Script, event map[string]any)
}

// Engine owns the single long-lived duplex connection to the remote
// automation bus: it authenticates, subscribes to state_changed, and
// evaluates every registered script's rule group against each delivered
// event. Grounded on the literal auth handshake recorded in the retrieval
// pack's ha-ws-client integration test (auth_required -> auth -> auth_ok)
// and on the upstream app's background-task lifecycle (start on boot, stop
// on shutdown).
type Engine struct {
	url    string
	token  string
	store  ScriptSource
	disp   Dispatcher
	ev     *hsvm.Evaluator
	logger *slog.Logger

	nextID atomic.Int64
	stop   chan struct{}
}

func New(url, token string, store ScriptSource, disp Dispatcher, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		url:    url,
		token:  token,
		store:  store,
		disp:   disp,
		ev:     hsvm.New(),
		logger: logger,
		stop:   make(chan struct{}),
	}
}

// Start runs the reconnect loop until ctx is cancelled or Stop is called.
// Disabled (a no-op) when url or token are empty, matching §4.5's "starts
// once at process boot if remote credentials are configured; otherwise
// disabled".
func (e *Engine) Start(ctx context.Context) {
	if e.url == "" || e.token == "" {
		e.logger.Info("trigger engine disabled: no automation bus credentials configured")
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		default:
		}

		if err := e.runOnce(ctx); err != nil {
			e.logger.Error("trigger engine connection ended", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-e.stop:
			return
		case <-time.After(reconnectBackoff):
		}
	}
}

// Stop terminates the reconnect loop.
func (e *Engine) Stop() { close(e.stop) }

type wsMessage struct {
	ID          int64           `json:"id,omitempty"`
	Type        string          `json:"type"`
	AccessToken string          `json:"access_token,omitempty"`
	EventType   string          `json:"event_type,omitempty"`
	Event       json.RawMessage `json:"event,omitempty"`
}

type stateChangedEvent struct {
	Data struct {
		EntityID string `json:"entity_id"`
		OldState struct {
			State string `json:"state"`
		} `json:"old_state"`
		NewState struct {
			State string `json:"state"`
		} `json:"new_state"`
	} `json:"data"`
}

func (e *Engine) runOnce(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, e.url, nil)
	if err != nil {
		return fmt.Errorf("dial automation bus: %w", err)
	}
	defer conn.Close()

	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-e.stop:
			conn.Close()
		}
	}()

	var hello wsMessage
	if err := conn.ReadJSON(&hello); err != nil {
		return fmt.Errorf("read auth_required: %w", err)
	}
	if hello.Type != "auth_required" {
		return fmt.Errorf("unexpected handshake message %q", hello.Type)
	}

	if err := conn.WriteJSON(wsMessage{Type: "auth", AccessToken: e.token}); err != nil {
		return fmt.Errorf("send auth: %w", err)
	}

	var authResp wsMessage
	if err := conn.ReadJSON(&authResp); err != nil {
		return fmt.Errorf("read auth response: %w", err)
	}
	if authResp.Type == "auth_invalid" {
		e.logger.Error("trigger engine auth rejected by automation bus")
		return fmt.Errorf("authentication rejected")
	}
	if authResp.Type != "auth_ok" {
		return fmt.Errorf("unexpected auth response %q", authResp.Type)
	}

	subID := e.nextID.Add(1)
	if err := conn.WriteJSON(wsMessage{ID: subID, Type: "subscribe_events", EventType: "state_changed"}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read event: %w", err)
		}
		if msg.Type != "event" || len(msg.Event) == 0 {
			continue
		}
		var sc stateChangedEvent
		if err := json.Unmarshal(msg.Event, &sc); err != nil {
			e.logger.Warn("trigger engine: malformed state_changed payload", "error", err)
			continue
		}
		change := StateChange{
			EntityID: sc.Data.EntityID,
			Old:      sc.Data.OldState.State,
			New:      sc.Data.NewState.State,
		}
		e.handleEvent(ctx, change)
	}
}

// handleEvent evaluates every registered script's rule group serially
// against one delivered state change, dispatching every group that fires.
// A failure in one script's dispatch never aborts the loop.
func (e *Engine) handleEvent(ctx context.Context, change StateChange) {
	for _, sc := range e.store.WithRules() {
		cfg := sc.TriggerConfig
		applicable := false
		for _, r := range cfg.Rules {
			if r.EntityID == change.EntityID {
				applicable = true
				break
			}
		}
		if !applicable {
			continue
		}

		result := Evaluate(e.ev, cfg, change)
		if result.ExpressionError != "" {
			e.logger.Warn("trigger engine: rule expression failed", "endpoint", sc.Endpoint, "error", result.ExpressionError)
			continue
		}
		if !result.Fired {
			continue
		}

		name := DeriveEventName(cfg.Rules, result.Vars, change)
		payload := Payload(cfg, change, result, name)
		payload["timestamp"] = time.Now().UTC().Format(time.RFC3339)

		func() {
			defer func() {
				if r := recover(); r != nil {
					e.logger.Error("trigger engine: dispatch panicked", "endpoint", sc.Endpoint, "recovered", r)
				}
			}()
			e.disp.DispatchTriggered(ctx, sc, payload)
		}()
	}
}
