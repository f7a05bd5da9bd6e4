package connection

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/athlete-live/internal/model"
)

// parentViewServer answers parent_view the way the messaging server does.
func parentViewServer(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		msg, err := model.Decode(data)
		if err != nil || msg.Type() != model.TypeParentView {
			continue
		}

		var reply model.Message
		if msg["token"] == "valid-token" {
			reply = model.NewMessage(model.TypeParentViewSuccess, map[string]any{
				"data": map[string]any{"athleteId": 42},
			})
		} else {
			reply = model.NewMessage(model.TypeError, map[string]any{"message": "invalid token"})
		}
		out, _ := reply.Encode()
		if err := conn.WriteMessage(websocket.TextMessage, out); err != nil {
			return
		}
	}
}

func newRealManager(t *testing.T, url string, cfg ManagerConfig) *Manager {
	t.Helper()
	ccfg := DefaultClientConfig()
	ccfg.URL = url
	m := NewManager(cfg, NewClientFactory(ccfg, nil), nil, nil)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestIntegration_ParentView(t *testing.T) {
	server := mockWSServer(t, parentViewServer)
	defer server.Close()

	m := newRealManager(t, wsURL(server), testManagerConfig())

	replies := make(chan model.Message, 1)
	m.Subscribe(func(msg model.Message) {
		if msg.Type() == model.TypeParentViewSuccess {
			replies <- msg
		}
	})

	// Sent before any connection exists: retried, queued, then flushed.
	if m.AuthenticateParentView("valid-token") {
		t.Error("AuthenticateParentView returned true while disconnected")
	}

	select {
	case msg := <-replies:
		pv, err := model.ParseParentViewSuccess(msg)
		if err != nil {
			t.Fatalf("ParseParentViewSuccess: %v", err)
		}
		if pv.AthleteID != 42 {
			t.Errorf("AthleteID = %d, want 42", pv.AthleteID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no parent_view_success received")
	}

	last, _, ok := m.Dispatcher().LastMessage()
	if !ok || last.Type() != model.TypeParentViewSuccess {
		t.Errorf("LastMessage = %v, %v", last, ok)
	}
}

func TestIntegration_ParentViewRejected(t *testing.T) {
	server := mockWSServer(t, parentViewServer)
	defer server.Close()

	m := newRealManager(t, wsURL(server), testManagerConfig())
	connectAndWait(t, m)

	reasons := make(chan string, 1)
	m.Subscribe(func(msg model.Message) {
		if reason, ok := model.ErrorReason(msg); ok {
			reasons <- reason
		}
	})

	if !m.AuthenticateParentView("expired") {
		t.Fatal("AuthenticateParentView returned false while connected")
	}

	select {
	case reason := <-reasons:
		if reason != "invalid token" {
			t.Errorf("reason = %q", reason)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no error reply received")
	}
	// An error reply is an ordinary message; the connection stays up.
	if m.State() != StateConnected {
		t.Errorf("State = %v, want connected", m.State())
	}
}

func TestIntegration_ReconnectAfterServerDrop(t *testing.T) {
	var conns atomic.Int32
	var mu sync.Mutex
	var received []string

	server := mockWSServer(t, func(conn *websocket.Conn) {
		n := conns.Add(1)
		if n == 1 {
			// Drop the first connection without a close handshake.
			conn.UnderlyingConn().Close()
			return
		}
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msg, err := model.Decode(data); err == nil {
				mu.Lock()
				received = append(received, msg.Type())
				mu.Unlock()
			}
		}
	})
	defer server.Close()

	m := newRealManager(t, wsURL(server), testManagerConfig())
	connectAndWait(t, m)

	waitFor(t, 2*time.Second, func() bool {
		return conns.Load() == 2 && m.State() == StateConnected
	}, "reconnect")
	if m.LastError() == nil {
		t.Error("expected LastError after the drop")
	}

	if !m.Send(model.NewMessage("after_reconnect", nil)) {
		t.Fatal("Send after reconnect returned false")
	}
	waitFor(t, time.Second, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 1 && received[0] == "after_reconnect"
	}, "frame on new connection")
}
