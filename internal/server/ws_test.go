package server

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SolidHal/pwnagotchi-flipper/internal/supervisor"
	"github.com/SolidHal/pwnagotchi-flipper/internal/testutil/testlog"
	"github.com/SolidHal/pwnagotchi-flipper/internal/ui"
	"github.com/gorilla/websocket"
)

type mutableStatus struct {
	mu sync.Mutex
	st supervisor.Status
}

func (m *mutableStatus) Status() supervisor.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

func (m *mutableStatus) set(st supervisor.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st = st
}

func TestStatusStreamPushesChanges(t *testing.T) {
	testlog.Start(t)
	provider := &mutableStatus{st: supervisor.Status{Phase: supervisor.PhaseDisconnected}}
	srv, err := New(Config{Addr: "127.0.0.1:0", PushInterval: 10 * time.Millisecond}, provider, ui.NewMailbox())
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/status"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var got supervisor.Status
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read initial status: %v", err)
	}
	if got.Phase != supervisor.PhaseDisconnected {
		t.Fatalf("unexpected initial phase: %s", got.Phase)
	}

	provider.set(supervisor.Status{Phase: supervisor.PhaseConnected, LinkID: "link-2"})
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read pushed status: %v", err)
	}
	if got.Phase != supervisor.PhaseConnected || got.LinkID != "link-2" {
		t.Fatalf("unexpected pushed status: %+v", got)
	}

	srv.Close()
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Fatalf("expected stream to close after server close")
	}
}

func TestStatusStreamRejectsForeignOrigin(t *testing.T) {
	testlog.Start(t)
	srv, _ := newTestServer(t, supervisor.Status{})
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/status"
	header := map[string][]string{"Origin": {"http://evil.example"}}
	if _, _, err := websocket.DefaultDialer.Dial(url, header); err == nil {
		t.Fatalf("expected foreign origin to be rejected")
	}
}
