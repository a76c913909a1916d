package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol/frame"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol/session"
	"github.com/SolidHal/pwnagotchi-flipper/internal/testutil/testlog"
	"github.com/SolidHal/pwnagotchi-flipper/internal/transport"
	"github.com/SolidHal/pwnagotchi-flipper/internal/transport/transporttest"
	"github.com/SolidHal/pwnagotchi-flipper/internal/ui"
	"github.com/google/uuid"
)

var (
	ackFrame = []byte{0x02, 0x06, 0x03}
	nakFrame = []byte{0x02, 0x15, 0x03}
	synFrame = []byte{0x02, 0x16, 0x03}
)

func testConfig() Config {
	return Config{
		Session: session.Config{
			HandshakeInterval: time.Millisecond,
			ErrorBudget:       session.DefaultErrorBudget,
		},
	}
}

func sampleSnapshot() ui.Snapshot {
	return ui.Snapshot{
		Face:       "(•‿‿•)",
		Name:       "pwny",
		Channel:    "6",
		APs:        "3 (12)",
		Uptime:     "00:01:02",
		Mode:       "AUTO",
		Handshakes: "2 (5)",
		Status:     "hello",
	}
}

// replyOnSyn answers the nth SYN with script[n] and every other frame like a
// healthy peripheral.
func replyOnSyn(script ...[]transporttest.Read) func([]byte) []transporttest.Read {
	syns := 0
	return func(f []byte) []transporttest.Read {
		if bytes.Equal(f, synFrame) {
			if syns < len(script) {
				out := script[syns]
				syns++
				return out
			}
			return []transporttest.Read{{Data: ackFrame}}
		}
		return transporttest.AckNonControl(f)
	}
}

func reads(frames ...[]byte) []transporttest.Read {
	out := make([]transporttest.Read, 0, len(frames))
	for _, f := range frames {
		out = append(out, transporttest.Read{Data: f})
	}
	return out
}

func repeat(b []byte, n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = b
	}
	return out
}

func newSupervisor(t *testing.T, opener transport.Opener, mailbox *ui.Mailbox) *Supervisor {
	t.Helper()
	if mailbox == nil {
		mailbox = ui.NewMailbox()
	}
	sup, err := New(testConfig(), opener, mailbox)
	if err != nil {
		t.Fatalf("new supervisor: %v", err)
	}
	return sup
}

func TestNewRequiresOpenerAndMailbox(t *testing.T) {
	testlog.Start(t)
	if _, err := New(DefaultConfig(), nil, ui.NewMailbox()); !errors.Is(err, ErrOpenerRequired) {
		t.Fatalf("expected ErrOpenerRequired, got %v", err)
	}
	if _, err := New(DefaultConfig(), transporttest.New().Opener(), nil); !errors.Is(err, ErrMailboxRequired) {
		t.Fatalf("expected ErrMailboxRequired, got %v", err)
	}
}

func TestStateErrorBudget(t *testing.T) {
	testlog.Start(t)
	state := NewState(session.DefaultConfig())
	state.enterConnected()
	for i := 1; i < session.DefaultErrorBudget; i++ {
		if state.recordReceiveFailure() {
			t.Fatalf("budget exhausted early at failure %d", i)
		}
	}
	state.recordReceiveSuccess()
	if state.ConsecutiveErrors != 0 {
		t.Fatalf("expected errors reset, got %d", state.ConsecutiveErrors)
	}
	for i := 1; i <= session.DefaultErrorBudget; i++ {
		if exhausted := state.recordReceiveFailure(); exhausted != (i == session.DefaultErrorBudget) {
			t.Fatalf("failure %d: exhausted=%v", i, exhausted)
		}
	}
}

func TestRouterRepliesAckToSyn(t *testing.T) {
	testlog.Start(t)
	port := transporttest.New()
	state := NewState(session.DefaultConfig())
	if err := (Router{}).Route(session.NewLink(port), state, frame.Packet{Command: protocol.OpSYN}); err != nil {
		t.Fatalf("route: %v", err)
	}
	writes := port.Writes()
	if len(writes) != 1 || !bytes.Equal(writes[0], ackFrame) {
		t.Fatalf("expected single ACK frame, got % x", writes)
	}
}

func TestRouterRefusesUnknownAndReservedCommands(t *testing.T) {
	testlog.Start(t)
	for _, cmd := range []byte{0xFF, protocol.PeerReboot, protocol.PeerShutdown, protocol.PeerMode, protocol.PeerClockSet} {
		port := transporttest.New()
		state := NewState(session.DefaultConfig())
		if err := (Router{}).Route(session.NewLink(port), state, frame.Packet{Command: cmd}); err != nil {
			t.Fatalf("route 0x%02X: %v", cmd, err)
		}
		writes := port.Writes()
		if len(writes) != 1 || !bytes.Equal(writes[0], nakFrame) {
			t.Fatalf("0x%02X: expected single NAK frame, got % x", cmd, writes)
		}
	}
}

func TestRouterRefreshClearsSnapshot(t *testing.T) {
	testlog.Start(t)
	port := transporttest.New()
	state := NewState(session.DefaultConfig())
	snap := sampleSnapshot()
	state.LastSnapshot = &snap

	if err := (Router{}).Route(session.NewLink(port), state, frame.Packet{Command: protocol.PeerUIRefresh}); err != nil {
		t.Fatalf("route: %v", err)
	}
	if state.LastSnapshot != nil {
		t.Fatalf("expected snapshot cleared")
	}
	writes := port.Writes()
	if len(writes) != 1 || !bytes.Equal(writes[0], ackFrame) {
		t.Fatalf("expected single ACK frame, got % x", writes)
	}
}

func TestRunDisconnectsAfterErrorBudget(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad := []byte{0x01}
	port := transporttest.New()
	port.OnWrite = replyOnSyn(
		reads(append([][]byte{ackFrame}, repeat(bad, session.DefaultErrorBudget)...)...),
	)
	port.OnIdle = cancel

	sup := newSupervisor(t, port.Opener(), nil)
	if err := sup.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if port.Opens() != 2 {
		t.Fatalf("expected reopen after budget exhaustion, opens=%d", port.Opens())
	}
	if port.Resets() != session.DefaultErrorBudget {
		t.Fatalf("expected one input reset per malformed frame, got %d", port.Resets())
	}
	if !port.Closed() {
		t.Fatalf("expected port closed on shutdown")
	}
	status := sup.Status()
	if status.Phase != PhaseDisconnected || status.LinkID != "" {
		t.Fatalf("unexpected final status: %+v", status)
	}
	if status.ConnectedSince != nil {
		t.Fatalf("expected no connected_since while disconnected, got %v", status.ConnectedSince)
	}
	if status.LastHandshake == nil {
		t.Fatal("expected last handshake to survive disconnect")
	}
}

func TestRunSuccessResetsConsecutiveErrors(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	bad := []byte{0x01}
	script := [][]byte{ackFrame}
	script = append(script, repeat(bad, session.DefaultErrorBudget-1)...)
	script = append(script, synFrame)
	script = append(script, repeat(bad, session.DefaultErrorBudget-1)...)

	port := transporttest.New()
	port.OnWrite = replyOnSyn(reads(script...))

	var sup *Supervisor
	var atIdle Status
	port.OnIdle = func() {
		atIdle = sup.Status()
		cancel()
	}
	sup = newSupervisor(t, port.Opener(), nil)
	if err := sup.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	if port.Opens() != 1 {
		t.Fatalf("expected no reconnect, opens=%d", port.Opens())
	}
	if atIdle.Phase != PhaseConnected {
		t.Fatalf("expected connected at idle, got %s", atIdle.Phase)
	}
	if atIdle.ConsecutiveErrors != session.DefaultErrorBudget-1 {
		t.Fatalf("expected %d consecutive errors, got %d", session.DefaultErrorBudget-1, atIdle.ConsecutiveErrors)
	}
	if atIdle.ConnectedSince == nil || atIdle.LastHandshake == nil {
		t.Fatalf("expected connection timestamps while connected: %+v", atIdle)
	}
	if _, err := uuid.Parse(atIdle.LinkID); err != nil {
		t.Fatalf("expected uuid link id, got %q", atIdle.LinkID)
	}

	acks := 0
	for _, w := range port.Writes() {
		if bytes.Equal(w, ackFrame) {
			acks++
		}
	}
	if acks != 1 {
		t.Fatalf("expected one ACK for the peer SYN, got %d", acks)
	}
}

func TestRunRefreshForcesFullResend(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailbox := ui.NewMailbox()
	mailbox.Publish(sampleSnapshot())

	port := transporttest.New()
	port.OnWrite = replyOnSyn()
	idles := 0
	port.OnIdle = func() {
		idles++
		switch idles {
		case 1:
			port.ClearWrites()
			port.Queue(transporttest.Frame(protocol.PeerUIRefresh))
		default:
			cancel()
		}
	}

	sup := newSupervisor(t, port.Opener(), mailbox)
	if err := sup.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	writes := port.Writes()
	if len(writes) != 7 {
		t.Fatalf("expected ACK plus six field frames, got %d: % x", len(writes), writes)
	}
	if !bytes.Equal(writes[0], ackFrame) {
		t.Fatalf("expected refresh ACK first, got % x", writes[0])
	}
	want := []byte{
		protocol.OpUIFace,
		protocol.OpUIName,
		protocol.OpUIChannel,
		protocol.OpUIUptime,
		protocol.OpUIMode,
		protocol.OpUIStatus,
	}
	for i, op := range want {
		if writes[i+1][1] != op {
			t.Fatalf("field frame %d: expected opcode 0x%02X, got % x", i, op, writes[i+1])
		}
	}
}

func TestRunDispatchesOnlyChangedFields(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mailbox := ui.NewMailbox()
	mailbox.Publish(sampleSnapshot())

	port := transporttest.New()
	port.OnWrite = replyOnSyn()
	idles := 0
	port.OnIdle = func() {
		idles++
		switch idles {
		case 1:
			port.ClearWrites()
			next := sampleSnapshot()
			next.Status = "B"
			mailbox.Publish(next)
		default:
			cancel()
		}
	}

	sup := newSupervisor(t, port.Opener(), mailbox)
	if err := sup.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	writes := port.Writes()
	want := transporttest.Frame(protocol.OpUIStatus, 'B')
	if len(writes) != 1 || !bytes.Equal(writes[0], want) {
		t.Fatalf("expected only status frame % x, got % x", want, writes)
	}
	if sup.Status().SnapshotVersion != 2 {
		t.Fatalf("expected snapshot version 2, got %d", sup.Status().SnapshotVersion)
	}
}

func TestRunRetriesHandshakeWhileSilent(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := transporttest.New()
	idles := 0
	port.OnIdle = func() {
		idles++
		if idles == 3 {
			cancel()
		}
	}

	sup := newSupervisor(t, port.Opener(), nil)
	if err := sup.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	writes := port.Writes()
	if len(writes) != 3 {
		t.Fatalf("expected three SYN attempts, got %d", len(writes))
	}
	for _, w := range writes {
		if !bytes.Equal(w, synFrame) {
			t.Fatalf("expected SYN frame, got % x", w)
		}
	}
	if port.Opens() != 1 {
		t.Fatalf("silent peer should not reopen the port, opens=%d", port.Opens())
	}
	if status := sup.Status(); status.HandshakeAttempts != 3 || status.Phase != PhaseDisconnected {
		t.Fatalf("unexpected status: %+v", status)
	}
	if !port.Closed() {
		t.Fatalf("expected port closed on shutdown")
	}
}

func TestRunOpenFailureIsHandshakeFailure(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	opener := transport.OpenerFunc(func() (transport.Port, error) {
		calls++
		if calls == 2 {
			cancel()
		}
		return nil, errors.New("no such device")
	})

	sup := newSupervisor(t, opener, nil)
	if err := sup.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected two open attempts, got %d", calls)
	}
	if status := sup.Status(); status.HandshakeAttempts != 2 {
		t.Fatalf("expected two failed attempts, got %+v", status)
	}
}

func TestRunReopensAfterPortWriteFailure(t *testing.T) {
	testlog.Start(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	port := transporttest.New()
	port.WriteErr = errors.New("device gone")
	opener := transport.OpenerFunc(func() (transport.Port, error) {
		p, err := port.Opener().Open()
		if port.Opens() == 3 {
			cancel()
		}
		return p, err
	})

	sup := newSupervisor(t, opener, nil)
	if err := sup.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if port.Opens() != 3 {
		t.Fatalf("expected a reopen per failed write, opens=%d", port.Opens())
	}
}

func TestDispatchLatestKeepsUpWithConcurrentPublish(t *testing.T) {
	testlog.Start(t)

	const publishes = 50
	for trial := 0; trial < 20; trial++ {
		mailbox := ui.NewMailbox()
		port := transporttest.New()
		port.OnWrite = transporttest.AckNonControl

		sup := newSupervisor(t, port.Opener(), mailbox)
		sup.link = session.NewLink(port)
		sup.state.enterConnected()

		done := make(chan struct{})
		go func() {
			defer close(done)
			for i := 0; i < publishes; i++ {
				snap := sampleSnapshot()
				snap.Status = fmt.Sprintf("s%d", i)
				mailbox.Publish(snap)
			}
		}()

	dispatching:
		for {
			select {
			case <-done:
				break dispatching
			default:
				sup.dispatchLatest()
			}
		}
		sup.dispatchLatest()
		sup.dispatchLatest()

		want := fmt.Sprintf("s%d", publishes-1)
		if sup.state.LastSnapshot == nil || sup.state.LastSnapshot.Status != want {
			t.Fatalf("trial %d: expected last dispatched status %q, got %+v", trial, want, sup.state.LastSnapshot)
		}
		if sup.dispatchedVersion != publishes {
			t.Fatalf("trial %d: expected dispatched version %d, got %d", trial, publishes, sup.dispatchedVersion)
		}
	}
}
