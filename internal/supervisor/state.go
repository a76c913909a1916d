package supervisor

import (
	"time"

	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol/session"
	"github.com/SolidHal/pwnagotchi-flipper/internal/ui"
)

type Phase string

const (
	PhaseDisconnected Phase = "disconnected"
	PhaseHandshaking  Phase = "handshaking"
	PhaseConnected    Phase = "connected"
)

// State is the per-link connection state. One State exists per Supervisor
// and is only touched from its loop goroutine.
type State struct {
	Phase             Phase
	ConsecutiveErrors int
	ErrorBudget       int
	HandshakeInterval time.Duration
	// LastSnapshot is the snapshot most recently dispatched, nil when the
	// peripheral must receive every field again.
	LastSnapshot *ui.Snapshot
}

func NewState(cfg session.Config) *State {
	cfg = cfg.WithDefaults()
	return &State{
		Phase:             PhaseDisconnected,
		ErrorBudget:       cfg.ErrorBudget,
		HandshakeInterval: cfg.HandshakeInterval,
	}
}

// ClearSnapshot forces the next dispatch to send every field.
func (s *State) ClearSnapshot() {
	s.LastSnapshot = nil
}

func (s *State) enterHandshaking() {
	s.Phase = PhaseHandshaking
}

func (s *State) enterConnected() {
	s.Phase = PhaseConnected
	s.ConsecutiveErrors = 0
	s.LastSnapshot = nil
}

func (s *State) disconnect() {
	s.Phase = PhaseDisconnected
	s.ConsecutiveErrors = 0
	s.LastSnapshot = nil
}

// recordReceiveFailure charges one failure and reports whether the budget is
// spent.
func (s *State) recordReceiveFailure() bool {
	s.ConsecutiveErrors++
	return s.ConsecutiveErrors >= s.ErrorBudget
}

func (s *State) recordReceiveSuccess() {
	s.ConsecutiveErrors = 0
}
