package supervisor

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/SolidHal/pwnagotchi-flipper/internal/observability"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol"
	"github.com/SolidHal/pwnagotchi-flipper/internal/protocol/session"
	"github.com/SolidHal/pwnagotchi-flipper/internal/transport"
	"github.com/SolidHal/pwnagotchi-flipper/internal/ui"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var (
	ErrOpenerRequired  = errors.New("supervisor: opener is required")
	ErrMailboxRequired = errors.New("supervisor: mailbox is required")
)

type Config struct {
	Session  session.Config
	Dispatch ui.Options
}

func DefaultConfig() Config {
	return Config{Session: session.DefaultConfig()}
}

// Status is a point-in-time copy of the link state for readers outside the
// loop goroutine.
type Status struct {
	Phase             Phase      `json:"phase"`
	LinkID            string     `json:"link_id,omitempty"`
	ConsecutiveErrors int        `json:"consecutive_errors"`
	ErrorBudget       int        `json:"error_budget"`
	HandshakeAttempts int        `json:"handshake_attempts"`
	LastHandshake     *time.Time `json:"last_handshake,omitempty"`
	ConnectedSince    *time.Time `json:"connected_since,omitempty"`
	SnapshotVersion   uint64     `json:"snapshot_version"`
}

// Supervisor runs the link state machine on a single goroutine.
type Supervisor struct {
	cfg        Config
	opener     transport.Opener
	mailbox    *ui.Mailbox
	dispatcher *ui.Dispatcher
	router     Router
	state      *State

	link              *session.Link
	linkID            string
	attempts          int
	dispatchedVersion uint64
	rng               *rand.Rand

	mu     sync.Mutex
	status Status
}

func New(cfg Config, opener transport.Opener, mailbox *ui.Mailbox) (*Supervisor, error) {
	if opener == nil {
		return nil, ErrOpenerRequired
	}
	if mailbox == nil {
		return nil, ErrMailboxRequired
	}
	cfg.Session = cfg.Session.WithDefaults()
	s := &Supervisor{
		cfg:        cfg,
		opener:     opener,
		mailbox:    mailbox,
		dispatcher: ui.NewDispatcher(cfg.Dispatch),
		state:      NewState(cfg.Session),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	s.publishStatus()
	return s, nil
}

// Status returns a copy of the current link status.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Run drives the link until ctx is cancelled. Cancellation is observed once
// per iteration, so an in-flight read finishes first. The port is closed on
// return.
func (s *Supervisor) Run(ctx context.Context) error {
	defer s.shutdown()

	log.Info().
		Int("error_budget", s.state.ErrorBudget).
		Dur("handshake_interval", s.state.HandshakeInterval).
		Msg("supervisor.Supervisor.Run start")

	for {
		if ctx.Err() != nil {
			return nil
		}

		if s.state.Phase == PhaseConnected {
			s.step()
			continue
		}

		if err := s.connect(); err != nil {
			s.attempts++
			s.publishStatus()
			log.Warn().
				Err(err).
				Int("attempt", s.attempts).
				Msg("supervisor.Supervisor.Run handshake failed")
			if err := s.waitHandshakeInterval(ctx, s.attempts); err != nil {
				return nil
			}
		}
	}
}

func (s *Supervisor) connect() error {
	if s.link == nil {
		port, err := s.opener.Open()
		if err != nil {
			observability.RecordHandshake(false)
			return fmt.Errorf("%w: open port: %w", protocol.ErrHandshakeFailed, err)
		}
		s.link = session.NewLink(port)
	}

	s.state.enterHandshaking()
	s.publishStatus()

	if err := s.link.Handshake(); err != nil {
		observability.RecordHandshake(false)
		s.state.disconnect()
		if errors.Is(err, session.ErrPort) || errors.Is(err, protocol.ErrShortWrite) {
			s.closeLink()
		}
		return err
	}

	observability.RecordHandshake(true)
	observability.RecordConnected()
	s.state.enterConnected()
	s.attempts = 0
	s.linkID = uuid.NewString()

	// Fresh values per connect; Status copies share these pointers.
	handshake := time.Now()
	since := handshake
	s.mu.Lock()
	s.status.LastHandshake = &handshake
	s.status.ConnectedSince = &since
	s.mu.Unlock()
	s.publishStatus()

	log.Info().
		Str("link_id", s.linkID).
		Msg("supervisor.Supervisor.connect connected")
	return nil
}

// step is one connected iteration: mirror the latest snapshot, then service
// one inbound frame.
func (s *Supervisor) step() {
	s.dispatchLatest()

	pkt, err := s.link.Receive()
	class := protocol.Classify(err)
	observability.RecordReceive(class.String())

	switch {
	case err == nil:
		s.state.recordReceiveSuccess()
		observability.RecordConsecutiveErrors(0)
		if routeErr := s.router.Route(s.link, s.state, pkt); routeErr != nil {
			log.Debug().Err(routeErr).Str("link_id", s.linkID).Msg("supervisor.Supervisor.step route failed")
		}
	case !class.CountsTowardBudget():
		// idle line
	default:
		exhausted := s.state.recordReceiveFailure()
		observability.RecordConsecutiveErrors(s.state.ConsecutiveErrors)
		log.Warn().
			Err(err).
			Str("link_id", s.linkID).
			Str("class", class.String()).
			Int("consecutive_errors", s.state.ConsecutiveErrors).
			Int("error_budget", s.state.ErrorBudget).
			Msg("supervisor.Supervisor.step receive failed")
		if exhausted {
			s.disconnect("error_budget")
		}
	}
	s.publishStatus()
}

func (s *Supervisor) dispatchLatest() {
	snap, version, ok := s.mailbox.Latest()
	if !ok {
		return
	}
	if s.state.LastSnapshot != nil && version == s.dispatchedVersion {
		return
	}

	report := s.dispatcher.Dispatch(s.link, s.state.LastSnapshot, snap)
	s.state.LastSnapshot = &snap
	s.dispatchedVersion = version

	if err := report.Err(); err != nil {
		log.Debug().
			Err(err).
			Str("link_id", s.linkID).
			Msg("supervisor.Supervisor.dispatchLatest partial")
	}
}

func (s *Supervisor) disconnect(reason string) {
	log.Warn().
		Str("link_id", s.linkID).
		Str("reason", reason).
		Msg("supervisor.Supervisor.disconnect")
	observability.RecordDisconnect(reason)
	s.state.disconnect()
	s.closeLink()
	s.linkID = ""
	s.mu.Lock()
	s.status.ConnectedSince = nil
	s.mu.Unlock()
}

func (s *Supervisor) closeLink() {
	if s.link == nil {
		return
	}
	if err := s.link.Close(); err != nil {
		log.Debug().Err(err).Msg("supervisor.Supervisor.closeLink failed")
	}
	s.link = nil
}

func (s *Supervisor) shutdown() {
	if s.state.Phase == PhaseConnected {
		observability.RecordDisconnect("shutdown")
	}
	s.state.disconnect()
	s.closeLink()
	s.linkID = ""
	s.mu.Lock()
	s.status.ConnectedSince = nil
	s.mu.Unlock()
	s.publishStatus()
	log.Info().Msg("supervisor.Supervisor.Run stopped")
}

func (s *Supervisor) waitHandshakeInterval(ctx context.Context, attempt int) error {
	delay := s.cfg.Session.RetryDelay(attempt, s.rng)
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *Supervisor) publishStatus() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.Phase = s.state.Phase
	s.status.LinkID = s.linkID
	s.status.ConsecutiveErrors = s.state.ConsecutiveErrors
	s.status.ErrorBudget = s.state.ErrorBudget
	s.status.HandshakeAttempts = s.attempts
	s.status.SnapshotVersion = s.dispatchedVersion
}
