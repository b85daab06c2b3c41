package liveness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrEthical07/goFaceAuth/provider"
	"github.com/go-logr/logr"
	"github.com/google/uuid"
)

// State is a liveness session lifecycle state.
type State uint8

const (
	// Collecting accepts frames.
	Collecting State = iota
	// Evaluating is querying the provider.
	Evaluating
	// Live is the terminal positive verdict.
	Live
	// NotLive is the terminal negative verdict.
	NotLive
	// Aborted ends a session without a verdict.
	Aborted
)

// String returns the lower-case state name.
func (s State) String() string {
	switch s {
	case Collecting:
		return "collecting"
	case Evaluating:
		return "evaluating"
	case Live:
		return "live"
	case NotLive:
		return "not_live"
	case Aborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition is possible from s.
func (s State) Terminal() bool {
	return s == Live || s == NotLive || s == Aborted
}

var (
	// ErrInsufficientFrames is returned by Evaluate when fewer than
	// Config.MinFrames frames were collected.
	ErrInsufficientFrames = errors.New("insufficient liveness frames")
	// ErrSessionClosed is returned when a session is used after it left the
	// collecting state.
	ErrSessionClosed = errors.New("liveness session closed")
	// ErrAborted wraps the cause of an aborted evaluation.
	ErrAborted = errors.New("liveness session aborted")
)

const (
	blinkWeight    = 20
	movementWeight = 15
	signalCount    = 3
)

// Config controls evaluation.
type Config struct {
	MinFrames         int
	MaxMovementFrames int
	// Threshold is the fraction in (0, 1] the aggregate confidence must
	// reach, scaled by 100.
	Threshold float64
	Logger    logr.Logger
}

// DefaultConfig returns the standard evaluation settings.
func DefaultConfig() Config {
	return Config{
		MinFrames:         3,
		MaxMovementFrames: 5,
		Threshold:         0.7,
		Logger:            logr.Discard(),
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.MinFrames < 3 {
		c.MinFrames = def.MinFrames
	}
	if c.MaxMovementFrames < c.MinFrames {
		c.MaxMovementFrames = def.MaxMovementFrames
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		c.Threshold = def.Threshold
	}
	if c.Logger.GetSink() == nil {
		c.Logger = def.Logger
	}
	return c
}

// Result is the terminal outcome of an evaluation.
type Result struct {
	Live           bool
	Confidence     float64
	BaseConfidence float64
	Blink          bool
	Movement       bool
	Details        map[string]any
}

// Session is a single-use liveness evaluation. It is safe for concurrent
// use, though frames are expected from a single capture source.
type Session struct {
	id      string
	signals provider.Client
	cfg     Config

	mu     sync.Mutex
	state  State
	frames [][]byte
	result Result
}

// NewSession returns a session in the Collecting state.
func NewSession(signals provider.Client, cfg Config) *Session {
	return &Session{
		id:      uuid.NewString(),
		signals: signals,
		cfg:     cfg.normalized(),
		state:   Collecting,
	}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Frames returns how many frames were collected so far.
func (s *Session) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// Result returns the terminal result, if any.
func (s *Session) Result() (Result, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.state == Live || s.state == NotLive
}

// AddFrame appends one frame.
func (s *Session) AddFrame(frame []byte) error {
	return s.AddFrames(frame)
}

// AddFrames appends frames in capture order.
func (s *Session) AddFrames(frames ...[]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Collecting {
		return ErrSessionClosed
	}
	s.frames = append(s.frames, frames...)
	return nil
}

// Abort moves a non-terminal session to Aborted. It returns false when the
// session had already concluded.
func (s *Session) Abort() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Terminal() {
		return false
	}
	s.state = Aborted
	s.frames = nil
	return true
}

// Evaluate runs the provider calls and moves the session to a terminal
// state. With too few frames it returns ErrInsufficientFrames and leaves
// the session collecting.
func (s *Session) Evaluate(ctx context.Context) (Result, error) {
	s.mu.Lock()
	if s.state != Collecting {
		s.mu.Unlock()
		return Result{}, ErrSessionClosed
	}
	if len(s.frames) < s.cfg.MinFrames {
		n := len(s.frames)
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: have %d, need %d", ErrInsufficientFrames, n, s.cfg.MinFrames)
	}
	s.state = Evaluating
	frames := s.frames
	s.mu.Unlock()

	res, err := s.evaluate(ctx, frames)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frames = nil
	if s.state == Aborted {
		// Abort was called while the provider calls were in flight.
		return Result{}, fmt.Errorf("%w: aborted by caller", ErrAborted)
	}
	if err != nil {
		s.state = Aborted
		return Result{}, err
	}
	s.result = res
	if res.Live {
		s.state = Live
	} else {
		s.state = NotLive
	}
	return res, nil
}

func (s *Session) evaluate(ctx context.Context, frames [][]byte) (Result, error) {
	log := s.cfg.Logger.WithValues("session", s.id)

	sig, err := s.signals.Liveness(ctx, frames)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrAborted, err)
	}
	if !sig.IsLive {
		return Result{Details: sig.Details, BaseConfidence: sig.Confidence}, nil
	}

	blink, err := s.signals.Blink(ctx, frames[0], frames[1], frames[2])
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrAborted, ctxErr)
		}
		log.Info("blink signal unavailable, counting as absent", "error", err.Error())
		blink = false
	}

	n := min(len(frames), s.cfg.MaxMovementFrames)
	movement, err := s.signals.Movement(ctx, frames[:n])
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, fmt.Errorf("%w: %w", ErrAborted, ctxErr)
		}
		log.Info("movement signal unavailable, counting as absent", "error", err.Error())
		movement = false
	}

	confidence := Aggregate(sig.Confidence, blink, movement)
	return Result{
		Live:           confidence >= s.cfg.Threshold*100,
		Confidence:     confidence,
		BaseConfidence: sig.Confidence,
		Blink:          blink,
		Movement:       movement,
		Details:        sig.Details,
	}, nil
}

// Aggregate combines the base liveness confidence with the secondary
// signals.
func Aggregate(base float64, blink, movement bool) float64 {
	total := base
	if blink {
		total += blinkWeight
	}
	if movement {
		total += movementWeight
	}
	return total / signalCount
}

// Evaluate is a convenience for a one-shot session over a complete frame
// batch.
func Evaluate(ctx context.Context, signals provider.Client, cfg Config, frames [][]byte) (Result, State, error) {
	s := NewSession(signals, cfg)
	if err := s.AddFrames(frames...); err != nil {
		return Result{}, s.State(), err
	}
	res, err := s.Evaluate(ctx)
	return res, s.State(), err
}
