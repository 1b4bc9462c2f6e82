// Package engine drives one interview session turn by turn: narrate the
// current question, count down, listen for the spoken answer, capture it,
// advance. All external signals (narration callbacks, timer ticks, manual
// actions) funnel into mutex-guarded handlers, so no two transitions are
// ever in flight for the same session.
package engine

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/prepwise/intervu/internal/interview"
	"github.com/prepwise/intervu/internal/speech"
	"github.com/prepwise/intervu/internal/utils"
	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateNarrating
	StateCountingDown
	StateListening
	StateCaptured
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateNarrating:
		return "narrating"
	case StateCountingDown:
		return "counting_down"
	case StateListening:
		return "listening"
	case StateCaptured:
		return "captured"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

var (
	ErrAlreadyStarted = errors.New("engine is already started")
	ErrNoActiveTurn   = errors.New("no active turn to submit")
)

// Timer is the stoppable handle returned by the timer factory.
type Timer interface {
	Stop() bool
}

// TimerFactory schedules f after d. Injectable so tests drive ticks without
// real clocks.
type TimerFactory func(d time.Duration, f func()) Timer

func defaultTimerFactory(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

// Config tunes the per-turn timing.
type Config struct {
	// CountdownStart is the number of countdown ticks before capture
	// starts automatically. Defaults to 3.
	CountdownStart int
	// TickInterval is the countdown resolution. Defaults to one second.
	TickInterval time.Duration
	// GraceDelay is how long to wait after stopping capture before the
	// transcript is finalized, allowing the last recognition to flush.
	// Zero finalizes immediately.
	GraceDelay time.Duration
	// Language is passed to the capture capability.
	Language string
}

// Hooks let the caller observe turn progress. All of them are optional and
// are invoked outside the engine lock.
type Hooks struct {
	OnQuestion      func(index int, text string)
	OnCountdownTick func(remaining int)
	OnListening     func()
	OnFinished      func(s *interview.Session)
}

type Engine struct {
	ctx         context.Context
	session     *interview.Session
	narrator    speech.Narrator
	transcriber speech.Transcriber
	logger      *zap.Logger
	cfg         Config
	hooks       Hooks
	newTimer    TimerFactory

	mu             sync.Mutex
	state          State
	remaining      int
	countdownTimer Timer
}

func New(ctx context.Context, session *interview.Session, narrator speech.Narrator, transcriber speech.Transcriber, cfg Config, hooks Hooks, logger *zap.Logger) *Engine {
	if cfg.CountdownStart <= 0 {
		cfg.CountdownStart = 3
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		ctx:         ctx,
		session:     session,
		narrator:    narrator,
		transcriber: transcriber,
		logger:      logger,
		cfg:         cfg,
		hooks:       hooks,
		newTimer:    defaultTimerFactory,
	}
}

// SetTimerFactory replaces the countdown scheduler. Must be called before Start.
func (e *Engine) SetTimerFactory(factory TimerFactory) {
	if factory != nil {
		e.newTimer = factory
	}
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Start begins the first turn. The question list must be finalized (remote
// result or fallback) before this is called. Any narration or capture left
// over from a previous run is stopped first.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.state != StateIdle {
		e.mu.Unlock()
		return ErrAlreadyStarted
	}
	if _, ok := e.session.CurrentQuestion(); !ok {
		e.mu.Unlock()
		return interview.ErrNoQuestions
	}
	e.mu.Unlock()

	e.narrator.Stop()
	if err := e.transcriber.Stop(); err != nil {
		e.logger.Debug("stopping stale capture", zap.Error(err))
	}
	e.transcriber.Reset()

	e.narrateCurrent()
	return nil
}

// StartCapture is the manual capture toggle: begin listening without waiting
// for the countdown. During a countdown it cancels the pending timer; during
// narration the capture runs alongside and the countdown is skipped when the
// narration ends.
func (e *Engine) StartCapture() {
	e.mu.Lock()
	switch e.state {
	case StateIdle, StateCaptured, StateFinished:
		e.mu.Unlock()
		return
	}

	e.stopCountdownLocked()
	preempted := e.state == StateCountingDown
	if preempted {
		e.state = StateListening
	}
	e.mu.Unlock()

	e.startCaptureDevice()

	if preempted && e.hooks.OnListening != nil {
		e.hooks.OnListening()
	}
}

// StopCapture is the manual stop toggle. While listening it is equivalent to
// submitting the answer early; otherwise it only stops the device.
func (e *Engine) StopCapture() {
	e.mu.Lock()
	listening := e.state == StateListening
	e.mu.Unlock()

	if listening {
		_ = e.Submit()
		return
	}

	if err := e.transcriber.Stop(); err != nil {
		e.logger.Warn("stopping capture failed", zap.Error(err))
	}
}

// Submit finalizes the current answer. Capture is stopped and, after the
// grace delay, whatever transcript was recognized (possibly empty) is
// recorded and the engine advances. Valid during narration and countdown as
// well, so a turn can never block advancement.
func (e *Engine) Submit() error {
	e.mu.Lock()
	switch e.state {
	case StateIdle, StateCaptured, StateFinished:
		e.mu.Unlock()
		return ErrNoActiveTurn
	}

	turn := e.session.CurrentIndex()
	e.stopCountdownLocked()
	e.state = StateCaptured
	e.mu.Unlock()

	e.narrator.Stop()
	if e.transcriber.Listening() {
		if err := e.transcriber.Stop(); err != nil {
			e.logger.Warn("stopping capture failed", zap.Error(err))
		}
	}

	if e.cfg.GraceDelay <= 0 {
		e.finalize(turn)
		return nil
	}

	go func() {
		_ = utils.WaitFor(e.ctx, e.cfg.GraceDelay)
		e.finalize(turn)
	}()

	return nil
}

func (e *Engine) narrateCurrent() {
	e.mu.Lock()
	question, ok := e.session.CurrentQuestion()
	if !ok {
		e.mu.Unlock()
		return
	}
	turn := e.session.CurrentIndex()
	e.state = StateNarrating
	e.mu.Unlock()

	if e.hooks.OnQuestion != nil {
		e.hooks.OnQuestion(turn, question)
	}

	err := e.narrator.Speak(question, speech.NarrationEvents{
		OnEnd: func() { e.narrationDone(turn) },
		OnError: func(err error) {
			e.logger.Warn("narration failed, continuing without it", zap.Error(err))
			e.narrationDone(turn)
		},
	})
	if err != nil {
		e.logger.Warn("narration could not start, continuing without it", zap.Error(err))
		e.narrationDone(turn)
	}
}

// narrationDone runs when the question finished playing (or narration was
// skipped). If capture is already active the countdown is skipped.
func (e *Engine) narrationDone(turn int) {
	e.mu.Lock()
	if e.state != StateNarrating || turn != e.session.CurrentIndex() {
		e.mu.Unlock()
		return
	}

	if e.transcriber.Listening() {
		e.state = StateListening
		e.mu.Unlock()

		if e.hooks.OnListening != nil {
			e.hooks.OnListening()
		}
		return
	}

	e.state = StateCountingDown
	e.remaining = e.cfg.CountdownStart
	remaining := e.remaining
	e.countdownTimer = e.newTimer(e.cfg.TickInterval, func() { e.tick(turn) })
	e.mu.Unlock()

	if e.hooks.OnCountdownTick != nil {
		e.hooks.OnCountdownTick(remaining)
	}
}

func (e *Engine) tick(turn int) {
	e.mu.Lock()
	if e.state != StateCountingDown || turn != e.session.CurrentIndex() {
		e.mu.Unlock()
		return
	}

	e.remaining--
	remaining := e.remaining

	if remaining > 0 {
		e.countdownTimer = e.newTimer(e.cfg.TickInterval, func() { e.tick(turn) })
		e.mu.Unlock()

		if e.hooks.OnCountdownTick != nil {
			e.hooks.OnCountdownTick(remaining)
		}
		return
	}

	e.countdownTimer = nil
	e.state = StateListening
	e.mu.Unlock()

	if e.hooks.OnCountdownTick != nil {
		e.hooks.OnCountdownTick(0)
	}

	e.startCaptureDevice()

	if e.hooks.OnListening != nil {
		e.hooks.OnListening()
	}
}

// finalize records the transcript for the turn and advances. Guarded by the
// turn index, so repeated triggers (manual stop plus submit, late grace
// timers) are idempotent.
func (e *Engine) finalize(turn int) {
	e.mu.Lock()
	if e.state != StateCaptured || turn != e.session.CurrentIndex() {
		e.mu.Unlock()
		return
	}

	text := strings.TrimSpace(e.transcriber.Transcript())
	if err := e.session.RecordAnswer(text); err != nil {
		e.mu.Unlock()
		e.logger.Error("recording answer", zap.Error(err))
		return
	}
	e.transcriber.Reset()

	finished := e.session.Completed()
	if finished {
		e.state = StateFinished
	}
	e.mu.Unlock()

	if finished {
		if e.hooks.OnFinished != nil {
			e.hooks.OnFinished(e.session)
		}
		return
	}

	e.narrateCurrent()
}

// startCaptureDevice starts the capture capability. Failures are soft: the
// user can retry with the manual toggle, the interview never gets stuck.
func (e *Engine) startCaptureDevice() {
	err := e.transcriber.Start(speech.CaptureOptions{
		Continuous:     true,
		InterimResults: true,
		Language:       e.cfg.Language,
	})
	if err != nil {
		e.logger.Warn("capture failed to start, retry with the manual toggle", zap.Error(err))
	}
}

func (e *Engine) stopCountdownLocked() {
	if e.countdownTimer != nil {
		e.countdownTimer.Stop()
		e.countdownTimer = nil
	}
}
