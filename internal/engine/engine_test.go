package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prepwise/intervu/internal/interview"
	"github.com/prepwise/intervu/internal/speech"
	"go.uber.org/zap"
)

type fakeNarrator struct {
	mu       sync.Mutex
	spoken   []string
	events   speech.NarrationEvents
	autoEnd  bool
	speakErr error
}

func (n *fakeNarrator) Speak(text string, ev speech.NarrationEvents) error {
	n.mu.Lock()
	n.spoken = append(n.spoken, text)
	n.events = ev
	autoEnd := n.autoEnd
	err := n.speakErr
	n.mu.Unlock()

	if err != nil {
		return err
	}
	if autoEnd && ev.OnEnd != nil {
		ev.OnEnd()
	}
	return nil
}

func (n *fakeNarrator) Stop() {}

func (n *fakeNarrator) finishNarration() {
	n.mu.Lock()
	ev := n.events
	n.mu.Unlock()

	if ev.OnEnd != nil {
		ev.OnEnd()
	}
}

func (n *fakeNarrator) spokenCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.spoken)
}

type fakeTranscriber struct {
	mu         sync.Mutex
	listening  bool
	transcript string
	startErr   error
	starts     int
}

func (f *fakeTranscriber) Start(speech.CaptureOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		return f.startErr
	}
	f.listening = true
	f.starts++
	return nil
}

func (f *fakeTranscriber) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listening = false
	return nil
}

func (f *fakeTranscriber) Listening() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listening
}

func (f *fakeTranscriber) Transcript() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcript
}

func (f *fakeTranscriber) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript = ""
}

func (f *fakeTranscriber) setTranscript(text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transcript = text
}

type fakeTimer struct {
	mu      sync.Mutex
	f       func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return true
}

func (t *fakeTimer) fire() {
	t.mu.Lock()
	stopped := t.stopped
	f := t.f
	t.mu.Unlock()

	if !stopped {
		f()
	}
}

type timerRecorder struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (r *timerRecorder) factory(_ time.Duration, f func()) Timer {
	timer := &fakeTimer{f: f}
	r.mu.Lock()
	r.timers = append(r.timers, timer)
	r.mu.Unlock()
	return timer
}

func (r *timerRecorder) latest() *fakeTimer {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.timers) == 0 {
		return nil
	}
	return r.timers[len(r.timers)-1]
}

func (r *timerRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.timers)
}

func newReadySession(t *testing.T, mode interview.Mode) *interview.Session {
	t.Helper()

	s, err := interview.NewSession(mode, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.SetQuestions([]string{"Q1?", "Q2?", "Q3?", "Q4?", "Q5?"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

func newTestEngine(t *testing.T, session *interview.Session, narrator *fakeNarrator, transcriber *fakeTranscriber, hooks Hooks) (*Engine, *timerRecorder) {
	t.Helper()

	recorder := &timerRecorder{}
	eng := New(context.Background(), session, narrator, transcriber, Config{
		CountdownStart: 3,
		GraceDelay:     0,
	}, hooks, zap.NewNop())
	eng.SetTimerFactory(recorder.factory)

	return eng, recorder
}

// runCountdownToZero fires countdown ticks until capture starts.
func runCountdownToZero(t *testing.T, eng *Engine, recorder *timerRecorder) {
	t.Helper()

	for i := 0; i < 3; i++ {
		if eng.State() != StateCountingDown {
			t.Fatalf("expected counting_down before tick %d, got %s", i, eng.State())
		}
		recorder.latest().fire()
	}

	if eng.State() != StateListening {
		t.Fatalf("expected listening after countdown, got %s", eng.State())
	}
}

func TestEngineFullRun(t *testing.T) {
	t.Parallel()

	session := newReadySession(t, interview.ModeBehavioral)
	narrator := &fakeNarrator{autoEnd: true}
	transcriber := &fakeTranscriber{}

	var finished *interview.Session
	hooks := Hooks{
		OnFinished: func(s *interview.Session) { finished = s },
	}

	eng, recorder := newTestEngine(t, session, narrator, transcriber, hooks)

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for turn := 0; turn < interview.QuestionCount; turn++ {
		runCountdownToZero(t, eng, recorder)

		if !transcriber.Listening() {
			t.Fatalf("expected capture to be active on turn %d", turn)
		}

		transcriber.setTranscript(fmt.Sprintf("answer %d", turn))
		if err := eng.Submit(); err != nil {
			t.Fatalf("unexpected error on turn %d: %v", turn, err)
		}
	}

	if eng.State() != StateFinished {
		t.Fatalf("expected finished state, got %s", eng.State())
	}
	if finished == nil {
		t.Fatalf("expected the finished hook to fire")
	}
	if !session.Completed() {
		t.Fatalf("expected the session to be complete")
	}

	questions := session.Questions()
	for i, a := range session.Answers() {
		if a.Question != questions[i] {
			t.Fatalf("answer %d paired with %q, expected %q", i, a.Question, questions[i])
		}
		if a.Text != fmt.Sprintf("answer %d", i) {
			t.Fatalf("answer %d text is %q", i, a.Text)
		}
	}

	if narrator.spokenCount() != interview.QuestionCount {
		t.Fatalf("expected %d narrations, got %d", interview.QuestionCount, narrator.spokenCount())
	}
}

func TestManualCaptureCancelsCountdown(t *testing.T) {
	t.Parallel()

	session := newReadySession(t, interview.ModeBehavioral)
	narrator := &fakeNarrator{autoEnd: true}
	transcriber := &fakeTranscriber{}

	var ticks []int
	hooks := Hooks{
		OnCountdownTick: func(remaining int) { ticks = append(ticks, remaining) },
	}

	eng, recorder := newTestEngine(t, session, narrator, transcriber, hooks)

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if eng.State() != StateCountingDown {
		t.Fatalf("expected counting_down, got %s", eng.State())
	}

	pending := recorder.latest()
	eng.StartCapture()

	if eng.State() != StateListening {
		t.Fatalf("expected listening after manual capture, got %s", eng.State())
	}
	if !transcriber.Listening() {
		t.Fatalf("expected capture to be active")
	}

	// A tick racing the cancellation must be discarded.
	before := len(ticks)
	pending.fire()
	pending.f()
	if len(ticks) != before {
		t.Fatalf("expected no countdown ticks after preemption, got %v", ticks)
	}
}

func TestSubmitWithEmptyTranscript(t *testing.T) {
	t.Parallel()

	session := newReadySession(t, interview.ModeBehavioral)
	narrator := &fakeNarrator{autoEnd: true}
	transcriber := &fakeTranscriber{}

	eng, recorder := newTestEngine(t, session, narrator, transcriber, Hooks{})

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runCountdownToZero(t, eng, recorder)

	if err := eng.Submit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	answers := session.Answers()
	if len(answers) != 1 {
		t.Fatalf("expected 1 answer, got %d", len(answers))
	}
	if answers[0].Text != "" {
		t.Fatalf("expected an empty answer, got %q", answers[0].Text)
	}

	// The engine moved on to the next turn.
	if eng.State() != StateCountingDown {
		t.Fatalf("expected the next turn to start, got %s", eng.State())
	}
}

func TestCountdownSkippedWhenAlreadyListening(t *testing.T) {
	t.Parallel()

	session := newReadySession(t, interview.ModeBehavioral)
	narrator := &fakeNarrator{}
	transcriber := &fakeTranscriber{}

	eng, recorder := newTestEngine(t, session, narrator, transcriber, Hooks{})

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if eng.State() != StateNarrating {
		t.Fatalf("expected narrating, got %s", eng.State())
	}

	// The user starts capture while the question is still being read.
	eng.StartCapture()
	if eng.State() != StateNarrating {
		t.Fatalf("expected narration to continue, got %s", eng.State())
	}

	narrator.finishNarration()

	if eng.State() != StateListening {
		t.Fatalf("expected listening after narration, got %s", eng.State())
	}
	if recorder.count() != 0 {
		t.Fatalf("expected no countdown timer, got %d", recorder.count())
	}
}

func TestNarrationFailureSkipsToCountdown(t *testing.T) {
	t.Parallel()

	session := newReadySession(t, interview.ModeBehavioral)
	narrator := &fakeNarrator{speakErr: errors.New("no audio device")}
	transcriber := &fakeTranscriber{}

	eng, _ := newTestEngine(t, session, narrator, transcriber, Hooks{})

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if eng.State() != StateCountingDown {
		t.Fatalf("expected the countdown despite narration failure, got %s", eng.State())
	}
}

func TestCaptureStartFailureIsSoft(t *testing.T) {
	t.Parallel()

	session := newReadySession(t, interview.ModeBehavioral)
	narrator := &fakeNarrator{autoEnd: true}
	transcriber := &fakeTranscriber{startErr: errors.New("microphone busy")}

	eng, recorder := newTestEngine(t, session, narrator, transcriber, Hooks{})

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runCountdownToZero(t, eng, recorder)

	if transcriber.Listening() {
		t.Fatalf("expected capture to be inactive after start failure")
	}

	// The microphone frees up and the user retries manually.
	transcriber.mu.Lock()
	transcriber.startErr = nil
	transcriber.mu.Unlock()

	eng.StartCapture()
	if !transcriber.Listening() {
		t.Fatalf("expected the manual retry to start capture")
	}

	// Submitting still works even if capture never started.
	if err := eng.Submit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(session.Answers()) != 1 {
		t.Fatalf("expected the answer to be recorded")
	}
}

func TestManualStopFinalizesEarly(t *testing.T) {
	t.Parallel()

	session := newReadySession(t, interview.ModeBehavioral)
	narrator := &fakeNarrator{autoEnd: true}
	transcriber := &fakeTranscriber{}

	eng, recorder := newTestEngine(t, session, narrator, transcriber, Hooks{})

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runCountdownToZero(t, eng, recorder)
	transcriber.setTranscript("cut short")

	eng.StopCapture()

	answers := session.Answers()
	if len(answers) != 1 || answers[0].Text != "cut short" {
		t.Fatalf("expected the early answer to be recorded, got %v", answers)
	}
}

func TestSubmitIsIdempotentPerTurn(t *testing.T) {
	t.Parallel()

	session := newReadySession(t, interview.ModeBehavioral)
	narrator := &fakeNarrator{}
	transcriber := &fakeTranscriber{}

	eng, _ := newTestEngine(t, session, narrator, transcriber, Hooks{})

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := eng.Submit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A stale finalization of the previous turn (late grace timer, a second
	// manual stop) must not record a duplicate answer.
	eng.finalize(0)

	if len(session.Answers()) != 1 {
		t.Fatalf("expected exactly one answer, got %d", len(session.Answers()))
	}
	if eng.State() != StateNarrating {
		t.Fatalf("expected the next turn to be narrating, got %s", eng.State())
	}
}

func TestStartRequiresQuestions(t *testing.T) {
	t.Parallel()

	s, err := interview.NewSession(interview.ModeBehavioral, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	eng, _ := newTestEngine(t, s, &fakeNarrator{}, &fakeTranscriber{}, Hooks{})

	if err := eng.Start(); !errors.Is(err, interview.ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
}

func TestGraceDelayFinalizesAfterFlush(t *testing.T) {
	t.Parallel()

	session := newReadySession(t, interview.ModeBehavioral)
	narrator := &fakeNarrator{autoEnd: true}
	transcriber := &fakeTranscriber{}

	recorder := &timerRecorder{}
	eng := New(context.Background(), session, narrator, transcriber, Config{
		CountdownStart: 3,
		GraceDelay:     10 * time.Millisecond,
	}, Hooks{}, zap.NewNop())
	eng.SetTimerFactory(recorder.factory)

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	runCountdownToZero(t, eng, recorder)

	// The final recognition flushes during the grace window.
	if err := eng.Submit(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	transcriber.setTranscript("late flush")

	deadline := time.Now().Add(time.Second)
	for len(session.Answers()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("answer was never finalized")
		}
		time.Sleep(time.Millisecond)
	}

	if got := session.Answers()[0].Text; got != "late flush" {
		t.Fatalf("expected the flushed transcript, got %q", got)
	}
}

// Offline end to end: no completion service for either generation or
// feedback. The session still completes with the literal fallback questions
// and a heuristic report.
func TestOfflineInterviewEndToEnd(t *testing.T) {
	t.Parallel()

	session, err := interview.NewSession(interview.ModeBehavioral, "", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	generator := interview.NewGenerator(nil, nil, zap.NewNop(), 0)
	if err := generator.Generate(context.Background(), session); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	expected := interview.FallbackQuestions(interview.ModeBehavioral)
	questions := session.Questions()
	for i := range expected {
		if questions[i] != expected[i] {
			t.Fatalf("question %d: expected the fallback %q, got %q", i, expected[i], questions[i])
		}
	}

	narrator := &fakeNarrator{autoEnd: true}
	transcriber := &fakeTranscriber{}

	recorder := &timerRecorder{}
	eng := New(context.Background(), session, narrator, transcriber, Config{GraceDelay: 0}, Hooks{}, zap.NewNop())
	eng.SetTimerFactory(recorder.factory)

	if err := eng.Start(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for turn := 0; turn < interview.QuestionCount; turn++ {
		runCountdownToZero(t, eng, recorder)
		transcriber.setTranscript("I worked through a similar situation on my last team.")
		if err := eng.Submit(); err != nil {
			t.Fatalf("unexpected error on turn %d: %v", turn, err)
		}
	}

	report, err := interview.NewSynthesizer(nil, zap.NewNop(), 0).Evaluate(context.Background(), session)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !strings.Contains(report, "## Score") {
		t.Fatalf("expected a score heading:\n%s", report)
	}
	if !strings.Contains(report, "## Short Suggestion") {
		t.Fatalf("expected a short suggestion heading:\n%s", report)
	}
}
