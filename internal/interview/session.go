// Package interview holds the mock-interview domain: the session aggregate,
// question generation with its fallback bank, and feedback synthesis.
package interview

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// QuestionCount is the fixed number of questions per session.
const QuestionCount = 5

type Mode string

const (
	ModeTechnical  Mode = "technical"
	ModeBehavioral Mode = "behavioral"
)

type Domain string

const (
	DomainFrontend    Domain = "frontend"
	DomainBackend     Domain = "backend"
	DomainFullStack   Domain = "fullstack"
	DomainDataScience Domain = "datascience"
	DomainDevOps      Domain = "devops"
	DomainMobile      Domain = "mobile"
)

var (
	ErrQuestionsAlreadySet = errors.New("questions are already set for this session")
	ErrNoQuestions         = errors.New("session has no questions")
	ErrSessionComplete     = errors.New("all questions are already answered")
	ErrSessionIncomplete   = errors.New("session is not complete yet")
	ErrFeedbackAlreadySet  = errors.New("feedback is already set for this session")
)

// Answer pairs a question with the transcript captured for it.
type Answer struct {
	Question string
	Text     string
}

// Session is the aggregate root for one interview attempt. Questions are set
// atomically once, answers are append-only and always paired with the
// question at the same index, and feedback is set at most once.
type Session struct {
	ID            string
	Mode          Mode
	Domain        Domain
	ResumeContext string

	questions []string
	answers   []Answer
	feedback  string
}

// NewSession creates a session for the given mode. Domain and resume context
// are mutually exclusive, and both require technical mode.
func NewSession(mode Mode, domain Domain, resumeContext string) (*Session, error) {
	resumeContext = strings.TrimSpace(resumeContext)

	if domain != "" && resumeContext != "" {
		return nil, errors.New("domain and resume context are mutually exclusive")
	}

	if mode != ModeTechnical && (domain != "" || resumeContext != "") {
		return nil, fmt.Errorf("domain and resume context require %s mode", ModeTechnical)
	}

	return &Session{
		ID:            uuid.NewString(),
		Mode:          mode,
		Domain:        domain,
		ResumeContext: resumeContext,
	}, nil
}

// SetQuestions assigns the question list exactly once.
func (s *Session) SetQuestions(questions []string) error {
	if len(s.questions) > 0 {
		return ErrQuestionsAlreadySet
	}

	if len(questions) != QuestionCount {
		return fmt.Errorf("expected %d questions, got %d", QuestionCount, len(questions))
	}

	s.questions = append([]string(nil), questions...)
	return nil
}

func (s *Session) Questions() []string {
	return append([]string(nil), s.questions...)
}

// CurrentIndex is the index of the question currently awaiting an answer.
// It equals the number of recorded answers and is terminal at QuestionCount.
func (s *Session) CurrentIndex() int {
	return len(s.answers)
}

// CurrentQuestion returns the question awaiting an answer, or false when the
// session has no questions or is complete.
func (s *Session) CurrentQuestion() (string, bool) {
	if len(s.questions) == 0 || s.Completed() {
		return "", false
	}
	return s.questions[len(s.answers)], true
}

// RecordAnswer appends the transcript for the current question. An empty
// transcript is a valid answer; advancement must never block on it.
func (s *Session) RecordAnswer(text string) error {
	if len(s.questions) == 0 {
		return ErrNoQuestions
	}
	if s.Completed() {
		return ErrSessionComplete
	}

	s.answers = append(s.answers, Answer{
		Question: s.questions[len(s.answers)],
		Text:     text,
	})

	return nil
}

func (s *Session) Answers() []Answer {
	return append([]Answer(nil), s.answers...)
}

// Completed reports whether every question has a recorded answer.
func (s *Session) Completed() bool {
	return len(s.questions) > 0 && len(s.answers) == len(s.questions)
}

// SetFeedback stores the final normalized report. It is valid only once and
// only after the session is complete; the session is read-only afterwards.
func (s *Session) SetFeedback(report string) error {
	if !s.Completed() {
		return ErrSessionIncomplete
	}
	if s.feedback != "" {
		return ErrFeedbackAlreadySet
	}

	s.feedback = report
	return nil
}

func (s *Session) Feedback() string {
	return s.feedback
}

// ParseMode converts a configuration value into a Mode.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case ModeTechnical:
		return ModeTechnical, nil
	case ModeBehavioral:
		return ModeBehavioral, nil
	default:
		return "", fmt.Errorf("unknown interview mode: %q", value)
	}
}

// ParseDomain converts a configuration value into a Domain. An empty value is
// valid and means no domain emphasis.
func ParseDomain(value string) (Domain, error) {
	normalized := Domain(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case "":
		return "", nil
	case DomainFrontend, DomainBackend, DomainFullStack, DomainDataScience, DomainDevOps, DomainMobile:
		return normalized, nil
	default:
		return "", fmt.Errorf("unknown interview domain: %q", value)
	}
}
