package interview

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/prepwise/intervu/internal/completion"
	"github.com/prepwise/intervu/internal/logger"
	"github.com/prepwise/intervu/internal/markdown"
	"go.uber.org/zap"
)

// Heuristic scoring thresholds on the average answer length in runes.
const (
	detailedAnswerLength = 120
	engagedAnswerLength  = 60

	answerPreviewRunes = 80
)

// Synthesizer turns a completed answer log into the final report: remote
// evaluation when the completion service answers, deterministic heuristic
// otherwise. Both paths produce the same heading layout and pass through the
// markdown normalizer, so consumers cannot tell them apart structurally.
type Synthesizer struct {
	service   completion.Service
	logger    *zap.Logger
	maxLogLen int
}

func NewSynthesizer(service completion.Service, log *zap.Logger, maxLogLength int) *Synthesizer {
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Synthesizer{
		service:   service,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Evaluate produces the feedback report for a completed session and stores
// it on the session. Remote failure is resolved locally and never surfaced;
// the only possible errors are session invariant violations.
func (f *Synthesizer) Evaluate(ctx context.Context, s *Session) (string, error) {
	if !s.Completed() {
		return "", ErrSessionIncomplete
	}

	answers := s.Answers()
	report, err := f.remote(ctx, s.ID, answers, s.Mode)
	if err != nil {
		f.logger.Warn("remote evaluation failed, using heuristic feedback",
			zap.String(logger.FieldSession, s.ID),
			zap.Error(err),
		)
		report = heuristicReport(answers, s.Mode)
	}

	normalized := markdown.Normalize(report)
	if err := s.SetFeedback(normalized); err != nil {
		return "", err
	}

	return normalized, nil
}

func (f *Synthesizer) remote(ctx context.Context, sessionID string, answers []Answer, mode Mode) (string, error) {
	if f.service == nil {
		return "", fmt.Errorf("no completion service configured")
	}

	summary := BuildTranscript(answers)

	f.logger.Debug("feedback request",
		zap.String(logger.FieldSession, sessionID),
		zap.Int("summary_length", utf8.RuneCountInString(summary)),
		zap.String("summary_preview", logger.TruncateForLog(summary, f.maxLogLen)),
	)

	report, err := f.service.Feedback(ctx, summary, string(mode))
	if err != nil {
		return "", err
	}

	f.logger.Debug("feedback response",
		zap.String(logger.FieldSession, sessionID),
		zap.Int("response_length", utf8.RuneCountInString(report)),
		zap.String("response_preview", logger.TruncateForLog(report, f.maxLogLen)),
	)

	return report, nil
}

// BuildTranscript interleaves each question with its captured answer.
func BuildTranscript(answers []Answer) string {
	var b strings.Builder
	for i, a := range answers {
		if i > 0 {
			b.WriteString("\n\n")
		}
		answer := strings.TrimSpace(a.Text)
		if answer == "" {
			answer = "(no answer)"
		}
		fmt.Fprintf(&b, "Question %d: %s\nAnswer %d: %s", i+1, a.Question, i+1, answer)
	}
	return b.String()
}

// heuristicReport assembles the offline evaluation. It is a pure function of
// the answer log and mode, in the same heading layout as the remote contract.
func heuristicReport(answers []Answer, mode Mode) string {
	avg := averageAnswerLength(answers)
	score := heuristicScore(avg)

	var strengths []string
	if avg > detailedAnswerLength {
		strengths = append(strengths, "You gave detailed, well-developed answers.")
	}
	if avg > engagedAnswerLength {
		strengths = append(strengths, "You engaged with every question in the session.")
	}
	if len(strengths) == 0 {
		strengths = append(strengths, "You completed the full interview from start to finish.")
	}

	improvements := []string{
		"Add a specific result or metric to at least one answer.",
	}
	if mode == ModeTechnical {
		improvements = append(improvements, "Go deeper into technical trade-offs and implementation details.")
	}
	if avg <= engagedAnswerLength {
		improvements = append(improvements, "Give longer answers: aim for one to three minutes per question.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Score\n%d/10\n\n", score)
	b.WriteString("## Short Suggestion\n")
	b.WriteString("Structure each answer around a concrete situation, the action you took, and the result you achieved.\n\n")

	b.WriteString("## Strengths\n")
	for _, s := range strengths {
		fmt.Fprintf(&b, "- %s\n", s)
	}
	b.WriteString("\n## Areas to Improve\n")
	for _, s := range improvements {
		fmt.Fprintf(&b, "- %s\n", s)
	}

	b.WriteString("\n## Question Summaries\n")
	for i, a := range answers {
		fmt.Fprintf(&b, "%d. %s\n", i+1, summarizeAnswer(a))
	}

	return b.String()
}

// heuristicScore maps the average answer length to a score out of 10.
func heuristicScore(avg float64) int {
	switch {
	case avg > detailedAnswerLength:
		return 8
	case avg > engagedAnswerLength:
		return 6
	default:
		return 4
	}
}

// averageAnswerLength is the mean rune length across all turns; turns
// without a recorded answer count as zero.
func averageAnswerLength(answers []Answer) float64 {
	turns := len(answers)
	if turns < QuestionCount {
		turns = QuestionCount
	}
	if turns == 0 {
		return 0
	}

	total := 0
	for _, a := range answers {
		total += utf8.RuneCountInString(strings.TrimSpace(a.Text))
	}

	return float64(total) / float64(turns)
}

func summarizeAnswer(a Answer) string {
	answer := strings.TrimSpace(a.Text)
	if answer == "" {
		return "No answer recorded."
	}

	runes := []rune(answer)
	if len(runes) > answerPreviewRunes {
		answer = string(runes[:answerPreviewRunes]) + "..."
	}

	return "You said: " + answer
}
