package interview

import (
	"context"
	"unicode/utf8"

	"github.com/prepwise/intervu/internal/completion"
	"github.com/prepwise/intervu/internal/logger"
	"go.uber.org/zap"
)

const defaultMaxLogLength = 200

// Generator produces the session's question list: prompt builder + completion
// service + parser, falling back to the static bank on any failure. The
// fallback is never surfaced to the user as an error.
type Generator struct {
	service   completion.Service
	builder   *PromptBuilder
	logger    *zap.Logger
	maxLogLen int
}

func NewGenerator(service completion.Service, builder *PromptBuilder, log *zap.Logger, maxLogLength int) *Generator {
	if builder == nil {
		builder = NewPromptBuilder(nil)
	}
	if log == nil {
		log = zap.NewNop()
	}
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	return &Generator{
		service:   service,
		builder:   builder,
		logger:    log,
		maxLogLen: maxLogLength,
	}
}

// Generate populates the session's questions. The context bounds the remote
// call; on timeout or any other failure the mode's fallback bank is used. A
// stale remote result arriving after the session already fell back is
// discarded because questions are assigned exactly once.
func (g *Generator) Generate(ctx context.Context, s *Session) error {
	return s.SetQuestions(g.questions(ctx, s))
}

func (g *Generator) questions(ctx context.Context, s *Session) []string {
	if g.service == nil {
		g.logger.Info("no completion service configured, using the question bank",
			zap.String(logger.FieldSession, s.ID),
		)
		return FallbackQuestions(s.Mode)
	}

	prompt := g.builder.QuestionPrompt(s)
	history := g.builder.History(s)

	g.logger.Debug("question generation request",
		zap.String(logger.FieldSession, s.ID),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", logger.TruncateForLog(prompt, g.maxLogLen)),
	)

	raw, err := g.service.Complete(ctx, prompt, history)
	if err != nil {
		g.logger.Warn("question generation failed, using the question bank",
			zap.String(logger.FieldSession, s.ID),
			zap.Error(err),
		)
		return FallbackQuestions(s.Mode)
	}

	g.logger.Debug("question generation response",
		zap.String(logger.FieldSession, s.ID),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", logger.TruncateForLog(raw, g.maxLogLen)),
	)

	questions, err := ParseQuestions(raw)
	if err != nil {
		g.logger.Warn("question generation returned unusable output, using the question bank",
			zap.String(logger.FieldSession, s.ID),
			zap.Error(err),
		)
		return FallbackQuestions(s.Mode)
	}

	return padQuestions(questions, s.Mode)
}

// padQuestions forces the parsed list to exactly QuestionCount entries:
// longer lists are truncated, shorter ones are topped up from the bank,
// skipping duplicates.
func padQuestions(questions []string, mode Mode) []string {
	if len(questions) >= QuestionCount {
		return questions[:QuestionCount]
	}

	seen := make(map[string]bool, len(questions))
	for _, q := range questions {
		seen[q] = true
	}

	for _, q := range FallbackQuestions(mode) {
		if len(questions) == QuestionCount {
			break
		}
		if seen[q] {
			continue
		}
		questions = append(questions, q)
		seen[q] = true
	}

	return questions
}
