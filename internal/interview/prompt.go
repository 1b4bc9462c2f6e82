package interview

import (
	"math/rand"
	"strconv"
	"strings"
	"time"

	_ "embed"

	"github.com/prepwise/intervu/internal/completion"
)

//go:embed prompts/technical_resume.md
var technicalResumeTemplate string

//go:embed prompts/technical_domain.md
var technicalDomainTemplate string

//go:embed prompts/technical_generic.md
var technicalGenericTemplate string

//go:embed prompts/behavioral.md
var behavioralTemplate string

const (
	// topicsPerPrompt topics are sampled per generation to vary emphasis
	// across repeated attempts.
	topicsPerPrompt = 2
	maxResumeRunes  = 1500
)

var domainTopics = map[Domain][]string{
	DomainFrontend: {
		"rendering performance and reconciliation",
		"CSS layout and responsive design",
		"state management patterns",
		"web accessibility",
		"browser networking and caching",
		"TypeScript typing strategies",
	},
	DomainBackend: {
		"REST API design",
		"database indexing and query optimization",
		"caching strategies",
		"message queues and async processing",
		"authentication and authorization",
		"horizontal scaling",
	},
	DomainFullStack: {
		"API contract design",
		"data flow between frontend and backend",
		"session and state management",
		"deployment pipelines",
		"performance profiling across tiers",
		"error handling end to end",
	},
	DomainDataScience: {
		"feature engineering",
		"model evaluation metrics",
		"overfitting and regularization",
		"data cleaning and validation",
		"experiment design and A/B testing",
		"SQL for analytics",
	},
	DomainDevOps: {
		"CI/CD pipeline design",
		"container orchestration",
		"infrastructure as code",
		"monitoring and alerting",
		"incident response",
		"secrets management",
	},
	DomainMobile: {
		"application lifecycle management",
		"offline-first data synchronization",
		"push notifications",
		"UI performance on constrained devices",
		"release and app store processes",
		"platform-specific API integration",
	},
}

var behavioralTopics = []string{
	"teamwork",
	"conflict resolution",
	"leadership",
	"learning from failure",
	"time management",
	"communication",
	"adaptability",
	"ownership",
}

// PromptBuilder renders generation prompts. It is pure given its random
// source, which is injectable so tests can pin the sampled topics.
type PromptBuilder struct {
	rng *rand.Rand
}

func NewPromptBuilder(rng *rand.Rand) *PromptBuilder {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &PromptBuilder{rng: rng}
}

// QuestionPrompt builds the generation request for the session. The output
// format contract is part of every template: a bare JSON array of exactly
// QuestionCount strings.
func (b *PromptBuilder) QuestionPrompt(s *Session) string {
	switch {
	case s.Mode == ModeTechnical && s.ResumeContext != "":
		resume := truncateRunes(s.ResumeContext, maxResumeRunes)
		return render(technicalResumeTemplate, map[string]string{
			"RESUME": resume,
		})
	case s.Mode == ModeTechnical && s.Domain != "":
		topics := b.pickTopics(domainTopics[s.Domain])
		return render(technicalDomainTemplate, map[string]string{
			"DOMAIN": string(s.Domain),
			"TOPICS": strings.Join(topics, ", "),
		})
	case s.Mode == ModeBehavioral:
		topics := b.pickTopics(behavioralTopics)
		return render(behavioralTemplate, map[string]string{
			"TOPICS": strings.Join(topics, ", "),
		})
	default:
		return render(technicalGenericTemplate, nil)
	}
}

// History returns the conversation history accompanying the prompt: a single
// system message carrying the resume context when one is present.
func (b *PromptBuilder) History(s *Session) []completion.Message {
	if s.ResumeContext == "" {
		return nil
	}

	return []completion.Message{{
		Role:    completion.RoleSystem,
		Content: "Candidate resume context:\n" + truncateRunes(s.ResumeContext, maxResumeRunes),
	}}
}

// pickTopics samples topicsPerPrompt entries from the pool without replacement.
func (b *PromptBuilder) pickTopics(pool []string) []string {
	if len(pool) <= topicsPerPrompt {
		return append([]string(nil), pool...)
	}

	picked := make([]string, 0, topicsPerPrompt)
	for _, i := range b.rng.Perm(len(pool))[:topicsPerPrompt] {
		picked = append(picked, pool[i])
	}
	return picked
}

func render(template string, values map[string]string) string {
	out := strings.ReplaceAll(template, "{{COUNT}}", strconv.Itoa(QuestionCount))
	for key, value := range values {
		out = strings.ReplaceAll(out, "{{"+key+"}}", value)
	}
	return strings.TrimSpace(out)
}

func truncateRunes(s string, limit int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
