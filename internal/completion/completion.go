package completion

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/nexusbot/internal/metrics"
	"github.com/yoockh/nexusbot/internal/models"
	"github.com/yoockh/nexusbot/internal/providers/llm"
)

// Displayable texts returned in place of a model reply. The widget renders them as
// ordinary assistant messages.
const (
	MissingCredentialText = "System: completion API key missing. Cannot generate a response."
	FailureText           = "Error: Could not connect to the completion engine."
	TimeoutText           = "Sorry, the assistant took too long to answer. Please try again."
	EmptyText             = "..."
)

// Outcome labels, also used as metric values.
const (
	ResultOK                = "ok"
	ResultMissingCredential = "missing_credential"
	ResultError             = "error"
	ResultTimeout           = "timeout"
	ResultEmpty             = "empty"
)

const DefaultTimeout = 30 * time.Second

type Turn struct {
	Role    models.Role `json:"role"`
	Content string      `json:"content"`
}

// Request is one completion call. History already ends with the visitor's new message.
type Request struct {
	RoleDefinition    string
	KnowledgeBase     string
	SchedulingContext string
	History           []Turn
}

type Reply struct {
	Text   string
	Result string
}

// OK reports whether Text came from the model.
func (r Reply) OK() bool { return r.Result == ResultOK }

type Service struct {
	provider llm.Provider
	timeout  time.Duration
	log      logrus.FieldLogger
}

// NewService wraps provider. A nil provider means no credential is configured and
// every call returns MissingCredentialText.
func NewService(provider llm.Provider, timeout time.Duration, log logrus.FieldLogger) *Service {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	return &Service{provider: provider, timeout: timeout, log: log}
}

func (s *Service) Configured() bool { return s != nil && s.provider != nil }

// Complete never returns an error: failures come back as displayable text.
func (s *Service) Complete(ctx context.Context, req Request) Reply {
	if !s.Configured() {
		metrics.Completion(ResultMissingCredential, 0)
		return Reply{Text: MissingCredentialText, Result: ResultMissingCredential}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	out, err := s.provider.Complete(ctx, SystemPrompt(req), Transcript(req.History))
	elapsed := time.Since(start).Seconds()

	switch {
	case err == nil && strings.TrimSpace(out) != "":
		metrics.Completion(ResultOK, elapsed)
		return Reply{Text: out, Result: ResultOK}
	case err == nil, errors.Is(err, llm.ErrEmptyResponse):
		metrics.Completion(ResultEmpty, elapsed)
		return Reply{Text: EmptyText, Result: ResultEmpty}
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		s.log.WithField("timeout", s.timeout.String()).Warn("completion timed out")
		metrics.Completion(ResultTimeout, elapsed)
		return Reply{Text: TimeoutText, Result: ResultTimeout}
	default:
		s.log.WithError(err).Error("completion failed")
		metrics.Completion(ResultError, elapsed)
		return Reply{Text: FailureText, Result: ResultError}
	}
}

// SystemPrompt frames the persona. The scheduling context, when present, rides
// along with the knowledge base.
func SystemPrompt(req Request) string {
	knowledge := strings.TrimSpace(req.KnowledgeBase)
	if sc := strings.TrimSpace(req.SchedulingContext); sc != "" {
		if knowledge != "" {
			knowledge += "\n\n"
		}
		knowledge += sc
	}

	var b strings.Builder
	b.WriteString("You are a custom chatbot.\n")
	b.WriteString("ROLE DEFINITION: ")
	b.WriteString(strings.TrimSpace(req.RoleDefinition))
	b.WriteString("\n\nKNOWLEDGE BASE:\n")
	b.WriteString(knowledge)
	b.WriteString("\n\nStrictly adhere to the role and knowledge base.")
	return b.String()
}

// Transcript renders history as "ROLE: content" lines and leaves the assistant turn open.
func Transcript(history []Turn) string {
	var b strings.Builder
	b.WriteString("CONVERSATION HISTORY:\n")
	for i, t := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(strings.ToUpper(string(t.Role)))
		b.WriteString(": ")
		b.WriteString(t.Content)
	}
	b.WriteString("\n\nASSISTANT:")
	return b.String()
}
