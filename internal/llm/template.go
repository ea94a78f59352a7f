package llm

import (
	"context"
	"strings"
	"time"
)

// TemplateProvider answers offline. It joins the bulleted facts of the last
// user message into a paragraph, so summaries stay available without any
// model server.
type TemplateProvider struct{}

// NewTemplateProvider creates the offline provider.
func NewTemplateProvider() *TemplateProvider { return &TemplateProvider{} }

func (TemplateProvider) Name() string { return ProviderTemplate }

func (TemplateProvider) Ping(context.Context) error { return nil }

// Chat never fails unless ctx is done or the prompt carries no facts.
func (TemplateProvider) Chat(ctx context.Context, messages []Message, _ *ChatOptions) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	var prompt string
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			prompt = messages[i].Content
			break
		}
	}

	var sentences []string
	for _, line := range strings.Split(prompt, "\n") {
		fact, ok := strings.CutPrefix(strings.TrimSpace(line), "- ")
		if !ok || fact == "" {
			continue
		}
		if !strings.HasSuffix(fact, ".") {
			fact += "."
		}
		sentences = append(sentences, fact)
	}
	if len(sentences) == 0 {
		return nil, ErrEmptyResponse
	}

	content := strings.Join(sentences, " ")
	words := len(strings.Fields(content))
	return &Response{
		Content:      content,
		FinishReason: "stop",
		Usage:        Usage{CompletionTokens: words, TotalTokens: words},
		Model:        ProviderTemplate,
		Provider:     ProviderTemplate,
		Latency:      time.Since(start),
	}, nil
}
