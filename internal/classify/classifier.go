// Package classify decides whether rendered page content still serves a
// live product page.
package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// ErrMalformedVerdict indicates the model reply could not be parsed into a
// verdict. The call is idempotent for identical input, so callers retry it
// freely.
var ErrMalformedVerdict = errors.New("malformed classifier verdict")

// Verdict is the constrained structured response: an availability status
// plus a free-text reason.
type Verdict struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

// Classifier assesses rendered page text.
type Classifier interface {
	Classify(ctx context.Context, pageText string) (*Verdict, error)
}

const systemPrompt = `You assess whether a web page is a live product page.
Reply with ONLY a JSON object of the form
{"status": "AVAILABLE" | "NOT_AVAILABLE" | "UNKNOWN", "reason": "<one sentence>"}.
AVAILABLE means the page clearly offers a purchasable product.
NOT_AVAILABLE means the product is gone, out of stock, or the page is an
error page. UNKNOWN means the text is insufficient to tell.`

// maxPageTextLen bounds how much rendered text is sent per classification.
const maxPageTextLen = 16000

const defaultMaxTokens = 512

// AnthropicClassifier asks an Anthropic model for the verdict.
type AnthropicClassifier struct {
	client anthropic.Client
	model  anthropic.Model
	logger *zap.Logger
}

// NewAnthropicClassifier builds a classifier for the given model name.
func NewAnthropicClassifier(apiKey, model string, logger *zap.Logger) *AnthropicClassifier {
	return &AnthropicClassifier{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  anthropic.Model(model),
		logger: logger,
	}
}

// Classify sends the page text and parses the constrained reply. A reply
// that does not decode into a verdict with a status is ErrMalformedVerdict.
func (c *AnthropicClassifier) Classify(ctx context.Context, pageText string) (*Verdict, error) {
	if len(pageText) > maxPageTextLen {
		pageText = pageText[:maxPageTextLen]
	}

	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(pageText)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("classification request: %w", err)
	}

	var reply strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			reply.WriteString(block.Text)
		}
	}

	verdict, err := parseVerdict(reply.String())
	if err != nil {
		c.logger.Warn("Classifier returned unparseable reply",
			zap.String("reply", reply.String()),
			zap.Error(err))
		return nil, err
	}
	return verdict, nil
}

// parseVerdict extracts the JSON object from a reply, tolerating code fences
// and surrounding prose. The status is persisted as the model produced it,
// upper-cased only.
func parseVerdict(reply string) (*Verdict, error) {
	start := strings.Index(reply, "{")
	end := strings.LastIndex(reply, "}")
	if start < 0 || end <= start {
		return nil, ErrMalformedVerdict
	}

	var verdict Verdict
	if err := json.Unmarshal([]byte(reply[start:end+1]), &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}

	verdict.Status = strings.ToUpper(strings.TrimSpace(verdict.Status))
	if verdict.Status == "" {
		return nil, ErrMalformedVerdict
	}

	return &verdict, nil
}
