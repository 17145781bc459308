package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/tccredit/portal/backend/internal/logging"
)

// ErrResponder marks a failed, timed out or unusable model call. It never
// leaves this package: Respond and AnalyzeSentiment absorb it.
var ErrResponder = errors.New("responder failure")

// Classification is the routing decision attached to a reply.
type Classification string

const (
	Automated Classification = "automated"
	Escalate  Classification = "escalate"
)

// Result is the transient outcome of Respond.
type Result struct {
	Message        string         `json:"message"`
	Classification Classification `json:"type"`
	Confidence     float64        `json:"confidence"`
}

// Sentiment labels returned by AnalyzeSentiment.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Sentiment is the outcome of AnalyzeSentiment.
type Sentiment struct {
	Sentiment string  `json:"sentiment"`
	Score     float64 `json:"score"`
}

// Options tunes the responder.
type Options struct {
	Timeout          time.Duration
	SentimentEnabled bool
}

// Responder answers member questions through the chat model and decides
// whether a human agent has to take over.
type Responder struct {
	chain     compose.Runnable[map[string]any, *schema.Message]
	sentiment compose.Runnable[map[string]any, *schema.Message]
	timeout   time.Duration
}

// NewResponder compiles the responder chains around chatModel. A nil model is
// allowed: every call then escalates.
func NewResponder(ctx context.Context, chatModel model.ChatModel, opts Options) (*Responder, error) {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	r := &Responder{timeout: timeout}
	if chatModel == nil {
		return r, nil
	}

	chain, err := compileChain(ctx, chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to compile responder chain: %w", err)
	}
	r.chain = chain

	if opts.SentimentEnabled {
		sentiment, err := compileChain(ctx, chatModel)
		if err != nil {
			return nil, fmt.Errorf("failed to compile sentiment chain: %w", err)
		}
		r.sentiment = sentiment
	}

	return r, nil
}

func compileChain(ctx context.Context, chatModel model.ChatModel) (compose.Runnable[map[string]any, *schema.Message], error) {
	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("{system}"),
		schema.UserMessage("{query}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)
	return chain.Compile(ctx)
}

// Enabled reports whether a chat model is wired in.
func (r *Responder) Enabled() bool {
	return r != nil && r.chain != nil
}

// Respond never fails: when the model cannot produce a usable answer the
// member is handed to a live agent with zero confidence.
func (r *Responder) Respond(ctx context.Context, userMessage string, userContext map[string]any) Result {
	result, err := r.generate(ctx, userMessage, userContext)
	if err != nil {
		logging.L().Warn("responder failed, escalating", zap.Error(err))
		return Result{Message: failSoftReply, Classification: Escalate, Confidence: 0}
	}
	return result
}

func (r *Responder) generate(ctx context.Context, userMessage string, userContext map[string]any) (Result, error) {
	if !r.Enabled() {
		return Result{}, fmt.Errorf("%w: chat model not configured", ErrResponder)
	}

	query := fmt.Sprintf("User message: %q", userMessage)
	if len(userContext) > 0 {
		raw, err := json.Marshal(userContext)
		if err == nil {
			query += "\nUser context: " + string(raw)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg, err := r.chain.Invoke(ctx, map[string]any{
		"system": responderSystemPrompt,
		"query":  query,
	})
	if err != nil {
		return Result{}, fmt.Errorf("%w: invoke model: %w", ErrResponder, err)
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return Result{}, fmt.Errorf("%w: empty model output", ErrResponder)
	}

	payload := &responderPayload{}
	if err := decodeJSONObject(msg.Content, payload); err != nil {
		return Result{}, fmt.Errorf("%w: parse model output: %w", ErrResponder, err)
	}
	return payload.result(), nil
}

// AnalyzeSentiment classifies text. On any failure it reports neutral/0.5.
func (r *Responder) AnalyzeSentiment(ctx context.Context, text string) Sentiment {
	s, err := r.classifySentiment(ctx, text)
	if err != nil {
		logging.L().Debug("sentiment analysis failed, using neutral", zap.Error(err))
		return Sentiment{Sentiment: SentimentNeutral, Score: 0.5}
	}
	return s
}

func (r *Responder) classifySentiment(ctx context.Context, text string) (Sentiment, error) {
	if r == nil || r.sentiment == nil {
		return Sentiment{}, fmt.Errorf("%w: sentiment model not configured", ErrResponder)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	msg, err := r.sentiment.Invoke(ctx, map[string]any{
		"system": sentimentSystemPrompt,
		"query":  text,
	}, compose.WithChatModelOption(model.WithTemperature(0.3), model.WithMaxTokens(100)))
	if err != nil {
		return Sentiment{}, fmt.Errorf("%w: invoke model: %w", ErrResponder, err)
	}
	if msg == nil {
		return Sentiment{}, fmt.Errorf("%w: empty model output", ErrResponder)
	}

	payload := &sentimentPayload{}
	if err := decodeJSONObject(msg.Content, payload); err != nil {
		return Sentiment{}, fmt.Errorf("%w: parse model output: %w", ErrResponder, err)
	}
	return payload.sentiment(), nil
}

type responderPayload struct {
	Message    string   `json:"message"`
	Type       string   `json:"type"`
	Confidence *float64 `json:"confidence"`
}

func (p *responderPayload) result() Result {
	res := Result{
		Message:        strings.TrimSpace(p.Message),
		Classification: Automated,
		Confidence:     0.8,
	}
	if res.Message == "" {
		res.Message = defaultReply
	}

	switch strings.ToLower(strings.TrimSpace(p.Type)) {
	case "", string(Automated):
	default:
		// "escalate" and anything unrecognised go to a human.
		res.Classification = Escalate
	}

	if p.Confidence != nil {
		res.Confidence = clampUnit(*p.Confidence)
	}
	return res
}

type sentimentPayload struct {
	Sentiment string   `json:"sentiment"`
	Score     *float64 `json:"score"`
}

func (p *sentimentPayload) sentiment() Sentiment {
	out := Sentiment{Sentiment: SentimentNeutral, Score: 0.5}
	switch label := strings.ToLower(strings.TrimSpace(p.Sentiment)); label {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
		out.Sentiment = label
	}
	if p.Score != nil {
		out.Score = clampUnit(*p.Score)
	}
	return out
}

// decodeJSONObject parses the first {...} span of content, tolerating prose or
// code fences around it.
func decodeJSONObject(content string, v any) error {
	trimmed := strings.TrimSpace(content)
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start == -1 || end == -1 || end <= start {
		return fmt.Errorf("missing json object")
	}
	return json.Unmarshal([]byte(trimmed[start:end+1]), v)
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
