package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tripcraft/tripcraft/internal/domain"
	"github.com/tripcraft/tripcraft/internal/edit"
)

// OpenAIConfig configures the LLM-backed parser.
type OpenAIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIParser asks a chat-completion model to parse the message with a
// few-shot prompt and lowers the returned intent/entities through the
// builder. Model output that is not valid JSON degrades to a keyword parse
// instead of failing the request.
type OpenAIParser struct {
	client    *openai.Client
	model     string
	heuristic *Heuristic
	logger    *slog.Logger
}

// NewOpenAIParser creates the LLM-backed parser.
func NewOpenAIParser(cfg OpenAIConfig, logger *slog.Logger) *OpenAIParser {
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	if cfg.Timeout > 0 {
		clientCfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIParser{
		client:    openai.NewClientWithConfig(clientCfg),
		model:     model,
		heuristic: NewHeuristic(),
		logger:    logger,
	}
}

const parsePrompt = `Task: Parse travel itinerary editing requests into structured JSON commands.

Example 1:
Input: "add Eiffel Tower to day 2 in the morning"
Output: {"intent": "add_activity", "entities": {"poi": "Eiffel Tower", "day": "2", "time_slot": "morning"}}

Example 2:
Input: "remove the Louvre Museum from day 1"
Output: {"intent": "remove_activity", "entities": {"poi": "Louvre Museum", "day": "1"}}

Example 3:
Input: "move dinner to 7pm"
Output: {"intent": "change_time", "entities": {"poi": "dinner", "time_slot": "7pm"}}

Example 4:
Input: "change hotel to Hilton Paris"
Output: {"intent": "change_hotel", "entities": {"hotel_name": "Hilton Paris"}}

Example 5:
Input: "increase budget by $500"
Output: {"intent": "update_cost", "entities": {"amount": "500"}}

Respond with a single JSON object and nothing else.
Now parse this request:
Input: %q
Output:`

var jsonObject = regexp.MustCompile(`(?s)\{.*\}`)

type modelParse struct {
	Intent   string         `json:"intent"`
	Entities map[string]any `json:"entities"`
}

// Parse sends the few-shot prompt to the model. The itinerary context is
// summarized into the system message so the model can resolve references
// like "the museum" against what is actually planned.
func (p *OpenAIParser) Parse(ctx context.Context, message string, itinerary *domain.ItineraryRecord) (*domain.ParsedIntent, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0.3,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: contextSummary(itinerary)},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf(parsePrompt, message)},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: model returned no choices", ErrUnavailable)
	}

	parsed, ok := extractParse(resp.Choices[0].Message.Content)
	if !ok {
		p.logger.Warn("model output was not parseable JSON, using keyword fallback")
		return p.heuristic.Parse(ctx, message, itinerary)
	}
	if parsed.Entities == nil {
		parsed.Entities = map[string]any{}
	}

	return &domain.ParsedIntent{
		Intent:       parsed.Intent,
		Entities:     parsed.Entities,
		Command:      edit.Build(parsed.Intent, parsed.Entities),
		Confidence:   estimateConfidence(message, parsed.Intent, parsed.Entities),
		HumanPreview: edit.Preview(parsed.Intent, parsed.Entities),
	}, nil
}

// extractParse pulls the first JSON object out of the model text.
func extractParse(text string) (modelParse, bool) {
	var parsed modelParse
	payload := jsonObject.FindString(text)
	if payload == "" {
		payload = text
	}
	if err := json.Unmarshal([]byte(payload), &parsed); err != nil || parsed.Intent == "" {
		return modelParse{}, false
	}
	return parsed, true
}

// contextSummary renders the itinerary as a compact description for the
// system prompt.
func contextSummary(rec *domain.ItineraryRecord) string {
	var b strings.Builder
	b.WriteString("You parse edits against this travel itinerary.")
	if rec == nil || rec.Content == nil {
		return b.String()
	}
	if rec.Destination != "" {
		fmt.Fprintf(&b, " Destination: %s.", rec.Destination)
	}
	if rec.Content.TotalBudget != nil {
		fmt.Fprintf(&b, " Total budget: %.0f.", *rec.Content.TotalBudget)
	}
	for day := 1; day <= len(rec.Content.Days)+1; day++ {
		plan := rec.Content.Day(day)
		if plan == nil {
			continue
		}
		names := make([]string, 0, len(plan.Activities))
		for _, act := range plan.Activities {
			names = append(names, fmt.Sprintf("%s (%s)", act.Name, act.TimeSlot))
		}
		fmt.Fprintf(&b, " Day %d: %s.", day, strings.Join(names, ", "))
	}
	return b.String()
}
