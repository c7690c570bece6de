package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-20250514"

// Token budgets per call type.
const (
	chatMaxTokens      = 4096
	analysisMaxTokens  = 2048
	parsingMaxTokens   = 1024
	reviewMaxTokens    = 4096
	gradingMaxTokens   = 2048
	structureMaxTokens = 2048
)

// Completer is the completion-service boundary: prompt in, free-form text out.
// The text is expected to contain a JSON payload but may wrap it in prose or
// markdown fences; callers extract defensively.
type Completer interface {
	Complete(prompt string, maxTokens int64) (string, error)
}

type AnthropicCompleter struct {
	client anthropic.Client
	model  string
}

func NewAnthropicCompleter(apiKey, model string) *AnthropicCompleter {
	if model == "" {
		model = defaultAnthropicModel
	}
	return &AnthropicCompleter{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

func (a *AnthropicCompleter) Complete(prompt string, maxTokens int64) (string, error) {
	message, err := a.client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", fmt.Errorf("Anthropic API error: %w", err)
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d",
				len(block.Text), message.Usage.InputTokens, message.Usage.OutputTokens)
			return block.Text, nil
		}
	}
	return "", fmt.Errorf("no text content in Anthropic response")
}

// extractJSONObject pulls a JSON object out of a free-form completion
// response: a ```json fenced block wins, otherwise the substring from the
// first '{' to the last '}'.
func extractJSONObject(responseText string) (string, error) {
	return extractJSONPayload(responseText, '{', '}')
}

// extractJSONArray is the array-shaped counterpart of extractJSONObject.
func extractJSONArray(responseText string) (string, error) {
	return extractJSONPayload(responseText, '[', ']')
}

func extractJSONPayload(responseText string, opener, closer byte) (string, error) {
	text := strings.TrimSpace(responseText)

	if idx := strings.Index(text, "```json"); idx >= 0 {
		start := idx + len("```json")
		if end := strings.Index(text[start:], "```"); end >= 0 {
			return strings.TrimSpace(text[start : start+end]), nil
		}
		// Unterminated fence: fall through to bracket scanning.
		text = text[start:]
	}

	start := strings.IndexByte(text, opener)
	end := strings.LastIndexByte(text, closer)
	if start < 0 || end < start {
		return "", fmt.Errorf("no JSON payload in response (length=%d)", len(responseText))
	}
	return text[start : end+1], nil
}

// confusionAnalysis is the classification contract the completion service is
// asked to honor. Missing fields keep their zero values and are normalized by
// the caller.
type confusionAnalysis struct {
	CourseID                *int64   `json:"course_id"`
	Unit                    *string  `json:"unit"`
	Topics                  []string `json:"topics"`
	ConfusedConversationIDs []int64  `json:"confused_conversation_ids"`
}

func parseAnalysisResponse(responseText string) (confusionAnalysis, error) {
	var analysis confusionAnalysis
	payload, err := extractJSONObject(responseText)
	if err != nil {
		return analysis, err
	}
	if err := json.Unmarshal([]byte(payload), &analysis); err != nil {
		return analysis, fmt.Errorf("parsing analysis response: %w", err)
	}
	if analysis.Topics == nil {
		analysis.Topics = []string{}
	}
	if analysis.ConfusedConversationIDs == nil {
		analysis.ConfusedConversationIDs = []int64{}
	}
	return analysis, nil
}

func parseCriteriaResponse(responseText string) (ReviewCriteria, error) {
	var criteria ReviewCriteria
	payload, err := extractJSONObject(responseText)
	if err != nil {
		return criteria, err
	}
	if err := json.Unmarshal([]byte(payload), &criteria); err != nil {
		return criteria, fmt.Errorf("parsing criteria response: %w", err)
	}
	if criteria.Topics == nil {
		criteria.Topics = []string{}
	}
	return criteria, nil
}

func parseReviewContentResponse(responseText string) (ReviewContent, error) {
	var content ReviewContent
	payload, err := extractJSONObject(responseText)
	if err != nil {
		return content, err
	}
	if err := json.Unmarshal([]byte(payload), &content); err != nil {
		return content, fmt.Errorf("parsing review content response: %w", err)
	}
	return content, nil
}

// parseGradingResponse requires all four top-level fields; a missing one is a
// hard parse failure. Missing feedback sub-fields default to empty strings.
func parseGradingResponse(responseText string) (GradingResult, error) {
	var result GradingResult
	payload, err := extractJSONObject(responseText)
	if err != nil {
		return result, err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return result, fmt.Errorf("parsing grading response: %w", err)
	}
	for _, field := range []string{"score_percentage", "score_category", "feedback", "overall_assessment"} {
		if _, ok := raw[field]; !ok {
			return result, fmt.Errorf("grading response missing required field: %s", field)
		}
	}

	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return result, fmt.Errorf("parsing grading response: %w", err)
	}
	return result, nil
}

func parseUnitsResponse(responseText string) ([]CourseUnit, error) {
	payload, err := extractJSONArray(responseText)
	if err != nil {
		return nil, err
	}
	var units []CourseUnit
	if err := json.Unmarshal([]byte(payload), &units); err != nil {
		return nil, fmt.Errorf("parsing course structure response: %w", err)
	}
	if len(units) == 0 {
		return nil, fmt.Errorf("course structure response contains no units")
	}
	for i, unit := range units {
		if strings.TrimSpace(unit.Name) == "" {
			return nil, fmt.Errorf("course structure unit %d has no name", i)
		}
		if len(unit.Topics) == 0 {
			return nil, fmt.Errorf("course structure unit %q has no topics", unit.Name)
		}
	}
	return units, nil
}
