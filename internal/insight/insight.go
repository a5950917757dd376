// Package insight is the default AI text-analysis collaborator: one
// chat-completions call per opportunity returning structured insight fields.
package insight

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/ospreyintel/awardflow/config"
	"github.com/ospreyintel/awardflow/models"
)

const completionsURL = "https://api.openai.com/v1/chat/completions"

// Provider calls the completion API and parses its structured reply.
type Provider struct {
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
	BaseURL     string
	HTTPClient  *http.Client
}

// NewProvider builds an insight provider from configuration.
func NewProvider(cfg config.InsightConfig) *Provider {
	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &Provider{
		APIKey:      cfg.APIKey,
		Model:       model,
		Temperature: cfg.Temperature,
		MaxTokens:   cfg.MaxTokens,
		BaseURL:     completionsURL,
		HTTPClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionRequest struct {
	Model       string    `json:"model"`
	Messages    []message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `You are a federal contract capture analyst. Given the text of a government
solicitation, respond ONLY with valid JSON in the following format:
{
  "summary": "two-sentence plain-language summary",
  "requirements": ["array", "of", "key requirements"],
  "evaluation_criteria": ["array", "of", "evaluation criteria"],
  "risks": ["array", "of", "capture risks"],
  "incumbent_hints": "any incumbent or prior-contract mention, or empty string"
}`

// Analyze runs the analysis call for one opportunity and returns the parsed
// insight fields.
func (p *Provider) Analyze(ctx context.Context, opp models.Opportunity) (map[string]interface{}, error) {
	if p.APIKey == "" {
		return nil, fmt.Errorf("insight provider has no api key")
	}

	text := opp.ScrapedText
	if text == "" {
		text = opp.Description
	}
	user := fmt.Sprintf("Title: %s\nAgency: %s\nNAICS: %s\nSet-aside: %s\n\n%s",
		opp.Title, opp.Agency, strings.Join(opp.NAICSCodes, ", "), opp.SetAside, text)

	body, err := json.Marshal(completionRequest{
		Model:       p.Model,
		Messages:    []message{{Role: "system", Content: systemPrompt}, {Role: "user", Content: user}},
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL, bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status: %d", resp.StatusCode)
	}

	var cr completionResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(cr.Choices) == 0 {
		return nil, fmt.Errorf("empty completion response")
	}
	return parseInsight(cr.Choices[0].Message.Content)
}

// parseInsight decodes the model's JSON reply, tolerating surrounding prose
// and markdown fences.
func parseInsight(content string) (map[string]interface{}, error) {
	content = strings.TrimSpace(content)
	if start := strings.Index(content, "{"); start >= 0 {
		if end := strings.LastIndex(content, "}"); end > start {
			content = content[start : end+1]
		}
	}
	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(content), &fields); err != nil {
		return nil, fmt.Errorf("insight reply is not valid JSON: %w", err)
	}
	return fields, nil
}
