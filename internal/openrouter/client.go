package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vipul43/kiwis-outreach/internal/service"
)

const (
	OpenRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"
)

type Client struct {
	apiKey     string
	apiURL     string
	httpClient *http.Client
	model      *string // Optional: if nil, uses OpenRouter account default
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		apiURL: OpenRouterAPIURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		model: nil, // Use OpenRouter account default
	}
}

// SetModel sets a specific model to use (optional)
func (c *Client) SetModel(model string) {
	c.model = &model
}

// PersonalizeBody asks the model to rewrite the rendered body for the
// recipient and returns the HTML it produced
func (c *Client) PersonalizeBody(ctx context.Context, draft service.EmailDraft) (string, error) {
	prompt := c.buildPrompt(draft)

	reqBody := map[string]interface{}{
		"messages": []map[string]interface{}{
			{
				"role":    "user",
				"content": prompt,
			},
		},
	}

	// Only include model if explicitly set, otherwise use OpenRouter account default
	if c.model != nil {
		reqBody["model"] = *c.model
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(body))
	}

	// Parse OpenRouter response
	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}

	if err := json.Unmarshal(body, &apiResp); err != nil {
		return "", fmt.Errorf("failed to parse API response: %w", err)
	}

	if len(apiResp.Choices) == 0 {
		return "", fmt.Errorf("no response from LLM")
	}

	content := c.cleanBodyResponse(apiResp.Choices[0].Message.Content)
	if content == "" {
		return "", fmt.Errorf("empty body from LLM")
	}
	if token := leftoverPlaceholder(content); token != "" {
		return "", fmt.Errorf("LLM body contains unrendered placeholder %s", token)
	}
	return content, nil
}

// leftoverPlaceholder returns the first template token found in content. The
// draft is already rendered, so any token here was made up by the model.
func leftoverPlaceholder(content string) string {
	for _, token := range service.Placeholders() {
		if strings.Contains(content, token) {
			return token
		}
	}
	return ""
}

// cleanBodyResponse removes markdown code fences and surrounding whitespace
func (c *Client) cleanBodyResponse(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		// Drop the opening fence line, including any language tag
		if idx := strings.Index(content, "\n"); idx != -1 {
			content = content[idx+1:]
		} else {
			content = strings.TrimPrefix(content, "```")
		}
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
	}

	return strings.TrimSpace(content)
}

// buildPrompt builds the LLM prompt from the rendered draft
func (c *Client) buildPrompt(draft service.EmailDraft) string {
	return fmt.Sprintf(`You are an assistant that personalizes outreach emails.

Rewrite the email body below for the recipient. Keep the sender's intent, offer, and any links exactly as they are. Keep it about the same length.

### CRITICAL RULES
- Output ONLY the email body as HTML, no explanations, no subject line.
- Do not invent facts about the recipient beyond what is given.
- Do not add placeholders such as [Name] or %s.

### Recipient
Name: %s %s
Email: %s
Company: %s
Position: %s
Category: %s

### Campaign
%s

### Subject
%s

### Body
%s`,
		strings.Join(service.Placeholders(), ", "),
		orDash(c.value(draft.Contact.FirstName)), c.value(draft.Contact.LastName),
		draft.Contact.Email,
		orDash(c.value(draft.Contact.Company)),
		orDash(c.value(draft.Contact.Position)),
		orDash(c.value(draft.Contact.Category)),
		draft.CampaignName, draft.Subject, draft.Body)
}

func (c *Client) value(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
