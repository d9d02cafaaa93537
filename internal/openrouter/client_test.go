package openrouter

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vipul43/kiwis-outreach/internal/service"
)

func TestCleanBodyResponse(t *testing.T) {
	client := NewClient("test-key")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "plain HTML",
			input:    `<p>Hi Ada</p>`,
			expected: `<p>Hi Ada</p>`,
		},
		{
			name:     "HTML with markdown code blocks",
			input:    "```html\n<p>Hi Ada</p>\n```",
			expected: `<p>Hi Ada</p>`,
		},
		{
			name:     "HTML with plain code blocks",
			input:    "```\n<p>Hi Ada</p>\n```",
			expected: `<p>Hi Ada</p>`,
		},
		{
			name:     "HTML with whitespace",
			input:    "  \n  <p>Hi Ada</p>  \n  ",
			expected: `<p>Hi Ada</p>`,
		},
		{
			name:     "empty fence",
			input:    "```",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := client.cleanBodyResponse(tt.input)
			if result != tt.expected {
				t.Errorf("Expected:\n%s\n\nGot:\n%s", tt.expected, result)
			}
		})
	}
}

func TestBuildPrompt(t *testing.T) {
	client := NewClient("test-key")
	company := "Analytical Engines"
	first := "Ada"

	prompt := client.buildPrompt(service.EmailDraft{
		CampaignName: "Spring launch",
		Subject:      "Hello Ada",
		Body:         "<p>Hi Ada</p>",
		Contact: service.PersonalizationContext{
			FirstName: &first,
			Email:     "ada@example.com",
			Company:   &company,
		},
	})

	for _, want := range []string{"Ada", "ada@example.com", "Analytical Engines", "Spring launch", "<p>Hi Ada</p>", "Position: -", "{{firstName}}"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("Expected prompt to contain %q", want)
		}
	}
}

func TestPersonalizeBody(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		response   string
		expected   string
		wantErr    bool
		checkModel bool
	}{
		{
			name:     "success",
			status:   http.StatusOK,
			response: `{"choices":[{"message":{"content":"` + "```html\\n<p>Dear Ada</p>\\n```" + `"}}]}`,
			expected: "<p>Dear Ada</p>",
		},
		{
			name:     "api error",
			status:   http.StatusTooManyRequests,
			response: `{"error":"rate limited"}`,
			wantErr:  true,
		},
		{
			name:     "no choices",
			status:   http.StatusOK,
			response: `{"choices":[]}`,
			wantErr:  true,
		},
		{
			name:     "blank content",
			status:   http.StatusOK,
			response: `{"choices":[{"message":{"content":"   "}}]}`,
			wantErr:  true,
		},
		{
			name:     "unrendered placeholder",
			status:   http.StatusOK,
			response: `{"choices":[{"message":{"content":"<p>Dear {{firstName}}</p>"}}]}`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
					t.Errorf("Expected bearer auth, got %q", got)
				}
				var body map[string]interface{}
				if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
					t.Errorf("Failed to decode request: %v", err)
				}
				if body["model"] != "test/model" {
					t.Errorf("Expected model test/model, got %v", body["model"])
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			}))
			defer server.Close()

			client := NewClient("test-key")
			client.apiURL = server.URL
			client.SetModel("test/model")

			got, err := client.PersonalizeBody(context.Background(), service.EmailDraft{
				Subject: "Hello",
				Body:    "<p>Hi</p>",
				Contact: service.PersonalizationContext{Email: "ada@example.com"},
			})

			if tt.wantErr {
				if err == nil {
					t.Fatal("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}
