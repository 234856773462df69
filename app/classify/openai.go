package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"regwatch/app/catalog"
	"regwatch/app/feed"
)

var _ Classifier = (*OpenAIClassifier)(nil)

// OpenAIClassifier calls an OpenAI-compatible chat completions endpoint to
// categorize a batch of entries.
type OpenAIClassifier struct {
	endpoint      string
	model         string
	apiKey        string
	truncateLimit int
	httpClient    *http.Client
}

func NewOpenAIClassifier(endpoint, model, apiKey string, truncateLimit int) *OpenAIClassifier {
	return &OpenAIClassifier{
		endpoint:      endpoint,
		model:         model,
		apiKey:        apiKey,
		truncateLimit: truncateLimit,
		httpClient:    &http.Client{Timeout: 60 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Classify returns one classification per entry, in input order. Any failure
// to obtain exactly one valid label per entry is a ClassifierError; label
// values outside the taxonomy degrade to Irrelevant instead of failing.
func (c *OpenAIClassifier) Classify(ctx context.Context, batch []feed.Entry, hints catalog.Keywords) ([]Classification, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "user", Content: BuildPrompt(batch, hints, c.truncateLimit)},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, &ClassifierError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &ClassifierError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &ClassifierError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &ClassifierError{Err: fmt.Errorf("HTTP error %s: %s", resp.Status, strings.TrimSpace(string(preview)))}
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, &ClassifierError{Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if len(parsed.Choices) == 0 {
		return nil, &ClassifierError{Err: fmt.Errorf("response contains no choices")}
	}

	labels, err := parseLabels(parsed.Choices[0].Message.Content)
	if err != nil {
		return nil, &ClassifierError{Err: err}
	}
	if len(labels) != len(batch) {
		return nil, &ClassifierError{Err: fmt.Errorf("expected %d labels, got %d", len(batch), len(labels))}
	}

	classifications := make([]Classification, len(batch))
	for i, entry := range batch {
		classifications[i] = Classification{
			EntryID:  entry.EntryID,
			Category: ParseCategory(labels[i]),
		}
	}

	return classifications, nil
}

// parseLabels extracts the JSON array of labels, tolerating markdown code
// fences around the payload.
func parseLabels(content string) ([]string, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var labels []string
	if err := json.Unmarshal([]byte(content), &labels); err != nil {
		return nil, fmt.Errorf("malformed label array: %w", err)
	}

	return labels, nil
}
