package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// LlamaCppClient talks to a self-hosted llama.cpp server's /completion
// endpoint.
type LlamaCppClient struct {
	serverURL  string
	httpClient *http.Client
}

func NewLlamaCppClient(serverURL string) *LlamaCppClient {
	return &LlamaCppClient{
		serverURL: serverURL,
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type llamaCppRequest struct {
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	NPredict    int     `json:"n_predict"`
	TopP        float64 `json:"top_p"`
	TopK        int     `json:"top_k"`
	Stream      bool    `json:"stream"`
}

type llamaCppResponse struct {
	Content         string `json:"content"`
	Model           string `json:"model"`
	TokensPredicted int    `json:"tokens_predicted"`
	TokensEvaluated int    `json:"tokens_evaluated"`
}

func (c *LlamaCppClient) RunPrompt(ctx context.Context, prompt string, opts Options) (*Response, error) {
	reqBody, err := json.Marshal(llamaCppRequest{
		Prompt:      prompt,
		Temperature: opts.Temperature,
		NPredict:    opts.MaxTokens,
		TopP:        0.9,
		TopK:        40,
		Stream:      false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.serverURL+"/completion", bytes.NewReader(reqBody))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return nil, &StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	var parsed llamaCppResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode llama.cpp response: %w", err)
	}

	return &Response{
		Content:          parsed.Content,
		PromptTokens:     parsed.TokensEvaluated,
		CompletionTokens: parsed.TokensPredicted,
		TotalTokens:      parsed.TokensEvaluated + parsed.TokensPredicted,
		Model:            parsed.Model,
		Duration:         time.Since(start),
	}, nil
}
