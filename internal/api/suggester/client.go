// Package suggester AI 兼容车型建议（OpenAI 兼容的 chat completions 接口）
package suggester

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL Groq 的 OpenAI 兼容接口
const DefaultBaseURL = "https://api.groq.com/openai/v1/chat/completions"

// DefaultModel 默认模型
const DefaultModel = "llama-3.1-8b-instant"

// Candidate 可供选择的车辆
type Candidate struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Client 兼容车型建议客户端
type Client struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient 创建建议客户端
func NewClient(url, apiKey, model string, timeout time.Duration, logger *zap.Logger) *Client {
	if url == "" {
		url = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		url:        url,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// IsConfigured 是否配置了 API Key
func (c *Client) IsConfigured() bool {
	return c.apiKey != ""
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Suggest 返回候选中与商品兼容的车辆 ID，结果只包含候选内的 ID
func (c *Client) Suggest(ctx context.Context, title, category string, candidates []Candidate) ([]string, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	if !c.IsConfigured() {
		return nil, fmt.Errorf("suggester api key not configured")
	}

	content, err := c.complete(ctx, buildPrompt(title, category, candidates))
	if err != nil {
		return nil, err
	}

	ids, err := parseIDs(content)
	if err != nil {
		c.logger.Warn("Unparseable suggestion response",
			zap.String("title", title),
			zap.String("content", content))
		return nil, err
	}
	return keepOffered(ids, candidates), nil
}

func buildPrompt(title, category string, candidates []Candidate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Part: %q (category: %s)\n", title, category)
	b.WriteString("Vehicles:\n")
	for _, cand := range candidates {
		fmt.Fprintf(&b, "%s: %s\n", cand.ID, cand.Label)
	}
	b.WriteString("Reply ONLY with a JSON array of the vehicle ids this part fits, e.g. [\"id1\",\"id2\"]. Reply [] if unsure.")
	return b.String()
}

func (c *Client) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You match automotive parts to compatible vehicles."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0,
		MaxTokens:   256,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("suggester api returned status %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("suggester api error: %s", result.Error.Message)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("suggester api returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}

// parseIDs 从回复中提取第一个 JSON 数组
func parseIDs(content string) ([]string, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no id list in response")
	}
	var ids []string
	if err := json.Unmarshal([]byte(content[start:end+1]), &ids); err != nil {
		return nil, fmt.Errorf("parse id list: %w", err)
	}
	return ids, nil
}

func keepOffered(ids []string, candidates []Candidate) []string {
	offered := make(map[string]struct{}, len(candidates))
	for _, cand := range candidates {
		offered[cand.ID] = struct{}{}
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, ok := offered[id]; !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
