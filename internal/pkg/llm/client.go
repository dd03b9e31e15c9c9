package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/qs3c/codelens_go_server/config"
)

// PlaceholderExplanation 单条解释生成失败时的占位文案
const PlaceholderExplanation = "解释生成失败，请重试"

// ProviderError 模型服务返回的非 2xx 错误
type ProviderError struct {
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("llm provider error (status %d): %s", e.StatusCode, e.Message)
}

// SymbolInput 待解释的符号
type SymbolInput struct {
	Name     string
	Kind     string
	Code     string
	Language string
}

// Explanation 单个符号的解释结果
type Explanation struct {
	Summary    string `json:"summary"`
	Detailed   string `json:"detailed"`
	Complexity string `json:"complexity"`
}

// Client OpenAI 兼容接口的模型客户端
type Client struct {
	baseURL        string
	apiKey         string
	chatModel      string
	embeddingModel string
	httpClient     *http.Client
}

func NewClient(cfg *config.LLMConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
}

// Summarize 为文件内容生成一段用于检索的摘要
func (c *Client) Summarize(ctx context.Context, filePath, content string) (string, error) {
	prompt := fmt.Sprintf("用 2-3 句话概括以下代码文件的职责和主要内容，直接输出摘要，不要任何前缀。\n\n文件: %s\n\n```\n%s\n```", filePath, content)
	return c.chat(ctx, "你是一个代码分析助手，擅长概括代码文件的功能。", prompt)
}

// Embed 生成文本的向量表示
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	reqBody := embeddingRequest{Model: c.embeddingModel, Input: []string{text}}

	var result embeddingResponse
	if err := c.post(ctx, "/embeddings", reqBody, &result); err != nil {
		return nil, err
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("embedding response contains no data")
	}
	return result.Data[0].Embedding, nil
}

// ExplainSymbols 批量解释符号。返回结果与输入一一对应：
// 响应条数不符或解析失败时，缺失的位置填充占位解释，不返回错误。
func (c *Client) ExplainSymbols(ctx context.Context, query, filePath string, symbols []SymbolInput) ([]Explanation, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "针对问题「%s」，解释文件 %s 中的 %d 个符号。\n", query, filePath, len(symbols))
	b.WriteString("以 JSON 数组输出，每个元素形如 {\"summary\": \"一句话概括\", \"detailed\": \"详细解释，说明与问题的关联\", \"complexity\": \"简单/中等/复杂\"}，顺序与输入一致，只输出 JSON。\n\n")
	for i, sym := range symbols {
		fmt.Fprintf(&b, "### 符号 %d: %s (%s, %s)\n```\n%s\n```\n\n", i+1, sym.Name, sym.Kind, sym.Language, sym.Code)
	}

	content, err := c.chat(ctx, "你是一个资深代码讲解专家，输出严格的 JSON。", b.String())
	if err != nil {
		return nil, err
	}

	explanations := parseExplanations(content, len(symbols))
	return explanations, nil
}

// Synthesize 汇总各文件的符号解释，生成针对问题的整体回答
func (c *Client) Synthesize(ctx context.Context, query string, sections []string) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "基于以下各文件的代码解释，回答问题：%s\n要求给出贯穿多个文件的整体说明，引用具体的符号名。\n\n", query)
	for _, s := range sections {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
	return c.chat(ctx, "你是一个代码架构讲解专家。", b.String())
}

func (c *Client) chat(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: c.chatModel,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}

	var result chatResponse
	if err := c.post(ctx, "/chat/completions", reqBody, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("chat response contains no choices")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}

func (c *Client) post(ctx context.Context, path string, reqBody, result interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("llm request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &ProviderError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode llm response: %w", err)
	}
	return nil
}

// parseExplanations 从模型输出中解析 JSON 数组，并补齐到期望长度
func parseExplanations(content string, want int) []Explanation {
	var parsed []Explanation

	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start >= 0 && end > start {
		_ = json.Unmarshal([]byte(content[start:end+1]), &parsed)
	}

	result := make([]Explanation, want)
	for i := range result {
		if i < len(parsed) && parsed[i].Summary != "" {
			result[i] = parsed[i]
		} else {
			result[i] = Explanation{
				Summary:    PlaceholderExplanation,
				Detailed:   PlaceholderExplanation,
				Complexity: "未知",
			}
		}
	}
	return result
}
