package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

const (
	// DefaultTimeout — таймаут одного вызова по умолчанию.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxResponseBody — предел тела ответа по умолчанию.
	DefaultMaxResponseBody = 10 * 1024 * 1024 // 10 MB
)

// Ошибки транспорта.
var (
	// ErrInvalidOptions — не задан URL.
	ErrInvalidOptions = errors.New("invalid request options")

	// ErrCancelled — вызов отменён контекстом.
	ErrCancelled = errors.New("request cancelled")

	// ErrResponseTooLarge — тело ответа больше MaxResponseBody.
	ErrResponseTooLarge = errors.New("response body too large")
)

// Doer — контракт исходящего вызова.
type Doer interface {
	Do(ctx context.Context, opts Options) (*Response, error)
}

// Options — параметры вызова.
type Options struct {
	URL     string
	Method  string
	Headers map[string]string

	// Body сериализуется в JSON; string и []byte отправляются как есть.
	Body any
}

// Response — результат вызова.
type Response struct {
	StatusCode int
	Body       any
	Headers    map[string]string
}

// Config — настройки клиента.
type Config struct {
	// BaseURL — префикс для относительных URL (начинающихся с "/").
	BaseURL string

	// Timeout — таймаут одного вызова. 0 — DefaultTimeout.
	Timeout time.Duration

	// MaxResponseBody — предел тела ответа в байтах. 0 — DefaultMaxResponseBody.
	MaxResponseBody int64
}

// Client — HTTP реализация Doer.
type Client struct {
	baseURL string
	maxBody int64
	client  *http.Client
}

// NewClient создаёт Client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBody := cfg.MaxResponseBody
	if maxBody <= 0 {
		maxBody = DefaultMaxResponseBody
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		maxBody: maxBody,
		client:  &http.Client{Timeout: timeout},
	}
}

// Do выполняет вызов.
func (c *Client) Do(ctx context.Context, opts Options) (*Response, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: url is required", ErrInvalidOptions)
	}

	req, err := c.buildRequest(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrCancelled, ctx.Err())
		}
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	return parseResponse(resp, c.maxBody)
}

// resolveURL добавляет BaseURL к относительному адресу.
func (c *Client) resolveURL(url string) string {
	if strings.HasPrefix(url, "/") && c.baseURL != "" {
		return c.baseURL + url
	}
	return url
}

// buildRequest создаёт HTTP запрос.
func (c *Client) buildRequest(ctx context.Context, opts Options) (*http.Request, error) {
	method := strings.ToUpper(opts.Method)
	if method == "" {
		method = http.MethodPost
	}

	headers := make(map[string]string, len(opts.Headers)+1)
	for k, v := range opts.Headers {
		headers[k] = v
	}

	var bodyReader io.Reader
	if opts.Body != nil && method != http.MethodGet && method != http.MethodHead {
		bodyBytes, err := serializeBody(opts.Body)
		if err != nil {
			return nil, fmt.Errorf("serialize body: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)

		if !hasHeader(headers, "Content-Type") {
			headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolveURL(opts.URL), bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range headers {
		if !forwardable(key) {
			continue
		}
		req.Header.Set(key, value)
	}

	return req, nil
}

// forwardable возвращает false для заголовков, которые выставляет сам
// транспорт: длина тела, хост, сжатие и hop-by-hop заголовки.
// Без Accept-Encoding net/http сам распаковывает gzip ответ.
func forwardable(key string) bool {
	k := strings.ToLower(key)
	switch k {
	case "content-length", "host", "accept-encoding",
		"connection", "keep-alive", "te", "trailer", "transfer-encoding", "upgrade":
		return false
	}
	return !strings.HasPrefix(k, "proxy-")
}

func hasHeader(headers map[string]string, name string) bool {
	for k := range headers {
		if strings.EqualFold(k, name) {
			return true
		}
	}
	return false
}

// serializeBody сериализует body в bytes.
func serializeBody(body any) ([]byte, error) {
	switch v := body.(type) {
	case string:
		return []byte(v), nil
	case []byte:
		return v, nil
	default:
		return sonic.Marshal(v)
	}
}

// parseResponse читает ответ. JSON тело разбирается, остальное — строка.
// Тело больше limit — ErrResponseTooLarge.
func parseResponse(resp *http.Response, limit int64) (*Response, error) {
	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if int64(len(bodyBytes)) > limit {
		return nil, fmt.Errorf("%w: limit %d bytes", ErrResponseTooLarge, limit)
	}

	var body any
	if len(bodyBytes) > 0 {
		if strings.Contains(resp.Header.Get("Content-Type"), "json") {
			if err := sonic.Unmarshal(bodyBytes, &body); err != nil {
				body = string(bodyBytes)
			}
		} else {
			body = string(bodyBytes)
		}
	}

	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[strings.ToLower(key)] = resp.Header.Get(key)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    headers,
	}, nil
}
