package steps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/shaiso/flowrunner/internal/domain"
)

// maxResponseBody: предел чтения тела ответа.
const maxResponseBody = 10 * 1024 * 1024 // 10 MB

// HTTPRequestStep: шаг узла http_request.
//
// Выполняет запрос без тела с методом в верхнем регистре и заголовками
// из конфигурации, затем разбирает тело ответа как JSON.
//
// Код ответа не проверяется: любой ответ с JSON-телом: success.
// Таймаута нет, ретраев нет. Отмена ctx прерывает запрос и даёт fail.
type HTTPRequestStep struct {
	client *http.Client
}

// NewHTTPRequestStep создаёт шаг. Если client == nil, используется
// клиент без таймаута.
func NewHTTPRequestStep(client *http.Client) *HTTPRequestStep {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPRequestStep{client: client}
}

// Type возвращает тип узла.
func (s *HTTPRequestStep) Type() domain.NodeType {
	return domain.NodeTypeHTTPRequest
}

// Execute выполняет запрос и возвращает success с разобранным телом
// или fail с ошибкой.
func (s *HTTPRequestStep) Execute(ctx context.Context, node domain.Node, _ map[string]string) domain.Result {
	cfg := node.HTTPRequest()
	if cfg == nil {
		return domain.Failed(fmt.Errorf("%w: %s: config is required", ErrInvalidConfig, node.ID))
	}
	if cfg.URL == "" {
		return domain.Failed(fmt.Errorf("%w: %s: url is required", ErrInvalidConfig, node.ID))
	}

	req, err := s.buildRequest(ctx, cfg)
	if err != nil {
		return domain.Failed(fmt.Errorf("%w: %s: %v", ErrInvalidConfig, node.ID, err))
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return domain.Failed(fmt.Errorf("%w: %v", ErrHTTPRequest, err))
	}
	defer resp.Body.Close()

	body, err := parseResponse(resp)
	if err != nil {
		return domain.Failed(err)
	}

	return domain.Succeeded(body)
}

// buildRequest создаёт запрос без тела.
func (s *HTTPRequestStep) buildRequest(ctx context.Context, cfg *domain.HTTPRequestConfig) (*http.Request, error) {
	method := strings.ToUpper(cfg.Method)
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, nil)
	if err != nil {
		return nil, err
	}

	for key, value := range cfg.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}

// parseResponse читает тело с ограничением размера и разбирает его как JSON.
func parseResponse(resp *http.Response) (any, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrResponseParse, err)
	}

	var body any
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, fmt.Errorf("%w: HTTP %d: %v", ErrResponseParse, resp.StatusCode, err)
	}

	return body, nil
}
