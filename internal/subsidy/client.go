// Package subsidy предоставляет клиент внешнего API субсидированных платежей.
//
// Клиент выполняет один вызов валидации на попытку: формирует канонический
// запрос из данных заказа кассы, отправляет его по HTTP и нормализует
// неоднородный ответ API в стабильный результат. Ретраев нет — повтор
// неудачной попытки остаётся за вызывающей стороной.
package subsidy

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

const (
	// APIVersionV2 — единственная поддерживаемая версия внешнего API.
	APIVersionV2 = "v2"

	// validatePath — фиксированный суффикс эндпоинта валидации.
	validatePath = "/v2/validate"

	// userAgent идентифицирует клиент в запросах к внешнему API.
	userAgent = "POSConnect/1.0"

	// testOrderID — идентификатор синтетического заказа проверки связи.
	testOrderID = "TEST_CONNECTION"

	defaultTimeoutSeconds = 30
)

// Config — конфигурация коннектора, неизменяемая в пределах вызова.
type Config struct {
	Name           string
	BaseURL        string
	APIVersion     string
	TimeoutSeconds int
	IsActive       bool
}

// Client инкапсулирует HTTP-взаимодействие с системой субсидированных платежей.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient создаёт клиент для обращения к API по указанной конфигурации.
// Логгер может быть nil — тогда наблюдения не ведутся.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TimeoutSeconds <= 0 {
		cfg.TimeoutSeconds = defaultTimeoutSeconds
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}
}

// EndpointURL возвращает полный адрес эндпоинта валидации для базового URL.
func EndpointURL(baseURL string) string {
	base := strings.TrimRight(baseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return base + validatePath
}

// Validate проверяет заказ через внешний API и возвращает единый исход.
// Неклассифицированные сбои не покидают клиента: любой отказ превращается
// в Outcome с видом ошибки и сообщением для оператора кассы.
func (c *Client) Validate(ctx context.Context, order OrderInput) Outcome {
	if c == nil || c.cfg.BaseURL == "" {
		return Failure(KindUnexpected, "payment connector is not configured")
	}

	if !c.cfg.IsActive {
		return Failure(KindConnectorInactive, "payment connector is not active")
	}

	payment, err := BuildPaymentRequest(order, c.logger)
	if err != nil {
		return Failure(KindProcessing, fmt.Sprintf("failed to prepare payment data: %v", err))
	}

	body, err := json.Marshal(payment)
	if err != nil {
		return Failure(KindProcessing, fmt.Sprintf("failed to encode payment data: %v", err))
	}

	url := EndpointURL(c.cfg.BaseURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Failure(KindRequest, fmt.Sprintf("create request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Info("calling payment API",
		zap.String("connector", c.cfg.Name),
		zap.String("url", url),
		zap.String("orderID", order.OrderID),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		out := classifyTransportError(err, c.cfg.TimeoutSeconds)
		c.logger.Error("payment API call failed",
			zap.String("connector", c.cfg.Name),
			zap.String("errorKind", string(out.ErrorKind)),
			zap.Error(err),
		)
		return out
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Failure(KindRequest, fmt.Sprintf("read response: %v", err))
	}

	c.logger.Debug("payment API response",
		zap.Int("status", resp.StatusCode),
		zap.Int("bodyLength", len(respBody)),
	)

	return classifyResponse(resp.StatusCode, respBody)
}

// TestConnection отправляет синтетический заказ и проверяет доступность API.
// Бизнес-отказ по тестовому заказу не считается ошибкой связи: важно лишь
// отсутствие сбоя транспортного уровня.
func (c *Client) TestConnection(ctx context.Context) Outcome {
	one := int64(1)
	out := c.Validate(ctx, OrderInput{
		OrderID:       testOrderID,
		CustomerEmail: "test@posconnect.local",
		Lines:         []OrderLine{{ProductID: &one}},
	})

	if !out.OK && (out.ErrorKind.IsTransport() || out.ErrorKind == KindConnectorInactive) {
		return out
	}

	return Success(nil, "connection successful")
}
