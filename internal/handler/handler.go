// Package handler содержит HTTP-обработчики API сервиса POS-коннектора.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/akaretnikov/posconnect-system/internal/middleware"
	"github.com/akaretnikov/posconnect-system/internal/model"
	"github.com/akaretnikov/posconnect-system/internal/repository"
	"github.com/akaretnikov/posconnect-system/internal/subsidy"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	Ping(ctx context.Context) error
	ValidateOrder(ctx context.Context, connectorID *int64, order subsidy.OrderInput) (subsidy.Outcome, error)
	TestConnection(ctx context.Context, connectorID int64) (subsidy.Outcome, error)
	CreateConnector(ctx context.Context, c model.Connector) (int64, error)
	SetConnectorActive(ctx context.Context, id int64, active bool) error
	ListActiveConnectors(ctx context.Context) ([]model.Connector, error)
	ValidationHistory(ctx context.Context, orderID string) ([]model.ValidationRecord, error)
	StatusReport(ctx context.Context) (*model.StatusReport, error)
}

// Handler реализует HTTP-обработчики API сервиса POS-коннектора.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type orderLinePayload struct {
	ProductID *int64   `json:"product_id"`
	Qty       *float64 `json:"qty"`
}

type orderPayload struct {
	OrderID       string             `json:"order_id"`
	CustomerEmail string             `json:"customer_email"`
	Lines         []orderLinePayload `json:"lines"`
}

type validateRequest struct {
	ConnectorID *int64       `json:"connector_id"`
	Order       orderPayload `json:"order"`
}

// validateResponse — конверт ответа фронтенду кассы. Фронтенд различает
// исходы по полям success и error_type, поэтому классифицированные отказы
// отдаются со статусом 200.
type validateResponse struct {
	Success    bool            `json:"success"`
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
	ErrorType  string          `json:"error_type,omitempty"`
	StatusCode int             `json:"status_code,omitempty"`
	Data       *subsidy.Result `json:"data,omitempty"`
}

// ValidateOrder проверяет заказ кассы через внешний API платежей.
func (h *Handler) ValidateOrder(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	order := subsidy.OrderInput{
		OrderID:       req.Order.OrderID,
		CustomerEmail: req.Order.CustomerEmail,
		Lines:         make([]subsidy.OrderLine, 0, len(req.Order.Lines)),
	}
	for _, line := range req.Order.Lines {
		var qty *decimal.Decimal
		if line.Qty != nil {
			d := decimal.NewFromFloat(*line.Qty)
			qty = &d
		}
		order.Lines = append(order.Lines, subsidy.OrderLine{
			ProductID: line.ProductID,
			Quantity:  qty,
		})
	}

	outcome, err := h.service.ValidateOrder(r.Context(), req.ConnectorID, order)
	if err != nil {
		h.writeResolveError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, outcomeResponse(outcome))
}

// TestConnection выполняет проверку связи для указанного коннектора.
func (h *Handler) TestConnection(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	outcome, svcErr := h.service.TestConnection(r.Context(), id)
	if svcErr != nil {
		h.writeResolveError(w, r, svcErr)
		return
	}

	writeJSON(w, http.StatusOK, outcomeResponse(outcome))
}

type createConnectorRequest struct {
	Name           string `json:"name"`
	BaseURL        string `json:"base_url"`
	APIVersion     string `json:"api_version"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	IsActive       *bool  `json:"is_active"`
}

// CreateConnector сохраняет новую конфигурацию коннектора.
func (h *Handler) CreateConnector(w http.ResponseWriter, r *http.Request) {
	var req createConnectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if req.Name == "" || req.BaseURL == "" {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	id, err := h.service.CreateConnector(r.Context(), model.Connector{
		Name:           req.Name,
		BaseURL:        req.BaseURL,
		APIVersion:     req.APIVersion,
		TimeoutSeconds: req.TimeoutSeconds,
		IsActive:       isActive,
	})
	if err != nil {
		if errors.Is(err, repository.ErrConnectorExists) {
			http.Error(w, http.StatusText(http.StatusConflict), http.StatusConflict)
			return
		}
		h.logger.Error("create connector error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{"id": id})
}

type updateConnectorRequest struct {
	IsActive bool `json:"is_active"`
}

// UpdateConnector включает или выключает коннектор.
func (h *Handler) UpdateConnector(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	var req updateConnectorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	if err := h.service.SetConnectorActive(r.Context(), id, req.IsActive); err != nil {
		h.writeResolveError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type connectorsResponse struct {
	Success    bool                  `json:"success"`
	Connectors []model.ConnectorInfo `json:"connectors"`
	TotalCount int                   `json:"total_count"`
}

// ListConnectors возвращает активные коннекторы для фронтенда кассы.
func (h *Handler) ListConnectors(w http.ResponseWriter, r *http.Request) {
	connectors, err := h.service.ListActiveConnectors(r.Context())
	if err != nil {
		h.logger.Error("list connectors error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	resp := connectorsResponse{
		Success:    true,
		Connectors: make([]model.ConnectorInfo, 0, len(connectors)),
		TotalCount: len(connectors),
	}
	for _, c := range connectors {
		resp.Connectors = append(resp.Connectors, model.ConnectorInfo{
			ID:             c.ID,
			Name:           c.Name,
			BaseURL:        c.BaseURL,
			APIVersion:     c.APIVersion,
			TimeoutSeconds: c.TimeoutSeconds,
			IsActive:       c.IsActive,
			EndpointURL:    subsidy.EndpointURL(c.BaseURL),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Status возвращает сводку по настроенным коннекторам для операционных инструментов.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	report, err := h.service.StatusReport(r.Context())
	if err != nil {
		h.logger.Error("status report error", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type validationRecordResponse struct {
	ID        string          `json:"id"`
	OrderID   string          `json:"order_id"`
	Success   bool            `json:"success"`
	ErrorKind string          `json:"error_kind,omitempty"`
	Message   string          `json:"message,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	CreatedAt string          `json:"created_at"`
}

// ValidationHistory возвращает историю валидаций заказа, новые записи первыми.
func (h *Handler) ValidationHistory(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderID")

	records, err := h.service.ValidationHistory(r.Context(), orderID)
	if err != nil {
		h.logger.Error("validation history error", zap.Error(err), zap.String("orderID", orderID))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if len(records) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	resp := make([]validationRecordResponse, 0, len(records))
	for _, rec := range records {
		resp = append(resp, validationRecordResponse{
			ID:        rec.ID.String(),
			OrderID:   rec.OrderID,
			Success:   rec.Success,
			ErrorKind: rec.ErrorKind,
			Message:   rec.Message,
			Result:    rec.Result,
			CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// Health — проверка живости сервиса для внешнего мониторинга, без авторизации.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "healthy",
		"database_status": "connected",
	})
}

// writeResolveError сопоставляет ошибки выбора коннектора с конвертом ответа.
func (h *Handler) writeResolveError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, repository.ErrConnectorNotFound):
		writeJSON(w, http.StatusNotFound, validateResponse{
			Success:   false,
			Error:     "connector not found",
			ErrorType: "not_found",
		})
	case errors.Is(err, repository.ErrNoActiveConnector):
		writeJSON(w, http.StatusOK, validateResponse{
			Success:   false,
			Error:     "no active connector found",
			ErrorType: "no_connector",
		})
	default:
		h.logger.Error("validate order error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, validateResponse{
			Success:   false,
			Error:     "internal error",
			ErrorType: "unexpected",
		})
	}
}

func outcomeResponse(outcome subsidy.Outcome) validateResponse {
	if outcome.OK {
		return validateResponse{
			Success: true,
			Message: outcome.Message,
			Data:    outcome.Data,
		}
	}

	return validateResponse{
		Success:    false,
		Error:      outcome.Message,
		ErrorType:  string(outcome.ErrorKind),
		StatusCode: outcome.StatusCode,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
