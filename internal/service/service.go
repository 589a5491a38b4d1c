// Package service реализует бизнес-логику сервиса POS-коннектора.
package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/akaretnikov/posconnect-system/internal/model"
	"github.com/akaretnikov/posconnect-system/internal/subsidy"
	"github.com/akaretnikov/posconnect-system/pkg/metrics"
)

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error
	Ping(ctx context.Context) error
	CreateConnector(ctx context.Context, c model.Connector) (int64, error)
	GetConnector(ctx context.Context, id int64) (*model.Connector, error)
	GetFirstActiveConnector(ctx context.Context) (*model.Connector, error)
	ListConnectors(ctx context.Context) ([]model.Connector, error)
	ListActiveConnectors(ctx context.Context) ([]model.Connector, error)
	SetConnectorActive(ctx context.Context, id int64, active bool) error
	SaveValidation(ctx context.Context, rec model.ValidationRecord) error
	GetValidationsByOrder(ctx context.Context, orderID string) ([]model.ValidationRecord, error)
}

// Validator описывает контракт клиента внешнего API платежей.
type Validator interface {
	Validate(ctx context.Context, order subsidy.OrderInput) subsidy.Outcome
	TestConnection(ctx context.Context) subsidy.Outcome
}

// Service содержит бизнес-логику сервиса POS-коннектора.
type Service struct {
	repo   Repository
	logger *zap.Logger

	// newValidator создаёт клиент API для конфигурации коннектора.
	// Подменяется в тестах.
	newValidator func(c model.Connector) Validator
}

// NewService создаёт новый сервис с указанным репозиторием.
func NewService(repo Repository, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		repo:   repo,
		logger: logger,
	}
	s.newValidator = func(c model.Connector) Validator {
		return subsidy.NewClient(subsidy.Config{
			Name:           c.Name,
			BaseURL:        c.BaseURL,
			APIVersion:     c.APIVersion,
			TimeoutSeconds: c.TimeoutSeconds,
			IsActive:       c.IsActive,
		}, logger)
	}

	return s
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// Ping проверяет доступность хранилища.
func (s *Service) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// ValidateOrder проверяет заказ через внешний API. Коннектор выбирается по
// идентификатору либо, если он не задан, берётся первый активный. Результат
// попытки сохраняется в истории валидаций; сбой записи не отменяет исход.
func (s *Service) ValidateOrder(ctx context.Context, connectorID *int64, order subsidy.OrderInput) (subsidy.Outcome, error) {
	connector, err := s.resolveConnector(ctx, connectorID)
	if err != nil {
		return subsidy.Outcome{}, err
	}

	outcome := s.newValidator(*connector).Validate(ctx, order)

	s.recordOutcome(ctx, connector.ID, order.OrderID, outcome)

	return outcome, nil
}

// TestConnection выполняет проверку связи для указанного коннектора.
func (s *Service) TestConnection(ctx context.Context, connectorID int64) (subsidy.Outcome, error) {
	connector, err := s.repo.GetConnector(ctx, connectorID)
	if err != nil {
		return subsidy.Outcome{}, err
	}

	outcome := s.newValidator(*connector).TestConnection(ctx)

	result := "ok"
	if !outcome.OK {
		result = "failed"
	}
	metrics.ConnectorProbes.WithLabelValues(result).Inc()

	return outcome, nil
}

// CreateConnector сохраняет новую конфигурацию коннектора.
func (s *Service) CreateConnector(ctx context.Context, c model.Connector) (int64, error) {
	if c.APIVersion == "" {
		c.APIVersion = subsidy.APIVersionV2
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return s.repo.CreateConnector(ctx, c)
}

// SetConnectorActive включает или выключает коннектор.
func (s *Service) SetConnectorActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetConnectorActive(ctx, id, active)
}

// ListActiveConnectors возвращает активные коннекторы для фронтенда кассы.
func (s *Service) ListActiveConnectors(ctx context.Context) ([]model.Connector, error) {
	return s.repo.ListActiveConnectors(ctx)
}

// ValidationHistory возвращает историю валидаций заказа.
func (s *Service) ValidationHistory(ctx context.Context, orderID string) ([]model.ValidationRecord, error) {
	return s.repo.GetValidationsByOrder(ctx, orderID)
}

// StatusReport собирает сводку по настроенным коннекторам.
func (s *Service) StatusReport(ctx context.Context) (*model.StatusReport, error) {
	connectors, err := s.repo.ListConnectors(ctx)
	if err != nil {
		return nil, err
	}

	report := &model.StatusReport{
		TotalCount: len(connectors),
		Connectors: make([]model.ConnectorInfo, 0, len(connectors)),
	}

	for _, c := range connectors {
		if c.IsActive {
			report.ActiveCount++
		}
		report.Connectors = append(report.Connectors, model.ConnectorInfo{
			ID:             c.ID,
			Name:           c.Name,
			BaseURL:        c.BaseURL,
			APIVersion:     c.APIVersion,
			TimeoutSeconds: c.TimeoutSeconds,
			IsActive:       c.IsActive,
			EndpointURL:    subsidy.EndpointURL(c.BaseURL),
		})
	}

	return report, nil
}

func (s *Service) recordOutcome(ctx context.Context, connectorID int64, orderID string, outcome subsidy.Outcome) {
	if outcome.OK {
		metrics.ValidationsTotal.WithLabelValues("success").Inc()
	} else {
		metrics.ValidationsTotal.WithLabelValues("failure").Inc()
		metrics.ValidationErrors.WithLabelValues(string(outcome.ErrorKind)).Inc()
	}

	rec := model.ValidationRecord{
		ID:          uuid.New(),
		OrderID:     orderID,
		ConnectorID: connectorID,
		Success:     outcome.OK,
		ErrorKind:   string(outcome.ErrorKind),
		Message:     outcome.Message,
	}

	if outcome.Data != nil {
		if data, err := json.Marshal(outcome.Data); err == nil {
			rec.Result = data
		}
	}

	if err := s.repo.SaveValidation(ctx, rec); err != nil {
		s.logger.Error("save validation record",
			zap.String("orderID", orderID),
			zap.Error(err),
		)
	}
}

func (s *Service) resolveConnector(ctx context.Context, connectorID *int64) (*model.Connector, error) {
	if connectorID != nil {
		return s.repo.GetConnector(ctx, *connectorID)
	}
	return s.repo.GetFirstActiveConnector(ctx)
}
