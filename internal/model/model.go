// Package model содержит доменные сущности сервиса POS-коннектора.
package model

import (
	"time"

	"github.com/google/uuid"
)

// Connector описывает конфигурацию подключения к внешнему API платежей.
type Connector struct {
	ID             int64
	Name           string
	BaseURL        string
	APIVersion     string
	TimeoutSeconds int
	IsActive       bool
	CreatedAt      time.Time
}

// ValidationRecord — сохранённый результат одной попытки валидации заказа.
type ValidationRecord struct {
	ID          uuid.UUID
	OrderID     string
	ConnectorID int64
	Success     bool
	ErrorKind   string
	Message     string
	Result      []byte
	CreatedAt   time.Time
}

// ConnectorInfo — сведения о коннекторе для отчёта о состоянии.
type ConnectorInfo struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	BaseURL        string `json:"base_url"`
	APIVersion     string `json:"api_version"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	IsActive       bool   `json:"is_active"`
	EndpointURL    string `json:"endpoint_url"`
}

// StatusReport — сводка по настроенным коннекторам для операционных инструментов.
type StatusReport struct {
	TotalCount  int             `json:"total_count"`
	ActiveCount int             `json:"active_count"`
	Connectors  []ConnectorInfo `json:"connectors"`
}
