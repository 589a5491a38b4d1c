// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/akaretnikov/posconnect-system/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrConnectorExists возвращается при попытке создать коннектор с уже занятым именем.
var (
	ErrConnectorExists = errors.New("connector already exists")
	// ErrConnectorNotFound возвращается, если коннектор не найден.
	ErrConnectorNotFound = errors.New("connector not found")
	// ErrNoActiveConnector возвращается, если нет ни одного активного коннектора.
	ErrNoActiveConnector = errors.New("no active connector found")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// Ping проверяет доступность БД.
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// CreateConnector сохраняет конфигурацию коннектора и возвращает её идентификатор.
func (r *PostgresRepository) CreateConnector(ctx context.Context, c model.Connector) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO connectors (name, base_url, api_version, timeout_seconds, is_active)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		c.Name, c.BaseURL, c.APIVersion, c.TimeoutSeconds, c.IsActive,
	).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return 0, fmt.Errorf("%w: %s", ErrConnectorExists, c.Name)
		}
		return 0, fmt.Errorf("create connector: %w", err)
	}
	return id, nil
}

// GetConnector возвращает коннектор по идентификатору.
func (r *PostgresRepository) GetConnector(ctx context.Context, id int64) (*model.Connector, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, base_url, api_version, timeout_seconds, is_active, created_at
		 FROM connectors WHERE id = $1`,
		id,
	)

	c, err := scanConnector(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConnectorNotFound
		}
		return nil, fmt.Errorf("get connector: %w", err)
	}

	return c, nil
}

// GetFirstActiveConnector возвращает первый активный коннектор.
func (r *PostgresRepository) GetFirstActiveConnector(ctx context.Context) (*model.Connector, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, name, base_url, api_version, timeout_seconds, is_active, created_at
		 FROM connectors WHERE is_active ORDER BY id LIMIT 1`,
	)

	c, err := scanConnector(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNoActiveConnector
		}
		return nil, fmt.Errorf("get active connector: %w", err)
	}

	return c, nil
}

// ListConnectors возвращает все настроенные коннекторы.
func (r *PostgresRepository) ListConnectors(ctx context.Context) ([]model.Connector, error) {
	return r.listConnectors(ctx,
		`SELECT id, name, base_url, api_version, timeout_seconds, is_active, created_at
		 FROM connectors ORDER BY id`)
}

// ListActiveConnectors возвращает только активные коннекторы.
func (r *PostgresRepository) ListActiveConnectors(ctx context.Context) ([]model.Connector, error) {
	return r.listConnectors(ctx,
		`SELECT id, name, base_url, api_version, timeout_seconds, is_active, created_at
		 FROM connectors WHERE is_active ORDER BY id`)
}

func (r *PostgresRepository) listConnectors(ctx context.Context, query string) ([]model.Connector, error) {
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("select connectors: %w", err)
	}
	defer rows.Close()

	var connectors []model.Connector
	for rows.Next() {
		var c model.Connector
		if err := rows.Scan(&c.ID, &c.Name, &c.BaseURL, &c.APIVersion, &c.TimeoutSeconds, &c.IsActive, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan connector: %w", err)
		}
		connectors = append(connectors, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate connectors: %w", err)
	}

	return connectors, nil
}

// SetConnectorActive включает или выключает коннектор.
func (r *PostgresRepository) SetConnectorActive(ctx context.Context, id int64, active bool) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE connectors SET is_active = $2 WHERE id = $1`,
		id, active,
	)
	if err != nil {
		return fmt.Errorf("update connector: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrConnectorNotFound
	}
	return nil
}

// EnsureDefaultConnector создаёт коннектор по умолчанию, если ещё нет ни одного.
func (r *PostgresRepository) EnsureDefaultConnector(ctx context.Context, baseURL string) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO connectors (name, base_url, api_version, timeout_seconds, is_active)
		 SELECT 'default', $1, 'v2', 30, true
		 WHERE NOT EXISTS (SELECT 1 FROM connectors)`,
		baseURL,
	)
	if err != nil {
		return fmt.Errorf("ensure default connector: %w", err)
	}
	return nil
}

// SaveValidation сохраняет результат попытки валидации заказа.
func (r *PostgresRepository) SaveValidation(ctx context.Context, rec model.ValidationRecord) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO validations (id, order_id, connector_id, success, error_kind, message, result)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.ID, rec.OrderID, rec.ConnectorID, rec.Success, rec.ErrorKind, rec.Message, rec.Result,
	)
	if err != nil {
		return fmt.Errorf("save validation: %w", err)
	}
	return nil
}

// GetValidationsByOrder возвращает историю валидаций заказа, новые записи первыми.
func (r *PostgresRepository) GetValidationsByOrder(ctx context.Context, orderID string) ([]model.ValidationRecord, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, order_id, connector_id, success, error_kind, message, result, created_at
		 FROM validations
		 WHERE order_id = $1
		 ORDER BY created_at DESC`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select validations: %w", err)
	}
	defer rows.Close()

	var records []model.ValidationRecord
	for rows.Next() {
		var rec model.ValidationRecord
		if err := rows.Scan(&rec.ID, &rec.OrderID, &rec.ConnectorID, &rec.Success,
			&rec.ErrorKind, &rec.Message, &rec.Result, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan validation: %w", err)
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate validations: %w", err)
	}

	return records, nil
}

func scanConnector(row pgx.Row) (*model.Connector, error) {
	var c model.Connector
	err := row.Scan(&c.ID, &c.Name, &c.BaseURL, &c.APIVersion, &c.TimeoutSeconds, &c.IsActive, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
