// Package repository содержит реализацию хранилища сессий в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/clickarena-settlement/internal/dayid"
	"github.com/mmeshcher/clickarena-settlement/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrInvalidSession возвращается при попытке сохранить сессию с
// отрицательными счётчиками.
var ErrInvalidSession = errors.New("invalid session record")

// PostgresRepository предоставляет доступ к хранилищу сессий в PostgreSQL.
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

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи оправданы для конфликтов сериализации и взаимоблокировок;
		// переподключением пул занимается самостоятельно.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощённая проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// AddSession добавляет запись игровой сессии. Хранилище строго
// append-only: записи никогда не изменяются и не удаляются.
func (r *PostgresRepository) AddSession(ctx context.Context, rec model.SessionRecord) error {
	if rec.Points < 0 || rec.BonusHits < 0 || rec.PenaltyHits < 0 {
		return ErrInvalidSession
	}

	return r.withRetry(ctx, func() error {
		_, err := r.pool.Exec(ctx,
			`INSERT INTO sessions (player, points, bonus_hits, penalty_hits, ts, ts_millis)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			rec.Player, rec.Points, rec.BonusHits, rec.PenaltyHits,
			rec.Timestamp, rec.Timestamp.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}
		return nil
	})
}

// ListSessionsByDay возвращает все сессии, чья метка времени попадает в
// указанный игровой день.
func (r *PostgresRepository) ListSessionsByDay(ctx context.Context, dayID int64) ([]model.SessionRecord, error) {
	fromMillis, toMillis := dayid.Bounds(dayID)

	rows, err := r.pool.Query(ctx,
		`SELECT player, points, bonus_hits, penalty_hits, ts
		 FROM sessions
		 WHERE ts_millis BETWEEN $1 AND $2
		 ORDER BY ts_millis`,
		fromMillis, toMillis,
	)
	if err != nil {
		return nil, fmt.Errorf("select sessions: %w", err)
	}
	defer rows.Close()

	var res []model.SessionRecord
	for rows.Next() {
		var rec model.SessionRecord
		if err := rows.Scan(&rec.Player, &rec.Points, &rec.BonusHits, &rec.PenaltyHits, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		res = append(res, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// DaysWithSessions возвращает идентификаторы дней диапазона [fromDay, toDay],
// за которые есть хотя бы одна сессия. Позволяет сканеру не поднимать
// записи пустых дней.
func (r *PostgresRepository) DaysWithSessions(ctx context.Context, fromDay, toDay int64) ([]int64, error) {
	fromMillis, _ := dayid.Bounds(fromDay)
	_, toMillis := dayid.Bounds(toDay)

	rows, err := r.pool.Query(ctx,
		`SELECT DISTINCT ts_millis / 86400000 AS day_id
		 FROM sessions
		 WHERE ts_millis BETWEEN $1 AND $2
		 ORDER BY day_id`,
		fromMillis, toMillis,
	)
	if err != nil {
		return nil, fmt.Errorf("select days: %w", err)
	}
	defer rows.Close()

	var res []int64
	for rows.Next() {
		var day int64
		if err := rows.Scan(&day); err != nil {
			return nil, fmt.Errorf("scan day: %w", err)
		}
		res = append(res, day)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}
