package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Freeeeeet/video_access/internal/repository"
)

const uniqueViolation = "23505"

// DBTX общий интерфейс пула соединений и транзакции
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store реализует repository.Store поверх PostgreSQL
type Store struct {
	pool *pgxpool.Pool // nil внутри транзакции
	tx   pgx.Tx
	db   DBTX
}

// NewStore создаёт хранилище поверх пула соединений
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool, db: pool}
}

func (s *Store) Users() repository.UserRepository {
	return NewUserRepository(s.db)
}

func (s *Store) Videos() repository.VideoRepository {
	return NewVideoRepository(s.db)
}

func (s *Store) Permissions() repository.PermissionRepository {
	return NewPermissionRepository(s.db)
}

func (s *Store) Events() repository.EventRepository {
	return NewEventRepository(s.db)
}

// InTx выполняет fn в транзакции. Вложенный вызов открывает savepoint,
// поэтому ошибка внутри него не прерывает внешнюю транзакцию.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	var (
		tx  pgx.Tx
		err error
	)
	if s.tx != nil {
		tx, err = s.tx.Begin(ctx)
	} else {
		tx, err = s.pool.Begin(ctx)
	}
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&Store{tx: tx, db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	return nil
}

// isNotFound проверяет является ли ошибка "строка не найдена"
func isNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// isUniqueViolation проверяет нарушение уникального индекса
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
