package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Общие ошибки репозиториев.
var (
	// ErrNotFound: запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists: нарушено ограничение уникальности.
	ErrAlreadyExists = errors.New("already exists")
)

// pgUniqueViolation: SQLSTATE нарушения уникальности.
const pgUniqueViolation = "23505"

// pgForeignKeyViolation: SQLSTATE нарушения внешнего ключа.
const pgForeignKeyViolation = "23503"

func isPgError(err error, code string) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}
