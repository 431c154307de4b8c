package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/phenrril/ordercore/internal/domain"
)

// SQLSTATE codes the store reacts to.
const (
	PgErrUniqueViolation     = "23505" // unique_violation
	PgErrCheckViolation      = "23514" // check_violation
	PgErrForeignKeyViolation = "23503" // foreign_key_violation
	PgErrSerializationFailed = "40001" // serialization_failure
	PgErrDeadlockDetected    = "40P01" // deadlock_detected
)

// translate maps driver errors onto the domain sentinels.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return errors.Join(domain.ErrConflict, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case PgErrUniqueViolation, PgErrCheckViolation, PgErrSerializationFailed, PgErrDeadlockDetected:
			return errors.Join(domain.ErrConflict, err)
		case PgErrForeignKeyViolation:
			return errors.Join(domain.ErrNotFound, err)
		}
	}
	return err
}
