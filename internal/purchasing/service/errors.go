package service

import (
	"errors"
	"fmt"

	"github.com/grupocyc/compras/internal/purchasing/repository"
	"github.com/jackc/pgx/v5/pgconn"
)

// Business error kinds. Services wrap them with fmt.Errorf("%w: ...") and
// handlers map them to HTTP statuses with errors.Is; anything else is an
// internal failure and surfaces as 500 after the transaction rolls back.
var (
	ErrNotFound     = errors.New("not found")
	ErrBadRequest   = errors.New("bad request")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidState = errors.New("invalid state")
)

const fkViolationCode = "23503"

// translateDBError converts repository sentinel and foreign-key errors
// into business kinds. FK violations become a BadRequest naming the
// violated reference so callers learn which id was wrong.
func translateDBError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, err.Error())
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == fkViolationCode {
		return fmt.Errorf("%w: referenced record does not exist (constraint %s): %s",
			ErrBadRequest, pgErr.ConstraintName, pgErr.Detail)
	}
	return err
}
