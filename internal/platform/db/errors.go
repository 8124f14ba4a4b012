package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// IsNoRows reports whether err means the queried row does not exist.
func IsNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

// UniqueViolation returns the name of the violated constraint when err is a
// unique-constraint failure.
func UniqueViolation(err error) (string, bool) {
	return constraintFor(err, codeUniqueViolation)
}

// ForeignKeyViolation returns the name of the violated constraint when err is
// a foreign-key failure.
func ForeignKeyViolation(err error) (string, bool) {
	return constraintFor(err, codeForeignKeyViolation)
}

func constraintFor(err error, code string) (string, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == code {
		return pgErr.ConstraintName, true
	}
	return "", false
}
