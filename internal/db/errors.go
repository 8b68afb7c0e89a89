package db

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Violation is the storage-engine independent category of a failed statement.
type Violation int

const (
	ViolationNone Violation = iota
	ViolationUnique
	ViolationForeignKey
	ViolationNotNull
	ViolationCheck
	ViolationNotFound
	ViolationTimeout
	ViolationUnavailable
	ViolationUnknown
)

func (v Violation) String() string {
	switch v {
	case ViolationNone:
		return "none"
	case ViolationUnique:
		return "unique"
	case ViolationForeignKey:
		return "foreign_key"
	case ViolationNotNull:
		return "not_null"
	case ViolationCheck:
		return "check"
	case ViolationNotFound:
		return "not_found"
	case ViolationTimeout:
		return "timeout"
	case ViolationUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Postgres SQLSTATE codes (https://www.postgresql.org/docs/current/errcodes-appendix.html).
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeNotNullViolation    = "23502"
	codeCheckViolation      = "23514"
	codeStringTooLong       = "22001"
	codeQueryCanceled       = "57014"
	codeLockNotAvailable    = "55P03"
	codeAdminShutdown       = "57P01"
	codeTooManyConnections  = "53300"
)

var detailKeyRe = regexp.MustCompile(`Key \(([^)]+)\)`)

// Classify maps a storage error to a Violation and, when known, the offending columns.
func Classify(err error) (Violation, []string) {
	if err == nil {
		return ViolationNone, nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ViolationNotFound, nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ViolationTimeout, nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		fields := fieldsOf(pgErr)
		switch {
		case pgErr.Code == codeUniqueViolation:
			return ViolationUnique, fields
		case pgErr.Code == codeForeignKeyViolation:
			return ViolationForeignKey, fields
		case pgErr.Code == codeNotNullViolation:
			return ViolationNotNull, fields
		case pgErr.Code == codeCheckViolation, pgErr.Code == codeStringTooLong:
			return ViolationCheck, fields
		case pgErr.Code == codeQueryCanceled, pgErr.Code == codeLockNotAvailable:
			return ViolationTimeout, nil
		case pgErr.Code == codeAdminShutdown, pgErr.Code == codeTooManyConnections,
			strings.HasPrefix(pgErr.Code, "08"):
			return ViolationUnavailable, nil
		}
		return ViolationUnknown, nil
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return ViolationUnavailable, nil
	}
	return ViolationUnknown, nil
}

// fieldsOf extracts column names from the error. Postgres puts the column in
// ColumnName for not-null violations and only in Detail for unique/FK ones.
func fieldsOf(pgErr *pgconn.PgError) []string {
	if pgErr.ColumnName != "" {
		return []string{pgErr.ColumnName}
	}
	if m := detailKeyRe.FindStringSubmatch(pgErr.Detail); m != nil {
		parts := strings.Split(m[1], ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.TrimSpace(p); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	if pgErr.ConstraintName != "" {
		// users_email_key -> email
		name := strings.TrimSuffix(pgErr.ConstraintName, "_key")
		name = strings.TrimSuffix(name, "_fkey")
		if pgErr.TableName != "" {
			name = strings.TrimPrefix(name, pgErr.TableName+"_")
		}
		return []string{name}
	}
	return nil
}
