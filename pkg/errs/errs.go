package errs

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/jackc/pgconn"
	"github.com/lib/pq"
)

// Error codes. Callers branch on these instead of matching messages.
const (
	EInternal       = "internal error"
	EInvalid        = "invalid"
	EConflict       = "conflict"
	ENotFound       = "not found"
	EUnavailable    = "unavailable"
	EQuotaExceeded  = "quota exceeded"
	EPartialFailure = "partial failure"
)

// Error is the typed error returned by every operation in this module.
//
// Code drives automated handling (retry, HTTP status). Msg is meant for
// operators. Op names the failing operation and TenantID the tenant it
// ran against, so a log line is enough to replay the failure.
type Error struct {
	Code     string
	Msg      string
	Op       string
	TenantID int64
	Err      error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	if e.TenantID != 0 {
		fmt.Fprintf(&b, "tenant %d: ", e.TenantID)
	}
	switch {
	case e.Msg != "" && e.Err != nil:
		b.WriteString(e.Msg)
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	case e.Msg != "":
		b.WriteString(e.Msg)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		fmt.Fprintf(&b, "<%s>", e.Code)
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Invalid returns a validation error. Validation errors are never retried.
func Invalid(op, format string, args ...interface{}) *Error {
	return &Error{Code: EInvalid, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Conflict returns a conflict error.
func Conflict(op, format string, args ...interface{}) *Error {
	return &Error{Code: EConflict, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound returns a not found error.
func NotFound(op, format string, args ...interface{}) *Error {
	return &Error{Code: ENotFound, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// QuotaExceeded returns a logical quota refusal.
func QuotaExceeded(op, format string, args ...interface{}) *Error {
	return &Error{Code: EQuotaExceeded, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap attaches op and tenant context to err, classifying it when it is
// not already an *Error.
func Wrap(op string, tenantID int64, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return &Error{Code: e.Code, Op: op, TenantID: tenantID, Err: err}
	}
	return &Error{Code: classify(err), Op: op, TenantID: tenantID, Err: err}
}

// Classify maps a driver or network error onto an error code.
// Errors that already carry a code are returned unchanged.
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Code: classify(err), Op: op, Err: err}
}

func classify(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone):
		return EUnavailable
	case errors.Is(err, sql.ErrNoRows):
		return ENotFound
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return sqlState(string(pqErr.Code))
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return sqlState(pgErr.Code)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return EUnavailable
	}
	return EInternal
}

// sqlState maps a postgres SQLSTATE onto an error code.
func sqlState(code string) string {
	switch {
	case code == "42P04": // duplicate_database
		return EConflict
	case strings.HasPrefix(code, "23"): // integrity_constraint_violation
		return EConflict
	case code == "3D000", code == "42P01": // invalid_catalog_name, undefined_table
		return ENotFound
	case strings.HasPrefix(code, "08"), // connection_exception
		strings.HasPrefix(code, "53"), // insufficient_resources
		code == "57P01", code == "57P02", code == "57P03",
		code == "57014", // query_canceled
		code == "40001", code == "40P01":
		return EUnavailable
	}
	return EInternal
}

// ErrorCode returns the code of the outermost *Error in err's chain,
// EInternal for uncoded errors and "" for nil.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return EInternal
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Err != nil {
		return ErrorCode(e.Err)
	}
	return EInternal
}

// Is reports whether err carries code.
func Is(err error, code string) bool {
	return ErrorCode(err) == code
}

// Retryable reports whether err is an infrastructure failure worth a
// bounded retry.
func Retryable(err error) bool {
	return ErrorCode(err) == EUnavailable
}

// HTTPStatus maps an error onto the status code returned by the API.
func HTTPStatus(err error) int {
	switch ErrorCode(err) {
	case "":
		return http.StatusOK
	case EInvalid:
		return http.StatusBadRequest
	case ENotFound:
		return http.StatusNotFound
	case EConflict:
		return http.StatusConflict
	case EQuotaExceeded:
		return http.StatusInsufficientStorage
	case EUnavailable:
		return http.StatusServiceUnavailable
	case EPartialFailure:
		return http.StatusMultiStatus
	}
	return http.StatusInternalServerError
}

// PublicMessage returns text that is safe to show to an end user.
// Infrastructure and internal failures never leak driver messages.
func PublicMessage(err error) string {
	switch ErrorCode(err) {
	case EUnavailable:
		return "the service is temporarily unavailable, please retry later"
	case EInternal:
		return "an internal error occurred, please retry later"
	case EPartialFailure:
		return "the operation completed with failures"
	}
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return ErrorCode(err)
}
