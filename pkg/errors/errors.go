package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Code extracts the error code, or INTERNAL_ERROR for plain errors.
func Code(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrCodeInternalError
}

// HasCode reports whether err is an AppError carrying the given code.
func HasCode(err error, code string) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// Common error codes
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeForbidden         = "FORBIDDEN"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeAlreadyExists     = "ALREADY_EXISTS"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)

// Settlement error codes
const (
	ErrCodeInsufficientFunds   = "INSUFFICIENT_FUNDS"
	ErrCodeOrderNotFound       = "ORDER_NOT_FOUND"
	ErrCodeOrderAlreadyDecided = "ORDER_ALREADY_DECIDED"
	ErrCodeAlreadyRedeemed     = "ALREADY_REDEEMED"
	ErrCodeCodeExpired         = "CODE_EXPIRED"
	ErrCodeCodeExhausted       = "CODE_EXHAUSTED"
	ErrCodeCodeNotFound        = "CODE_NOT_FOUND"
	ErrCodeConfigConflict      = "CONFIG_CONFLICT"
)
