package common

import (
	"errors"
	"fmt"
)

// AppError represents application-specific errors
type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Error codes surfaced to callers (X-Error-Code header, logs, metrics).
const (
	CodeTransport    = "TRANSPORT_ERROR"
	CodeDecode       = "DECODE_ERROR"
	CodeConversion   = "CONVERSION_ERROR"
	CodeOCR          = "OCR_ERROR"
	CodeStore        = "STORE_ERROR"
	CodeMessaging    = "MESSAGING_ERROR"
	CodeInvalidInput = "INVALID_INPUT"
	CodeConfig       = "CONFIG_ERROR"
	CodeInternal     = "INTERNAL_ERROR"
)

// Common application errors
var (
	ErrTransport    = errors.New("media transport failed")
	ErrDecode       = errors.New("media could not be decoded")
	ErrConversion   = errors.New("document produced no renderable page")
	ErrOCR          = errors.New("ocr engine failed")
	ErrStore        = errors.New("record store error")
	ErrMessaging    = errors.New("outbound message failed")
	ErrInvalidInput = errors.New("invalid input")
)

// Error constructors
func NewAppError(code, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewTransportError wraps a fetch failure; errors.Is(err, ErrTransport) holds.
func NewTransportError(message string, cause error) *AppError {
	return NewAppError(CodeTransport, message, joinCause(ErrTransport, cause))
}

// NewDecodeError wraps a decode or rasterization failure; errors.Is(err, ErrDecode) holds.
func NewDecodeError(message string, cause error) *AppError {
	return NewAppError(CodeDecode, message, joinCause(ErrDecode, cause))
}

// NewConversionError reports a document that rendered zero pages.
func NewConversionError(message string, cause error) *AppError {
	return NewAppError(CodeConversion, message, joinCause(ErrConversion, cause))
}

func NewOCRError(message string, cause error) *AppError {
	return NewAppError(CodeOCR, message, joinCause(ErrOCR, cause))
}

func NewStoreError(message string, cause error) *AppError {
	return NewAppError(CodeStore, message, joinCause(ErrStore, cause))
}

func NewMessagingError(message string, cause error) *AppError {
	return NewAppError(CodeMessaging, message, joinCause(ErrMessaging, cause))
}

func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// CodeOf returns the AppError code carried by err, or CodeInternal.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// joinCause keeps both sentinel and cause reachable through errors.Is on one line.
func joinCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}
