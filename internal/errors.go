package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

type ErrorType string

const (
	ErrorTypeValidation   ErrorType = "VALIDATION_ERROR"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeInternal     ErrorType = "INTERNAL_ERROR"
	ErrorTypeExternal     ErrorType = "EXTERNAL_ERROR"
)

type ErrorCode string

const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"

	// intake
	ErrCodeMissingOrderID  ErrorCode = "MISSING_ORDER_ID"
	ErrCodeInvalidFileType ErrorCode = "INVALID_FILE_TYPE"
	ErrCodeFileTooLarge    ErrorCode = "FILE_TOO_LARGE"
	ErrCodeStorageFailed   ErrorCode = "STORAGE_FAILED"

	// ocr
	ErrCodeOCRUnavailable ErrorCode = "OCR_UNAVAILABLE"

	// submissions and orders
	ErrCodeUnknownOrder        ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeUnknownSubmission   ErrorCode = "SUBMISSION_NOT_FOUND"
	ErrCodeAttemptsExhausted   ErrorCode = "ATTEMPTS_EXHAUSTED"
	ErrCodeInvalidTransition   ErrorCode = "INVALID_TRANSITION"
	ErrCodePaymentPending      ErrorCode = "PAYMENT_PENDING"
	ErrCodePaymentVerified     ErrorCode = "PAYMENT_ALREADY_VERIFIED"
	ErrCodeUTRAlreadyUsed      ErrorCode = "UTR_ALREADY_USED"
	ErrCodeInvalidUTR          ErrorCode = "INVALID_UTR"
	ErrCodeInvalidDecision     ErrorCode = "INVALID_DECISION"
	ErrCodeUnauthorizedAccess  ErrorCode = "UNAUTHORIZED_ACCESS"
	ErrCodeNotificationMissing ErrorCode = "NOTIFICATION_NOT_FOUND"
	ErrCodeUPIConfigMissing    ErrorCode = "UPI_CONFIG_NOT_FOUND"
	ErrCodeInvalidUPIID        ErrorCode = "INVALID_UPI_ID"

	// auth
	ErrCodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	ErrCodeUserInactive       ErrorCode = "USER_INACTIVE"
	ErrCodeInvalidToken       ErrorCode = "INVALID_TOKEN"
	ErrCodeTokenExpired       ErrorCode = "TOKEN_EXPIRED"
	ErrCodeMissingToken       ErrorCode = "MISSING_TOKEN"
	ErrCodeUserNotFound       ErrorCode = "USER_NOT_FOUND"
)

type AppError struct {
	Type       ErrorType   `json:"type"`
	Code       ErrorCode   `json:"code"`
	Message    string      `json:"message"`
	Details    interface{} `json:"details,omitempty"`
	StatusCode int         `json:"-"`
	Cause      error       `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok && len(validationErrors.Errors) > 0 {
			return validationErrors.Errors[0].Message
		}
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) GetDetailedMessage() string {
	if e.Details != nil {
		if validationErrors, ok := e.Details.(ValidationErrors); ok {
			if len(validationErrors.Errors) == 1 {
				return validationErrors.Errors[0].Message
			} else if len(validationErrors.Errors) > 1 {
				messages := make([]string, len(validationErrors.Errors))
				for i, err := range validationErrors.Errors {
					messages[i] = err.Message
				}
				return strings.Join(messages, "; ")
			}
		}
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches on type and code so that copies carrying a cause still compare
// equal to the package level sentinels.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// WithCause returns a copy of the error carrying cause. Sentinels are never mutated.
func (e *AppError) WithCause(cause error) *AppError {
	cp := *e
	cp.Cause = cause
	return &cp
}

func (e *AppError) WithDetails(details interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

func (e *AppError) WithMessage(message string) *AppError {
	cp := *e
	cp.Message = message
	return &cp
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func NewValidationError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func NewValidationFieldError(field, message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       ErrCodeValidationFailed,
		Message:    "Validation failed",
		StatusCode: http.StatusBadRequest,
		Details: ValidationErrors{
			Errors: []ValidationError{
				{Field: field, Message: message, Code: string(code)},
			},
		},
	}
}

func NewNotFoundError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

func NewUnauthorizedError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeUnauthorized,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusUnauthorized,
	}
}

func NewForbiddenError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Cause:      cause,
	}
}

func NewConflictError(message string, code ErrorCode) *AppError {
	return &AppError{
		Type:       ErrorTypeConflict,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

func NewExternalError(message string, code ErrorCode, cause error) *AppError {
	return &AppError{
		Type:       ErrorTypeExternal,
		Code:       code,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Cause:      cause,
	}
}

var (
	ErrMissingOrderID  = NewValidationError("orderId is required", ErrCodeMissingOrderID)
	ErrInvalidFileType = NewValidationError("only JPEG, PNG and WEBP screenshots are accepted", ErrCodeInvalidFileType)
	ErrFileTooLarge    = FileTooLarge(5 << 20)
	ErrStorageFailed   = &AppError{
		Type:       ErrorTypeInternal,
		Code:       ErrCodeStorageFailed,
		Message:    "failed to store payment screenshot",
		StatusCode: http.StatusInternalServerError,
	}

	ErrOCRUnavailable = NewExternalError("ocr service unavailable", ErrCodeOCRUnavailable, nil)

	ErrUnknownOrder           = NewNotFoundError("Order not found", ErrCodeUnknownOrder)
	ErrUnknownSubmission      = NewNotFoundError("Payment submission not found", ErrCodeUnknownSubmission)
	ErrAttemptsExhausted      = NewConflictError("maximum payment attempts reached, please contact support", ErrCodeAttemptsExhausted)
	ErrInvalidTransition      = NewConflictError("payment cannot change state from its current status", ErrCodeInvalidTransition)
	ErrSubmissionPending      = NewConflictError("payment already under review", ErrCodePaymentPending)
	ErrPaymentAlreadyVerified = NewConflictError("payment already verified", ErrCodePaymentVerified)
	ErrUTRAlreadyUsed         = NewConflictError("this UTR is already linked to a verified payment", ErrCodeUTRAlreadyUsed)
	ErrUnauthorizedAccess     = NewForbiddenError("you are not allowed to access this order", ErrCodeUnauthorizedAccess)
	ErrNotificationNotFound   = NewNotFoundError("Notification not found", ErrCodeNotificationMissing)
	ErrUPIConfigNotFound      = NewNotFoundError("UPI payment configuration not found", ErrCodeUPIConfigMissing)

	ErrInvalidCredentials = NewUnauthorizedError("Invalid email or password", ErrCodeInvalidCredentials)
	ErrUserInactive       = NewForbiddenError("User account is inactive", ErrCodeUserInactive)
	ErrInvalidToken       = NewUnauthorizedError("Invalid token", ErrCodeInvalidToken)
	ErrTokenExpired       = NewUnauthorizedError("Token has expired", ErrCodeTokenExpired)
	ErrMissingToken       = NewUnauthorizedError("missing authorization token", ErrCodeMissingToken)
)

func IsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// Response is the envelope every API response is written in.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *AppError   `json:"error,omitempty"`
}

func (e *AppError) ToHTTPResponse() (int, interface{}) {
	return e.StatusCode, Response{Success: false, Error: e}
}

func (e *AppError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    ErrorType   `json:"type"`
		Code    ErrorCode   `json:"code"`
		Message string      `json:"message"`
		Details interface{} `json:"details,omitempty"`
	}{
		Type:    e.Type,
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	})
}

// FileTooLarge reports an upload over limit bytes.
func FileTooLarge(limit int64) *AppError {
	return NewValidationError(fmt.Sprintf("screenshot must not exceed %s", formatSize(limit)), ErrCodeFileTooLarge)
}

func formatSize(n int64) string {
	switch {
	case n >= 1<<20 && n%(1<<20) == 0:
		return fmt.Sprintf("%dMB", n>>20)
	case n >= 1<<10 && n%(1<<10) == 0:
		return fmt.Sprintf("%dKB", n>>10)
	}
	return fmt.Sprintf("%d bytes", n)
}
