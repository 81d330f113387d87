package errors

import (
	"errors"
	"net/http"
)

// Reason codes for every way an operation can be rejected. Clients and tests
// match on the code; the message is for humans.
const (
	CodeUnauthorized        = "UNAUTHORIZED"
	CodeForbidden           = "FORBIDDEN"
	CodeInvalidPayment      = "INVALID_PAYMENT"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeDuplicateCar        = "DUPLICATE_CAR"
	CodeAlreadyParked       = "ALREADY_PARKED"
	CodeNotParked           = "NOT_PARKED"
	CodeNoFine              = "NO_FINE"
	CodeNothingToWithdraw   = "NOTHING_TO_WITHDRAW"
	CodeNoSurplus           = "NO_SURPLUS"
	CodeNotFound            = "NOT_FOUND"
	CodeInvalidRequest      = "INVALID_REQUEST"
)

// ServiceError is a rejected operation with a stable reason code and an
// associated HTTP status code.
type ServiceError struct {
	Code    string
	Status  int
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

func New(code string, status int, message string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Status:  status,
		Message: message,
	}
}

func Unauthorized(msg string) *ServiceError {
	return New(CodeUnauthorized, http.StatusForbidden, msg)
}

func Forbidden(msg string) *ServiceError {
	return New(CodeForbidden, http.StatusForbidden, msg)
}

func InvalidPayment(msg string) *ServiceError {
	return New(CodeInvalidPayment, http.StatusPaymentRequired, msg)
}

func InsufficientBalance(msg string) *ServiceError {
	return New(CodeInsufficientBalance, http.StatusPaymentRequired, msg)
}

func DuplicateCar(msg string) *ServiceError {
	return New(CodeDuplicateCar, http.StatusConflict, msg)
}

func AlreadyParked(msg string) *ServiceError {
	return New(CodeAlreadyParked, http.StatusConflict, msg)
}

func NotParked(msg string) *ServiceError {
	return New(CodeNotParked, http.StatusConflict, msg)
}

func NoFine(msg string) *ServiceError {
	return New(CodeNoFine, http.StatusConflict, msg)
}

func NothingToWithdraw(msg string) *ServiceError {
	return New(CodeNothingToWithdraw, http.StatusConflict, msg)
}

func NoSurplus(msg string) *ServiceError {
	return New(CodeNoSurplus, http.StatusConflict, msg)
}

func NotFound(msg string) *ServiceError {
	return New(CodeNotFound, http.StatusNotFound, msg)
}

func InvalidRequest(msg string) *ServiceError {
	return New(CodeInvalidRequest, http.StatusBadRequest, msg)
}

// CodeOf returns the reason code of err, or "" if err is not a ServiceError.
func CodeOf(err error) string {
	var se *ServiceError
	if errors.As(err, &se) {
		return se.Code
	}
	return ""
}
