package handler

import (
	"errors"
	"net/http"

	"github.com/xela07ax/orbit-auth/internal/domain"
)

type APIError struct {
	Code    string            `json:"code"`    // для фронтенда: "NOT_AUTHORIZED"
	Message string            `json:"message"` // для пользователя
	Details map[string]string `json:"details,omitempty"`
}

// ValidationError: поля запроса, не прошедшие validator.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string { return "validation failed" }

func (e *ValidationError) Unwrap() error { return domain.ErrInvalidInput }

// ToAPIError переводит доменную ошибку в HTTP-статус и тело ответа.
// Все, что не распознано: 500 без подробностей.
func ToAPIError(err error) (int, APIError) {
	var vErr *ValidationError
	switch {
	case errors.As(err, &vErr):
		return http.StatusBadRequest, APIError{Code: "VALIDATION_FAILED", Message: "Validation failed", Details: vErr.Fields}
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, APIError{Code: "NOT_AUTHORIZED", Message: "Not authorized"}
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, APIError{Code: "INSUFFICIENT_ROLE", Message: "Insufficient role"}
	case errors.Is(err, domain.ErrInvalidCredentials):
		// 403 без уточнения, что именно неверно
		return http.StatusForbidden, APIError{Code: "WRONG_CREDENTIALS", Message: "Wrong email or password."}
	case errors.Is(err, domain.ErrConflict):
		return http.StatusBadRequest, APIError{Code: "EMAIL_EXISTS", Message: "Email already exists"}
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, APIError{Code: "INVALID_INPUT", Message: "Invalid input"}
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, APIError{Code: "NOT_FOUND", Message: "Not found"}
	case errors.Is(err, domain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, APIError{Code: "TOO_MANY_ATTEMPTS", Message: "Too many attempts, try again later"}
	case errors.Is(err, domain.ErrNotSupported):
		return http.StatusNotFound, APIError{Code: "NOT_SUPPORTED", Message: "Not available in this authentication mode"}
	default:
		return http.StatusInternalServerError, APIError{Code: "INTERNAL_ERROR", Message: "Something went wrong"}
	}
}
