package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/xela07ax/orbit-auth/internal/api/service"
	"go.uber.org/zap"
)

// Экземпляр валидатора создается один раз: он кэширует разбор struct-тегов
var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type message struct {
	Message string `json:"message"`
}

// writeError пишет ответ по таксономии ToAPIError; 500 логируются с причиной.
func writeError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	status, apiErr := ToAPIError(err)
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", retryAfter)
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, apiErr)
}

// decode читает JSON тело и прогоняет его через validator.
func decode(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return &ValidationError{Fields: map[string]string{"body": "invalid JSON"}}
	}
	if err := validate.Struct(dst); err != nil {
		var vErrs validator.ValidationErrors
		if !errors.As(err, &vErrs) {
			return fmt.Errorf("validate request: %w", err)
		}
		fields := make(map[string]string, len(vErrs))
		for _, fe := range vErrs {
			fields[fe.Field()] = fe.Tag()
		}
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Лимитер попыток пополняется за минуту
const retryAfter = "60"

// RequestMeta собирает данные запроса для аудита и лимита попыток.
// RemoteIP без порта.
func RequestMeta(r *http.Request) service.RequestMeta {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	return service.RequestMeta{
		RequestID: middleware.GetReqID(r.Context()),
		RemoteIP:  ip,
	}
}
