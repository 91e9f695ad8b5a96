package domain

import "errors"

// Таксономия ошибок. Слои ниже хендлеров только возвращают их (обернутыми через %w),
// в HTTP-статус их переводит handler.ToAPIError.
var (
	// ErrUnauthorized: нет/битый/просроченный токен. Причину наружу не отдаем.
	ErrUnauthorized = errors.New("not authorized")
	// ErrForbidden: токен валиден, но роли/scope недостаточно.
	ErrForbidden = errors.New("insufficient role")
	// ErrInvalidInput: некорректная форма запроса (в т.ч. недопустимая роль).
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict: email уже занят.
	ErrConflict = errors.New("email already exists")
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials: неверная пара email/пароль.
	ErrInvalidCredentials = errors.New("wrong email or password")
	// ErrMissingRole означает ошибку программиста, выпуск токена без роли.
	ErrMissingRole = errors.New("no user role specified")
	// ErrNotSupported: операция недоступна в текущем режиме аутентификации.
	ErrNotSupported = errors.New("operation not supported in this auth mode")
	// ErrTooManyAttempts: лимит попыток входа/регистрации с адреса исчерпан.
	ErrTooManyAttempts = errors.New("too many attempts")
)
