package cookie

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/xela07ax/orbit-auth/internal/infra"
)

// Manager: установка/чтение/удаление кук с едиными параметрами безопасности.
type Manager struct {
	config infra.CookieConfig
}

func NewManager(config infra.CookieConfig) *Manager {
	if config.DefaultPath == "" {
		config.DefaultPath = "/"
	}
	return &Manager{config: config}
}

// Options: параметры одной куки
type Options struct {
	Name     string
	Value    string
	MaxAge   time.Duration
	Path     string // пусто = DefaultPath
	HttpOnly *bool  // nil = true
}

// Set ставит куку согласно переданным параметрам.
func (m *Manager) Set(w http.ResponseWriter, opts Options) error {
	if opts.Name == "" {
		return fmt.Errorf("cookie name must not be empty")
	}

	path := opts.Path
	if path == "" {
		path = m.config.DefaultPath
	}

	httpOnly := true
	if opts.HttpOnly != nil {
		httpOnly = *opts.HttpOnly
	}

	http.SetCookie(w, &http.Cookie{
		Name:     m.name(opts.Name),
		Value:    opts.Value,
		Path:     path,
		Domain:   m.domain(),
		MaxAge:   int(opts.MaxAge / time.Second),
		Secure:   m.secure(),
		HttpOnly: httpOnly,
		SameSite: m.sameSite(),
	})
	return nil
}

// Get возвращает значение куки. Отсутствие куки: http.ErrNoCookie в цепочке.
func (m *Manager) Get(r *http.Request, name string) (string, error) {
	cookieName := m.name(name)
	c, err := r.Cookie(cookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return "", fmt.Errorf("cookie %s not found: %w", cookieName, err)
		}
		return "", fmt.Errorf("failed to get cookie %s: %w", cookieName, err)
	}
	return c.Value, nil
}

// Delete очищает куку (MaxAge < 0).
func (m *Manager) Delete(w http.ResponseWriter, name, path string) {
	if path == "" {
		path = m.config.DefaultPath
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.name(name),
		Value:    "",
		Path:     path,
		Domain:   m.domain(),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   m.secure(),
		HttpOnly: true,
		SameSite: m.sameSite(),
	})
}

// Префикс разводит куки нескольких приложений на одном домене
func (m *Manager) name(name string) string {
	if m.config.Prefix != "" {
		return fmt.Sprintf("%s_%s", m.config.Prefix, name)
	}
	return name
}

func (m *Manager) domain() string {
	if m.config.ProjectMode == "production" && m.config.Domain != "" {
		return m.config.Domain
	}
	return "" // localhost/development
}

// SameSite=None браузеры принимают только вместе с Secure
func (m *Manager) secure() bool {
	return m.config.Secure || m.sameSite() == http.SameSiteNoneMode
}

func (m *Manager) sameSite() http.SameSite {
	switch m.config.SameSite {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
