package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/xela07ax/orbit-auth/internal/audit"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"github.com/xela07ax/orbit-auth/internal/infra"
	"github.com/xela07ax/orbit-auth/internal/infra/auth"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository: требования к хранилищу пользователей
type UserRepository interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUserByEmail(ctx context.Context, email string) (*domain.User, error)
	GetUserByID(ctx context.Context, id string) (*domain.User, error)
	ListUsers(ctx context.Context) ([]domain.User, error)
	UpdateBio(ctx context.Context, id, bio string) error
	UpdateRole(ctx context.Context, id string, role domain.Role) error
}

// RequestMeta: данные запроса для журнала аудита
type RequestMeta struct {
	RequestID string
	RemoteIP  string
}

// Session: итог успешного входа. Что из этого уйдет клиенту, решает транспорт.
type Session struct {
	User       *domain.User
	Credential *domain.Credential   // nil в session режиме
	Refresh    *domain.RefreshToken // nil, если refresh не используется
	SessionID  string               // только в session режиме
}

type AuthConfig struct {
	BcryptCost int
	SignupRole domain.Role
	// Попыток логина/регистрации в минуту с одного адреса (0: без лимита).
	// Общий для всех транспортов: REST и GraphQL тратят одно ведро.
	LoginRatePerMinute int
}

type AuthService struct {
	users    UserRepository
	policy   *auth.Policy
	sessions *auth.Sessions // не nil только в session режиме
	auditor  audit.Auditor
	cfg      AuthConfig
	logger   *zap.Logger
	metrics  *infra.Metrics
	limiter  *infra.RateLimiter

	// Хэш-пустышка: сравниваем с ним, если email не найден, чтобы время ответа не выдавало существование аккаунта
	dummyHash []byte
}

func NewAuthService(
	users UserRepository,
	policy *auth.Policy,
	sessions *auth.Sessions,
	auditor audit.Auditor,
	cfg AuthConfig,
	logger *zap.Logger,
	metrics *infra.Metrics,
) (*AuthService, error) {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = 12
	}
	if cfg.SignupRole == "" {
		cfg.SignupRole = domain.RoleUser
	}
	if !cfg.SignupRole.Valid() {
		return nil, fmt.Errorf("signup role %q not allowed", cfg.SignupRole)
	}
	if metrics == nil {
		metrics = infra.NewMetrics(nil)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("orbit-dummy-password"), cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}

	return &AuthService{
		users:     users,
		policy:    policy,
		sessions:  sessions,
		auditor:   auditor,
		cfg:       cfg,
		logger:    logger.Named("auth-service"),
		metrics:   metrics,
		limiter:   infra.NewRateLimiter(cfg.LoginRatePerMinute),
		dummyHash: dummy,
	}, nil
}

// CanIssue: выпускает ли сервис учетные данные сам (в oauth режиме нет).
func (s *AuthService) CanIssue() bool {
	return s.sessions != nil || s.policy.CanIssue()
}

// Login проверяет пару email/пароль и открывает сессию.
func (s *AuthService) Login(ctx context.Context, req domain.LoginRequest, meta RequestMeta) (*Session, error) {
	if !s.CanIssue() {
		return nil, domain.ErrNotSupported
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if err := s.throttle(audit.ActionLogin, email, meta); err != nil {
		return nil, err
	}

	// 1. Аутентификация
	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		s.record(audit.ActionLogin, audit.OutcomeError, "", email, meta, err.Error())
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	// 2. Проверка пароля (не уточняем, что именно неверно, для защиты от перебора)
	hash := s.dummyHash
	if user != nil {
		hash = []byte(user.PasswordHash)
	}
	if bcrypt.CompareHashAndPassword(hash, []byte(req.Password)) != nil || user == nil {
		s.metrics.AuthAttempts.WithLabelValues(audit.ActionLogin, audit.OutcomeDenied).Inc()
		s.record(audit.ActionLogin, audit.OutcomeDenied, "", email, meta, "")
		return nil, domain.ErrInvalidCredentials
	}

	// 3. Выпуск учетных данных
	session, err := s.open(ctx, user)
	if err != nil {
		s.record(audit.ActionLogin, audit.OutcomeError, user.ID, email, meta, err.Error())
		return nil, err
	}

	s.metrics.AuthAttempts.WithLabelValues(audit.ActionLogin, audit.OutcomeOK).Inc()
	s.record(audit.ActionLogin, audit.OutcomeOK, user.ID, email, meta, "")
	return session, nil
}

// Signup регистрирует пользователя с ролью по умолчанию и сразу выполняет вход.
func (s *AuthService) Signup(ctx context.Context, req domain.SignupRequest, meta RequestMeta) (*Session, error) {
	if !s.CanIssue() {
		return nil, domain.ErrNotSupported
	}
	if err := s.throttle(audit.ActionSignup, strings.ToLower(strings.TrimSpace(req.Email)), meta); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &domain.User{
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		PasswordHash: string(hash),
		// Роль назначает сервер, из тела запроса она не берется
		Role: s.cfg.SignupRole,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		outcome := audit.OutcomeError
		if errors.Is(err, domain.ErrConflict) {
			outcome = audit.OutcomeDenied
		}
		s.metrics.AuthAttempts.WithLabelValues(audit.ActionSignup, outcome).Inc()
		s.record(audit.ActionSignup, outcome, "", user.Email, meta, err.Error())
		return nil, fmt.Errorf("signup: %w", err)
	}

	session, err := s.open(ctx, user)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user signed up", zap.String("user_id", user.ID), zap.String("role", string(user.Role)))
	s.metrics.AuthAttempts.WithLabelValues(audit.ActionSignup, audit.OutcomeOK).Inc()
	s.record(audit.ActionSignup, audit.OutcomeOK, user.ID, user.Email, meta, "")
	return session, nil
}

// throttle списывает попытку с ведра адреса клиента до проверки пароля.
func (s *AuthService) throttle(action, email string, meta RequestMeta) error {
	if s.limiter.Allow(meta.RemoteIP) {
		return nil
	}
	s.metrics.AuthAttempts.WithLabelValues(action, audit.OutcomeDenied).Inc()
	s.record(action, audit.OutcomeDenied, "", email, meta, "rate limited")
	return domain.ErrTooManyAttempts
}

func (s *AuthService) open(ctx context.Context, user *domain.User) (*Session, error) {
	if s.sessions != nil {
		sid, err := s.sessions.Start(ctx, user.Identity())
		if err != nil {
			return nil, err
		}
		return &Session{User: user, SessionID: sid}, nil
	}

	cred, err := s.policy.Issue(user.Identity())
	if err != nil {
		return nil, err
	}
	refresh, err := s.policy.IssueRefresh(ctx, user.ID)
	if err != nil {
		return nil, err
	}
	return &Session{User: user, Credential: cred, Refresh: refresh}, nil
}

// Refresh: ротация refresh-токена на новую пару.
func (s *AuthService) Refresh(ctx context.Context, raw string, meta RequestMeta) (*domain.Credential, *domain.RefreshToken, error) {
	cred, next, err := s.policy.RotateRefresh(ctx, raw)
	if err != nil {
		outcome := audit.OutcomeError
		if errors.Is(err, domain.ErrUnauthorized) {
			outcome = audit.OutcomeDenied
		}
		s.record(audit.ActionRefresh, outcome, "", "", meta, "")
		return nil, nil, err
	}
	s.record(audit.ActionRefresh, audit.OutcomeOK, "", "", meta, "")
	return cred, next, nil
}

// Logout отзывает refresh-токен и закрывает серверную сессию. Идемпотентен.
func (s *AuthService) Logout(ctx context.Context, refreshRaw, sid string, meta RequestMeta) error {
	if err := s.policy.Revoke(ctx, refreshRaw); err != nil {
		return err
	}
	if s.sessions != nil {
		if err := s.sessions.End(ctx, sid); err != nil {
			return err
		}
	}
	s.record(audit.ActionLogout, audit.OutcomeOK, "", "", meta, "")
	return nil
}

func (s *AuthService) record(action, outcome, userID, email string, meta RequestMeta, detail string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Record(audit.AuthEvent{
		RequestID: meta.RequestID,
		RemoteIP:  meta.RemoteIP,
		UserID:    userID,
		Email:     email,
		Action:    action,
		Outcome:   outcome,
		Detail:    detail,
	})
}
