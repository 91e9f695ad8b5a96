package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/xela07ax/orbit-auth/internal/audit"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"go.uber.org/zap"
)

type UserService struct {
	repo    UserRepository
	auditor audit.Auditor
	logger  *zap.Logger
}

func NewUserService(repo UserRepository, auditor audit.Auditor, logger *zap.Logger) *UserService {
	return &UserService{
		repo:    repo,
		auditor: auditor,
		logger:  logger.Named("user-service"),
	}
}

// Profile возвращает профиль вызывающего. Пользователь, удаленный после выпуска токена: 401.
func (s *UserService) Profile(ctx context.Context, caller *domain.Identity) (*domain.UserInfo, error) {
	u, err := s.repo.GetUserByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.ErrUnauthorized
		}
		return nil, fmt.Errorf("user_service: failed to load profile: %w", err)
	}
	return u.Info(), nil
}

// List: публичные профили всех пользователей.
func (s *UserService) List(ctx context.Context) ([]domain.PublicProfile, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("user_service: failed to list users: %w", err)
	}
	out := make([]domain.PublicProfile, 0, len(users))
	for i := range users {
		out = append(out, users[i].Public())
	}
	return out, nil
}

func (s *UserService) Bio(ctx context.Context, caller *domain.Identity) (string, error) {
	u, err := s.repo.GetUserByID(ctx, caller.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUnauthorized
		}
		return "", fmt.Errorf("user_service: failed to load bio: %w", err)
	}
	return u.Bio, nil
}

func (s *UserService) UpdateBio(ctx context.Context, caller *domain.Identity, bio string) (string, error) {
	if err := s.repo.UpdateBio(ctx, caller.ID, bio); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.ErrUnauthorized
		}
		return "", fmt.Errorf("user_service: failed to update bio: %w", err)
	}
	return bio, nil
}

// UpdateRole меняет роль пользователя. Без userId: роль самого вызывающего.
// Новая роль вступает в силу со следующим выпуском токена.
func (s *UserService) UpdateRole(ctx context.Context, caller *domain.Identity, req domain.RoleUpdateRequest) error {
	if !req.Role.Valid() {
		return fmt.Errorf("%w: role not allowed", domain.ErrInvalidInput)
	}
	target := req.UserID
	if target == "" {
		target = caller.ID
	}

	if err := s.repo.UpdateRole(ctx, target, req.Role); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("user_service: failed to update role: %w", err)
	}

	s.logger.Info("user role updated",
		zap.String("by", caller.ID),
		zap.String("user_id", target),
		zap.String("role", string(req.Role)))
	if s.auditor != nil {
		s.auditor.Record(audit.AuthEvent{
			UserID:  target,
			Action:  audit.ActionRoleChange,
			Outcome: audit.OutcomeOK,
			Detail:  fmt.Sprintf("role=%s by=%s", req.Role, caller.ID),
		})
	}
	return nil
}
