package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/xela07ax/orbit-auth/internal/api/service"
	"github.com/xela07ax/orbit-auth/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// SeedUser: пользователь из файла фикстур (пароль в открытом виде, хэшируется при загрузке).
type SeedUser struct {
	FirstName string `yaml:"first_name"`
	LastName  string `yaml:"last_name"`
	Email     string `yaml:"email"`
	Password  string `yaml:"password"`
	Role      string `yaml:"role"`
	Bio       string `yaml:"bio"`
}

type seedFile struct {
	Users []SeedUser `yaml:"users"`
}

// LoadSeed читает фикстуры из yaml.
func LoadSeed(path string) ([]SeedUser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i, u := range f.Users {
		if u.Email == "" || u.Password == "" {
			return nil, fmt.Errorf("seed user #%d: email and password are required", i)
		}
		if !domain.Role(u.Role).Valid() {
			return nil, fmt.Errorf("seed user %s: role %q not allowed", u.Email, u.Role)
		}
	}
	return f.Users, nil
}

// Seed создает пользователей; уже существующие email пропускаются.
func Seed(ctx context.Context, users service.UserRepository, fixtures []SeedUser, cost int, logger *zap.Logger) (int, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	created := 0
	for _, f := range fixtures {
		hash, err := bcrypt.GenerateFromPassword([]byte(f.Password), cost)
		if err != nil {
			return created, fmt.Errorf("hash password for %s: %w", f.Email, err)
		}
		u := &domain.User{
			FirstName:    f.FirstName,
			LastName:     f.LastName,
			Email:        strings.ToLower(strings.TrimSpace(f.Email)),
			PasswordHash: string(hash),
			Role:         domain.Role(f.Role),
		}
		if err := users.CreateUser(ctx, u); err != nil {
			if errors.Is(err, domain.ErrConflict) {
				logger.Info("seed user already exists", zap.String("email", u.Email))
				continue
			}
			return created, fmt.Errorf("create seed user %s: %w", u.Email, err)
		}
		if f.Bio != "" {
			if err := users.UpdateBio(ctx, u.ID, f.Bio); err != nil {
				return created, fmt.Errorf("set bio for %s: %w", u.Email, err)
			}
		}
		created++
	}
	return created, nil
}
