package service

import (
	"context"
	"time"

	appErr "github.com/xxxsen/papersearch/internal/pkg/errors"
	"github.com/xxxsen/papersearch/internal/pkg/jwt"
	"github.com/xxxsen/papersearch/internal/pkg/password"
)

const adminSubject = "admin"

// AuthService guards the admin endpoints with a single configured
// bcrypt password.
type AuthService struct {
	passwordHash string
	jwtSecret    []byte
	jwtTTL       time.Duration
}

func NewAuthService(passwordHash string, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{passwordHash: passwordHash, jwtSecret: secret, jwtTTL: ttl}
}

func (s *AuthService) Login(ctx context.Context, plainPassword string) (string, error) {
	_ = ctx
	if len(s.jwtSecret) == 0 || !password.Verify(s.passwordHash, plainPassword) {
		return "", appErr.ErrUnauthorized
	}
	return jwt.GenerateToken(adminSubject, jwt.RoleAdmin, s.jwtSecret, s.jwtTTL)
}
