package service

import (
	"errors"
	"go-bankaccount-api/config"
	"go-bankaccount-api/logger"
	"go-bankaccount-api/model"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned for an unknown username or a wrong
// password; callers cannot tell the two apart.
var ErrInvalidCredentials = errors.New("invalid username or password")

// CredentialVerifier checks a username/password pair and resolves it to a
// principal. It is injected into the HTTP layer so the credential source can
// be swapped without touching request handling.
type CredentialVerifier interface {
	Verify(username, password string) (*model.Principal, error)
}

type storedUser struct {
	passwordHash []byte
	role         string
}

// AuthService is an in-memory CredentialVerifier seeded from configuration.
// Plain-text seed passwords are hashed once at construction and discarded.
type AuthService struct {
	users map[string]storedUser
}

func NewAuthService(seed []config.SeedUser) (*AuthService, error) {
	users := make(map[string]storedUser, len(seed))
	for _, u := range seed {
		hash, err := HashPassword(u.Password)
		if err != nil {
			return nil, err
		}
		users[u.Username] = storedUser{
			passwordHash: []byte(hash),
			role:         u.Role,
		}
	}
	return &AuthService{users: users}, nil
}

func (s *AuthService) Verify(username, password string) (*model.Principal, error) {
	user, ok := s.users[username]
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !CheckPasswordHash(password, string(user.passwordHash)) {
		return nil, ErrInvalidCredentials
	}
	return &model.Principal{Username: username, Role: user.role}, nil
}

func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to hash password")
		return "", err
	}
	return string(bytes), err
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}
