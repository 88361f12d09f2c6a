package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"movie-mate/model"
	"movie-mate/storage"
)

const (
	AdminUsername = "admin"
	adminPassword = "admin"
	adminID       = "admin"
)

// UserStore is the offline registered-user directory
type UserStore interface {
	GetUsers() (map[string]model.UserRecord, error)
	CreateUser(username string, record model.UserRecord) error
}

// LocalProvider authenticates against the built-in admin account and the
// locally registered users, issuing its own JWTs
type LocalProvider struct {
	users     UserStore
	jwt       *JWTManager
	cost      int
	adminUser model.User
	adminHash []byte
}

// NewLocalProvider hashes with the given bcrypt cost, 0 meaning
// bcrypt.DefaultCost
func NewLocalProvider(users UserStore, jwtManager *JWTManager, cost int) (*LocalProvider, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	adminHash, err := bcrypt.GenerateFromPassword([]byte(adminPassword), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash admin password: %w", err)
	}

	return &LocalProvider{
		users: users,
		jwt:   jwtManager,
		cost:  cost,
		adminUser: model.User{
			ID:       adminID,
			Name:     "Administrator",
			Username: AdminUsername,
			IsAdmin:  true,
		},
		adminHash: adminHash,
	}, nil
}

func normalizeIdentifier(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

func (p *LocalProvider) Register(_ context.Context, req RegisterRequest) (model.AuthResult, error) {
	key := normalizeIdentifier(req.Email)
	name := strings.TrimSpace(req.Name)
	if key == "" || name == "" || req.Password == "" {
		return model.AuthResult{}, ErrInvalidRegistration
	}
	if key == AdminUsername {
		return model.AuthResult{}, ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), p.cost)
	if err != nil {
		return model.AuthResult{}, fmt.Errorf("failed to hash password: %w", err)
	}

	user := model.User{
		ID:       uuid.NewString(),
		Name:     name,
		Username: key,
		Email:    key,
	}
	err = p.users.CreateUser(key, model.UserRecord{User: user, PasswordHash: string(hash)})
	if errors.Is(err, storage.ErrUserExists) {
		return model.AuthResult{}, ErrUserExists
	}
	if err != nil {
		return model.AuthResult{}, err
	}

	return p.issue(user)
}

func (p *LocalProvider) Login(_ context.Context, identifier, password string) (model.AuthResult, error) {
	key := normalizeIdentifier(identifier)

	if subtle.ConstantTimeCompare([]byte(key), []byte(AdminUsername)) == 1 {
		if bcrypt.CompareHashAndPassword(p.adminHash, []byte(password)) != nil {
			return model.AuthResult{}, ErrInvalidCredentials
		}
		return p.issue(p.adminUser)
	}

	users, err := p.users.GetUsers()
	if err != nil {
		return model.AuthResult{}, err
	}
	record, ok := users[key]
	if !ok {
		return model.AuthResult{}, ErrInvalidCredentials
	}
	if bcrypt.CompareHashAndPassword([]byte(record.PasswordHash), []byte(password)) != nil {
		return model.AuthResult{}, ErrInvalidCredentials
	}
	return p.issue(record.User)
}

// Logout is a no-op: local tokens are stateless
func (p *LocalProvider) Logout(context.Context, string) error {
	return nil
}

func (p *LocalProvider) Me(_ context.Context, token string) (model.User, error) {
	claims, err := p.jwt.ValidateToken(token)
	if err != nil {
		return model.User{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims.User(), nil
}

func (p *LocalProvider) issue(user model.User) (model.AuthResult, error) {
	token, err := p.jwt.GenerateToken(user)
	if err != nil {
		return model.AuthResult{}, err
	}
	return model.AuthResult{Token: token, User: user}, nil
}
