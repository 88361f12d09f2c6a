// Package auth handles registration, login and session checks. Requests go
// to the upstream auth API and, while it is unreachable, to an offline
// provider backed by the local user directory.
package auth

import (
	"context"
	"errors"

	"movie-mate/model"
	"movie-mate/remote"
)

var (
	ErrInvalidCredentials  = errors.New("invalid credentials")
	ErrUserExists          = errors.New("an account with this email already exists")
	ErrInvalidRegistration = errors.New("name, email and password are required")
	ErrInvalidToken        = errors.New("invalid or expired token")
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Provider is one authentication backend
type Provider interface {
	Register(ctx context.Context, req RegisterRequest) (model.AuthResult, error)
	Login(ctx context.Context, identifier, password string) (model.AuthResult, error)
	Logout(ctx context.Context, token string) error
	Me(ctx context.Context, token string) (model.User, error)
}

// RemoteProvider talks to the upstream auth API
type RemoteProvider struct {
	client *remote.Client
}

func NewRemoteProvider(client *remote.Client) *RemoteProvider {
	return &RemoteProvider{client: client}
}

func (p *RemoteProvider) Register(ctx context.Context, req RegisterRequest) (model.AuthResult, error) {
	return p.client.Register(ctx, remote.RegisterRequest{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
}

func (p *RemoteProvider) Login(ctx context.Context, identifier, password string) (model.AuthResult, error) {
	return p.client.Login(ctx, identifier, password)
}

func (p *RemoteProvider) Logout(ctx context.Context, token string) error {
	return p.client.Logout(ctx, token)
}

func (p *RemoteProvider) Me(ctx context.Context, token string) (model.User, error) {
	return p.client.Me(ctx, token)
}
