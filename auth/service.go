package auth

import (
	"context"

	"movie-mate/logging"
	"movie-mate/metrics"
	"movie-mate/model"
	"movie-mate/resolver"
)

// SessionStore persists the signed-in session between runs
type SessionStore interface {
	GetSession() (model.Session, error)
	SetSession(session model.Session) error
	ClearSession() error
}

// Service composes the upstream and offline providers. Its resolver should
// fall back only when the upstream is unavailable (resolver.IsUnavailable),
// so that rejected credentials surface with the upstream's message.
type Service struct {
	resolver *resolver.Resolver
	remote   Provider // nil when running offline
	local    Provider
	sessions SessionStore
}

func NewService(r *resolver.Resolver, remote, local Provider, sessions SessionStore) *Service {
	return &Service{
		resolver: r,
		remote:   remote,
		local:    local,
		sessions: sessions,
	}
}

func remoteOp[T any](s *Service, fn func(context.Context) (T, error)) func(context.Context) (T, error) {
	if s.remote == nil {
		return nil
	}
	return fn
}

// Register creates an account and signs it in
func (s *Service) Register(ctx context.Context, req RegisterRequest) (model.AuthResult, error) {
	result, err := resolver.Resolve(ctx, s.resolver, "auth_register",
		remoteOp(s, func(ctx context.Context) (model.AuthResult, error) {
			return s.remote.Register(ctx, req)
		}),
		func(ctx context.Context) (model.AuthResult, error) {
			return s.local.Register(ctx, req)
		})
	return s.signIn("register", result, err)
}

// Login signs in with an email or username
func (s *Service) Login(ctx context.Context, identifier, password string) (model.AuthResult, error) {
	result, err := resolver.Resolve(ctx, s.resolver, "auth_login",
		remoteOp(s, func(ctx context.Context) (model.AuthResult, error) {
			return s.remote.Login(ctx, identifier, password)
		}),
		func(ctx context.Context) (model.AuthResult, error) {
			return s.local.Login(ctx, identifier, password)
		})
	return s.signIn("login", result, err)
}

func (s *Service) signIn(action string, result model.AuthResult, err error) (model.AuthResult, error) {
	if err != nil {
		metrics.AuthAttempts.WithLabelValues(action, "failure").Inc()
		return model.AuthResult{}, err
	}
	metrics.AuthAttempts.WithLabelValues(action, "success").Inc()

	user := result.User
	if err := s.sessions.SetSession(model.Session{Token: result.Token, User: &user}); err != nil {
		return model.AuthResult{}, err
	}
	return result, nil
}

// Logout tells the upstream and always clears the local session, even
// when that call fails
func (s *Service) Logout(ctx context.Context) error {
	session, err := s.sessions.GetSession()
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to read session during logout")
	}

	if session.Token != "" && s.remote != nil && s.resolver.Online() {
		if err := s.remote.Logout(ctx, session.Token); err != nil {
			logging.Warn().Err(err).Msg("Upstream logout failed")
		}
	}
	return s.sessions.ClearSession()
}

// CheckStatus validates the persisted session. It returns nil without a
// token, and clears the session when no tier accepts the token.
func (s *Service) CheckStatus(ctx context.Context) (*model.User, error) {
	session, err := s.sessions.GetSession()
	if err != nil {
		return nil, err
	}
	if session.Token == "" {
		return nil, nil
	}

	user, err := s.Authenticate(ctx, session.Token)
	if err != nil {
		logging.Info().Err(err).Msg("Stored session is no longer valid")
		if clearErr := s.sessions.ClearSession(); clearErr != nil {
			return nil, clearErr
		}
		return nil, nil
	}

	session.User = &user
	if err := s.sessions.SetSession(session); err != nil {
		return nil, err
	}
	return &user, nil
}

// Authenticate resolves a bearer token to its user. Offline, a token the
// local provider did not issue is still accepted when it is the persisted
// session's token.
func (s *Service) Authenticate(ctx context.Context, token string) (model.User, error) {
	if token == "" {
		return model.User{}, ErrInvalidToken
	}

	return resolver.Resolve(ctx, s.resolver, "auth_me",
		remoteOp(s, func(ctx context.Context) (model.User, error) {
			return s.remote.Me(ctx, token)
		}),
		func(ctx context.Context) (model.User, error) {
			user, err := s.local.Me(ctx, token)
			if err == nil {
				return user, nil
			}
			session, sessErr := s.sessions.GetSession()
			if sessErr == nil && session.Token == token && session.HasIdentity() {
				return *session.User, nil
			}
			return model.User{}, err
		})
}

// Session returns the persisted session
func (s *Service) Session() (model.Session, error) {
	return s.sessions.GetSession()
}
