package remote

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"

	"movie-mate/model"
)

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type authEnvelope struct {
	Success bool        `json:"success"`
	Token   string      `json:"token"`
	User    *model.User `json:"user"`
	Message string      `json:"message"`
}

func (c *Client) Register(ctx context.Context, req RegisterRequest) (model.AuthResult, error) {
	return c.authenticate(ctx, "/register", req)
}

// Login sends the identifier both as email and username; upstreams read
// whichever they key accounts on
func (c *Client) Login(ctx context.Context, identifier, password string) (model.AuthResult, error) {
	return c.authenticate(ctx, "/login", loginRequest{Email: identifier, Username: identifier, Password: password})
}

func (c *Client) authenticate(ctx context.Context, path string, payload any) (model.AuthResult, error) {
	var envelope authEnvelope
	if err := c.postJSON(ctx, c.authBaseURL, path, "", payload, &envelope); err != nil {
		return model.AuthResult{}, err
	}
	if !envelope.Success || envelope.User == nil {
		message := envelope.Message
		if message == "" {
			message = "authentication failed"
		}
		return model.AuthResult{}, &StatusError{
			Method:     http.MethodPost,
			Path:       path,
			StatusCode: http.StatusUnauthorized,
			Message:    message,
		}
	}
	return model.AuthResult{Token: envelope.Token, User: *envelope.User}, nil
}

func (c *Client) Logout(ctx context.Context, token string) error {
	return c.postJSON(ctx, c.authBaseURL, "/logout", token, struct{}{}, nil)
}

// Me validates a token and returns its user. The body may be {"user": ...},
// {"data": ...} or the bare user object.
func (c *Client) Me(ctx context.Context, token string) (model.User, error) {
	var raw json.RawMessage
	err := c.do(ctx, request{method: http.MethodGet, base: c.authBaseURL, path: "/me", token: token}, &raw)
	if err != nil {
		return model.User{}, err
	}

	var wrapped struct {
		User *model.User `json:"user"`
		Data *model.User `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return model.User{}, err
	}
	switch {
	case wrapped.User != nil:
		return *wrapped.User, nil
	case wrapped.Data != nil:
		return *wrapped.Data, nil
	}

	var user model.User
	if err := json.Unmarshal(raw, &user); err != nil {
		return model.User{}, err
	}
	return user, nil
}
