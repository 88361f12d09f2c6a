package model

import (
	"fmt"
	"strconv"

	"github.com/goccy/go-json"
)

// User is the identity returned by login, register and session checks
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name,omitempty"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	IsAdmin  bool   `json:"isAdmin,omitempty"`
}

// UnmarshalJSON accepts the id as a JSON string or number, since upstream
// auth services disagree on the type
func (u *User) UnmarshalJSON(data []byte) error {
	var aux struct {
		ID       any    `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		IsAdmin  bool   `json:"isAdmin"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	var id string
	switch v := aux.ID.(type) {
	case nil:
	case string:
		id = v
	case float64:
		id = strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Errorf("unsupported user id type %T", aux.ID)
	}

	*u = User{
		ID:       id,
		Name:     aux.Name,
		Username: aux.Username,
		Email:    aux.Email,
		IsAdmin:  aux.IsAdmin,
	}
	return nil
}

// Session is the locally persisted authentication state
type Session struct {
	Token string `json:"token"`
	User  *User  `json:"user,omitempty"`
}

// HasIdentity reports whether the session carries a user with an id
func (s Session) HasIdentity() bool {
	return s.User != nil && s.User.ID != ""
}

// UserRecord is an entry of the offline registered-user directory
type UserRecord struct {
	User         User   `json:"user"`
	PasswordHash string `json:"password_hash"`
}

// AuthResult is the outcome of a successful login or registration
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
