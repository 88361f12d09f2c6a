package model

import (
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserIDAcceptsNumbers(t *testing.T) {
	var u User
	require.NoError(t, json.Unmarshal([]byte(`{"id": 1, "username": "admin", "isAdmin": true}`), &u))
	assert.Equal(t, "1", u.ID)
	assert.Equal(t, "admin", u.Username)
	assert.True(t, u.IsAdmin)

	require.NoError(t, json.Unmarshal([]byte(`{"id": "a-b", "name": "Ada"}`), &u))
	assert.Equal(t, "a-b", u.ID)
	assert.Equal(t, "Ada", u.Name)

	assert.Error(t, json.Unmarshal([]byte(`{"id": [1]}`), &u))
}

func TestUserDecodesInsideContainers(t *testing.T) {
	var session Session
	require.NoError(t, json.Unmarshal([]byte(`{"token":"t","user":{"id":"admin","username":"admin","isAdmin":true}}`), &session))
	require.NotNil(t, session.User)
	assert.Equal(t, "admin", session.User.ID)
	assert.True(t, session.User.IsAdmin)

	var users map[string]UserRecord
	require.NoError(t, json.Unmarshal([]byte(`{"ada@example.com":{"user":{"id":"u1","name":"Ada"},"password_hash":"h"},"bob@example.com":{"user":{"id":2,"name":"Bob"},"password_hash":"h2"}}`), &users))
	require.Len(t, users, 2)
	assert.Equal(t, "Ada", users["ada@example.com"].User.Name)
	assert.Equal(t, "2", users["bob@example.com"].User.ID)

	data, err := json.Marshal(session)
	require.NoError(t, err)
	var again Session
	require.NoError(t, json.Unmarshal(data, &again))
	assert.Equal(t, session, again)
}

func TestSessionHasIdentity(t *testing.T) {
	assert.False(t, Session{Token: "t"}.HasIdentity())
	assert.False(t, Session{User: &User{}}.HasIdentity())
	assert.True(t, Session{User: &User{ID: "1"}}.HasIdentity())
}

func TestFilterIsZero(t *testing.T) {
	assert.True(t, Filter{}.IsZero())
	assert.False(t, Filter{MinRating: 3}.IsZero())
}
