package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/craigrbailey/BillPilot-sub000/internal/domain"
)

func TestCallback_NewOwner(t *testing.T) {
	env := newHandlerEnv()
	c, rec := env.newContext(http.MethodPost, "/api/v1/auth/callback", "")
	setupAuthContext(c, "auth0|new", "new@example.com", "New Owner", 0)

	require.NoError(t, env.auth.Callback(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var response AuthCallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.True(t, response.IsNewOwner)
	assert.Equal(t, "new@example.com", response.Owner.Email)
	require.NotNil(t, response.Owner.Name)
	assert.Equal(t, "New Owner", *response.Owner.Name)
}

func TestCallback_ExistingOwner(t *testing.T) {
	env := newHandlerEnv()
	existing := env.ownerRepo.AddOwner("auth0|existing", "existing@example.com")

	c, rec := env.newContext(http.MethodPost, "/api/v1/auth/callback", "")
	setupAuthContext(c, "auth0|existing", "existing@example.com", "", 0)

	require.NoError(t, env.auth.Callback(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var response AuthCallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.False(t, response.IsNewOwner)
	assert.Equal(t, existing.ID, response.Owner.ID)
}

func TestCallback_Errors(t *testing.T) {
	t.Run("missing auth0 id", func(t *testing.T) {
		env := newHandlerEnv()
		c, rec := env.newContext(http.MethodPost, "/api/v1/auth/callback", "")
		require.NoError(t, env.auth.Callback(c))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("missing email", func(t *testing.T) {
		env := newHandlerEnv()
		c, rec := env.newContext(http.MethodPost, "/api/v1/auth/callback", "")
		setupAuthContext(c, "auth0|x", "", "", 0)
		require.NoError(t, env.auth.Callback(c))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("repository failure", func(t *testing.T) {
		env := newHandlerEnv()
		env.ownerRepo.CreateFn = func(string, string, *string) (*domain.Owner, error) {
			return nil, errors.New("connection refused")
		}
		c, rec := env.newContext(http.MethodPost, "/api/v1/auth/callback", "")
		setupAuthContext(c, "auth0|x", "x@example.com", "", 0)
		require.NoError(t, env.auth.Callback(c))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestMe(t *testing.T) {
	env := newHandlerEnv()
	owner := env.ownerRepo.AddOwner("auth0|me", "me@example.com")

	c, rec := env.newContext(http.MethodGet, "/api/v1/auth/me", "")
	setupAuthContext(c, "auth0|me", "me@example.com", "", owner.ID)
	require.NoError(t, env.auth.Me(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var response AuthCallbackResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &response))
	assert.Equal(t, owner.ID, response.Owner.ID)

	c, rec = env.newContext(http.MethodGet, "/api/v1/auth/me", "")
	require.NoError(t, env.auth.Me(c))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogout(t *testing.T) {
	env := newHandlerEnv()
	c, rec := env.newContext(http.MethodPost, "/api/v1/auth/logout", "")
	setupAuthContext(c, "auth0|me", "me@example.com", "", 1)
	require.NoError(t, env.auth.Logout(c))
	assert.Equal(t, http.StatusOK, rec.Code)
}
