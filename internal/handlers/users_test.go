package handlers

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civilregistry/internal/audit"
	"civilregistry/internal/models"
	"civilregistry/internal/respond"
)

func TestUsersRequireAdmin(t *testing.T) {
	ts := newTestServer(t)
	ts.createUser(t, "clerk", true)
	token := ts.login(t, "clerk", "secret1")

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/users"},
		{http.MethodPost, "/users"},
		{http.MethodGet, "/users/1"},
		{http.MethodPatch, "/users/2/status"},
		{http.MethodGet, "/logs"},
		{http.MethodGet, "/logs/users"},
		{http.MethodGet, "/logs/searches"},
	} {
		rec := ts.do(t, tc.method, tc.path, token, map[string]any{"isActive": false})
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
	}
	assert.Empty(t, ts.entries(t, audit.ActionUpdateUserStatus))
}

func TestCreateUser(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "admin", adminPassword)

	rec := ts.do(t, http.MethodPost, "/users", token, map[string]any{"username": "clerk", "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.User](t, rec)
	assert.Equal(t, "clerk", created.DisplayName)
	assert.False(t, created.IsAdmin)
	assert.True(t, created.IsActive)

	entries := ts.entries(t, audit.ActionCreateUser)
	require.Len(t, entries, 1)
	require.NotNil(t, entries[0].Details)
	assert.Contains(t, *entries[0].Details, `"username":"clerk"`)

	rec = ts.do(t, http.MethodPost, "/users", token, map[string]any{"username": "clerk", "password": "secret1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/users", token, map[string]any{"username": "", "password": "123"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[respond.ErrorBody](t, rec)
	assert.Contains(t, body.Errors, "username")
	assert.Contains(t, body.Errors, "password")

	assert.Len(t, ts.entries(t, audit.ActionCreateUser), 1)
}

func TestListAndGetUsers(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "admin", adminPassword)
	for _, name := range []string{"u1", "u2", "u3"} {
		ts.createUser(t, name, true)
	}

	rec := ts.do(t, http.MethodGet, "/users?page=1&perPage=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.Page[models.User]](t, rec)
	assert.Equal(t, 4, page.Total)
	assert.Equal(t, 2, page.LastPage)
	assert.Len(t, page.Data, 2)

	rec = ts.do(t, http.MethodGet, "/users/1", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin", decode[models.User](t, rec).Username)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodGet, "/users/99", token, nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/users/abc", token, nil).Code)
}

func TestBootstrapAdminStatusIsProtected(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "admin", adminPassword)

	for _, body := range []any{
		map[string]any{"isActive": false},
		map[string]any{"isActive": true},
		map[string]any{},
		nil,
	} {
		rec := ts.do(t, http.MethodPatch, "/users/1/status", token, body)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	}
	assert.Empty(t, ts.entries(t, audit.ActionUpdateUserStatus))
}

func TestUpdateUserStatus(t *testing.T) {
	ts := newTestServer(t)
	token := ts.login(t, "admin", adminPassword)
	clerk := ts.createUser(t, "clerk", true)
	clerkToken := ts.login(t, "clerk", "secret1")
	path := "/users/" + strconv.FormatInt(clerk.ID, 10) + "/status"

	rec := ts.do(t, http.MethodPatch, path, token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPatch, path, token, map[string]any{"isActive": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[models.User](t, rec).IsActive)

	entries := ts.entries(t, audit.ActionUpdateUserStatus)
	require.Len(t, entries, 1)
	assert.Equal(t, models.BootstrapAdminID, *entries[0].UserID)

	// A deactivated account loses access on its next request.
	assert.Equal(t, http.StatusForbidden, ts.do(t, http.MethodGet, "/auth/me", clerkToken, nil).Code)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPatch, "/users/99/status", token, map[string]any{"isActive": true}).Code)
	assert.Len(t, ts.entries(t, audit.ActionUpdateUserStatus), 1)
}
