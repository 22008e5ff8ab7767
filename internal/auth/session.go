package auth

import (
	"net/http"

	"github.com/gorilla/sessions"
)

const (
	SessionName  = "civreg-session"
	SessionToken = "access_token"
)

// SessionManager keeps the access token in a signed cookie so browser clients
// need not hold it in script-readable storage.
type SessionManager struct {
	store *sessions.CookieStore
}

func NewSessionManager(secret string, maxAge int, secure bool) *SessionManager {
	store := sessions.NewCookieStore([]byte(secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &SessionManager{store: store}
}

func (m *SessionManager) Get(r *http.Request) (*sessions.Session, error) {
	return m.store.Get(r, SessionName)
}

func (m *SessionManager) SetToken(w http.ResponseWriter, r *http.Request, token string) error {
	session, err := m.Get(r)
	if err != nil && session == nil {
		return err
	}

	session.Values[SessionToken] = token
	return session.Save(r, w)
}

func (m *SessionManager) Token(r *http.Request) (string, bool) {
	session, err := m.Get(r)
	if err != nil {
		return "", false
	}

	token, ok := session.Values[SessionToken].(string)
	return token, ok && token != ""
}

func (m *SessionManager) Clear(w http.ResponseWriter, r *http.Request) error {
	session, err := m.Get(r)
	if err != nil && session == nil {
		return err
	}

	session.Values = make(map[interface{}]interface{})
	session.Options.MaxAge = -1

	return session.Save(r, w)
}
