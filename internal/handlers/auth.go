package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"go.uber.org/zap"

	"civilregistry/internal/apperr"
	"civilregistry/internal/audit"
	"civilregistry/internal/auth"
	"civilregistry/internal/models"
	"civilregistry/internal/respond"
)

const (
	msgLoggedOut       = "تم تسجيل الخروج"
	msgPasswordUpdated = "تم تغيير كلمة المرور"
	msgCredentials     = "يجب إدخال اسم المستخدم وكلمة المرور"
	msgFieldRequired   = "هذا الحقل مطلوب"
	msgFieldTooLong    = "القيمة أطول من الحد المسموح"
)

type AuthHandler struct {
	users    *auth.UserService
	tokens   *auth.TokenManager
	sessions *auth.SessionManager
	revoked  auth.RevocationList
	recorder *audit.Recorder
	logger   *zap.Logger
}

func NewAuthHandler(users *auth.UserService, tokens *auth.TokenManager, sessions *auth.SessionManager, revoked auth.RevocationList, recorder *audit.Recorder, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		tokens:   tokens,
		sessions: sessions,
		revoked:  revoked,
		recorder: recorder,
		logger:   logger.Named("auth"),
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      models.User `json:"user"`
}

// Login writes a LOGIN entry only once the credentials and account state have
// been accepted.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	fields := map[string][]string{}
	switch username := strings.TrimSpace(req.Username); {
	case govalidator.IsNull(username):
		fields["username"] = []string{msgFieldRequired}
	case !govalidator.StringLength(username, "1", strconv.Itoa(auth.MaxUsernameLength)):
		fields["username"] = []string{msgFieldTooLong}
	}
	switch {
	case govalidator.IsNull(req.Password):
		fields["password"] = []string{msgFieldRequired}
	case !govalidator.ByteLength(req.Password, "1", strconv.Itoa(auth.MaxPasswordLength)):
		fields["password"] = []string{msgFieldTooLong}
	}
	if len(fields) > 0 {
		respond.Error(w, h.logger, apperr.Validation(msgCredentials, fields))
		return
	}

	user, err := h.users.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	token, claims, err := h.tokens.Issue(user)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if err := h.sessions.SetToken(w, r, token); err != nil {
		h.logger.Warn("failed to set session cookie", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	h.recorder.Record(r.Context(), auth.NewIdentity(user, claims), audit.ActionLogin, "")

	respond.JSON(w, http.StatusOK, loginResponse{
		Token:     token,
		ExpiresAt: claims.ExpiresAt.Time,
		User:      user,
	})
}

// Logout revokes the presented token for the rest of its lifetime and clears
// the session cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	if ttl := time.Until(id.ExpiresAt); id.TokenID != "" && ttl > 0 {
		if err := h.revoked.Revoke(r.Context(), id.TokenID, ttl); err != nil {
			respond.Error(w, h.logger, err)
			return
		}
	}
	if err := h.sessions.Clear(w, r); err != nil {
		h.logger.Warn("failed to clear session cookie", zap.Int64("user_id", id.UserID), zap.Error(err))
	}

	h.recorder.Record(r.Context(), id, audit.ActionLogout, "")

	respond.Message(w, http.StatusOK, msgLoggedOut)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), id.UserID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

type profileRequest struct {
	DisplayName string `json:"displayName"`
}

func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	var req profileRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), id.UserID, req.DisplayName)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.recorder.Record(r.Context(), id, audit.ActionUpdateProfile,
		audit.ParamDetails(map[string]string{"displayName": user.DisplayName}))

	respond.JSON(w, http.StatusOK, user)
}

type passwordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	var req passwordRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	if err := h.users.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.recorder.Record(r.Context(), id, audit.ActionUpdatePassword, "")

	respond.Message(w, http.StatusOK, msgPasswordUpdated)
}
