package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"civilregistry/internal/apperr"
	"civilregistry/internal/audit"
	"civilregistry/internal/auth"
	"civilregistry/internal/models"
	"civilregistry/internal/respond"
)

const msgStatusRequired = "يجب تحديد حالة الحساب"

type UserHandler struct {
	users    *auth.UserService
	recorder *audit.Recorder
	logger   *zap.Logger
}

func NewUserHandler(users *auth.UserService, recorder *audit.Recorder, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		users:    users,
		recorder: recorder,
		logger:   logger.Named("users"),
	}
}

func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.users.List(r.Context(), pageRequest(r))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, page)
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

type createUserRequest struct {
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Name        string `json:"name"`
	Password    string `json:"password"`
	IsAdmin     *bool  `json:"isAdmin"`
	IsActive    *bool  `json:"isActive"`
}

func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = strings.TrimSpace(req.Name)
	}

	user, err := h.users.Create(r.Context(), auth.CreateUserInput{
		Username:    req.Username,
		DisplayName: displayName,
		Password:    req.Password,
		IsAdmin:     req.IsAdmin,
		IsActive:    req.IsActive,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.recorder.Record(r.Context(), actor, audit.ActionCreateUser, audit.ParamDetails(map[string]string{
		"userId":   strconv.FormatInt(user.ID, 10),
		"username": user.Username,
		"isAdmin":  strconv.FormatBool(user.IsAdmin),
	}))

	respond.JSON(w, http.StatusCreated, user)
}

type statusRequest struct {
	IsActive *bool `json:"isActive"`
}

// UpdateStatus refuses the bootstrap admin before looking at the body, so no
// payload can get past the guard.
func (h *UserHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	id, err := idParam(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	var req statusRequest
	if id != models.BootstrapAdminID {
		if err := decodeJSON(r, &req); err != nil {
			respond.Error(w, h.logger, err)
			return
		}
		if req.IsActive == nil {
			respond.Error(w, h.logger, apperr.Validation(msgStatusRequired, map[string][]string{"isActive": {msgStatusRequired}}))
			return
		}
	}
	active := req.IsActive != nil && *req.IsActive

	user, err := h.users.UpdateStatus(r.Context(), id, active)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.recorder.Record(r.Context(), actor, audit.ActionUpdateUserStatus, audit.ParamDetails(map[string]string{
		"userId":   strconv.FormatInt(user.ID, 10),
		"isActive": strconv.FormatBool(user.IsActive),
	}))

	respond.JSON(w, http.StatusOK, user)
}
