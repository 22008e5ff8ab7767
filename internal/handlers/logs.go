package handlers

import (
	"net/http"
	"strconv"

	"github.com/asaskevich/govalidator"
	"go.uber.org/zap"

	"civilregistry/internal/apperr"
	"civilregistry/internal/audit"
	"civilregistry/internal/respond"
)

const (
	msgActionNotAllowed = "نوع الحدث غير مسموح"
	msgLogAccepted      = "تم تسجيل الحدث"
)

const (
	maxClientActionLength  = 50
	maxClientDetailsLength = 1000
)

type LogHandler struct {
	logs     *audit.Service
	recorder *audit.Recorder
	logger   *zap.Logger
}

func NewLogHandler(logs *audit.Service, recorder *audit.Recorder, logger *zap.Logger) *LogHandler {
	return &LogHandler{
		logs:     logs,
		recorder: recorder,
		logger:   logger.Named("logs"),
	}
}

func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.logs.List(r.Context(), pageRequest(r))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, page)
}

func (h *LogHandler) CountsPerUser(w http.ResponseWriter, r *http.Request) {
	counts, err := h.logs.CountsPerUser(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, counts)
}

func (h *LogHandler) UserLogs(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	page, err := h.logs.ListForUser(r.Context(), id, pageRequest(r))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, page)
}

func (h *LogHandler) UserSearches(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	logs, err := h.logs.RecentSearches(r.Context(), &id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, logs)
}

func (h *LogHandler) GlobalSearches(w http.ResponseWriter, r *http.Request) {
	logs, err := h.logs.RecentSearches(r.Context(), nil)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, logs)
}

type clientEventRequest struct {
	Action  string `json:"action"`
	Details string `json:"details"`
}

// Create accepts events the client reports about itself. Only navigation is
// accepted; every other action is written server-side where it happens.
func (h *LogHandler) Create(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	var req clientEventRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	fields := map[string][]string{}
	if !govalidator.StringLength(req.Action, "1", strconv.Itoa(maxClientActionLength)) {
		fields["action"] = []string{msgFieldTooLong}
	}
	if !govalidator.StringLength(req.Details, "0", strconv.Itoa(maxClientDetailsLength)) {
		fields["details"] = []string{msgFieldTooLong}
	}
	if len(fields) > 0 {
		respond.Error(w, h.logger, apperr.Validation(msgFieldTooLong, fields))
		return
	}

	action, ok := audit.ParseClientAction(req.Action)
	if !ok {
		respond.Error(w, h.logger, apperr.Validation(msgActionNotAllowed, map[string][]string{"action": {msgActionNotAllowed}}))
		return
	}

	h.recorder.Record(r.Context(), id, action, req.Details)

	respond.Message(w, http.StatusAccepted, msgLogAccepted)
}
