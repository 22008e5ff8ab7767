package handlers

import (
	"errors"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"civilregistry/internal/audit"
	"civilregistry/internal/models"
	"civilregistry/internal/phone"
	"civilregistry/internal/proxy"
	"civilregistry/internal/registry"
	"civilregistry/internal/respond"
)

const (
	PhoneTokenHeader = "X-Phone-API-Token"

	msgRegistryUnreachable = "فشل الاتصال بالخادم الخارجي"
	msgPhoneUnreachable    = "فشل الاتصال بخدمة الهاتف"
	msgPhoneFetchFailed    = "فشل جلب البيانات الهاتفية"
	msgPhoneTokenRequired  = "مطلوب توكن خدمة الهاتف (X-Phone-API-Token)"
	msgPhoneCredentials    = "اسم المستخدم وكلمة المرور مطلوبان"
)

// registryFailure mirrors the registry's own envelope so clients parse a
// transport failure the same way as an upstream one.
type registryFailure struct {
	Success   bool   `json:"Success"`
	Message   string `json:"Message"`
	ErrorCode int    `json:"ErrorCode"`
	Data      any    `json:"Data"`
}

type phoneFailure struct {
	Error string `json:"error"`
}

// ProxyHandler forwards browser requests to the external services unchanged.
// Registry lookups are audited as searches before they are forwarded.
type ProxyHandler struct {
	registryBase string
	phoneBase    string
	registry     *proxy.Forwarder
	phone        *proxy.Forwarder
	recorder     *audit.Recorder
	logger       *zap.Logger
}

func NewProxyHandler(registryBase, phoneBase string, registryFwd, phoneFwd *proxy.Forwarder, recorder *audit.Recorder, logger *zap.Logger) *ProxyHandler {
	if registryBase == "" {
		registryBase = registry.DefaultBaseURL
	}
	if phoneBase == "" {
		phoneBase = phone.DefaultBaseURL
	}
	return &ProxyHandler{
		registryBase: strings.TrimRight(registryBase, "/"),
		phoneBase:    strings.TrimRight(phoneBase, "/"),
		registry:     registryFwd,
		phone:        phoneFwd,
		recorder:     recorder,
		logger:       logger.Named("proxy"),
	}
}

func (h *ProxyHandler) CitizenByID2019(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.forwardRegistry(w, r, models.Source2019, registry.PathByID2019+url.PathEscape(id), map[string]string{"nationalId": id})
}

func (h *ProxyHandler) CitizenByName2019(w http.ResponseWriter, r *http.Request) {
	h.forwardRegistry(w, r, models.Source2019, registry.PathByName2019, queryParams(r.URL.Query()))
}

func (h *ProxyHandler) CitizenByID(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	h.forwardRegistry(w, r, models.Source2023, registry.PathByID2023+url.PathEscape(id), map[string]string{"nationalId": id})
}

func (h *ProxyHandler) CitizenByName(w http.ResponseWriter, r *http.Request) {
	h.forwardRegistry(w, r, models.Source2023, registry.PathByName2023, queryParams(r.URL.Query()))
}

func (h *ProxyHandler) forwardRegistry(w http.ResponseWriter, r *http.Request, source models.SourceYear, path string, params map[string]string) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	params["source"] = source.String()
	h.recorder.Record(r.Context(), id, audit.ActionSearch, audit.ParamDetails(params))

	resp, err := h.registry.Get(r.Context(), h.registryBase+path, r.URL.Query(), nil)
	if err != nil {
		h.logger.Warn("registry proxy failed", zap.String("path", path), zap.Error(err))
		status := http.StatusInternalServerError
		if errors.Is(err, proxy.ErrBodyTooLarge) {
			status = http.StatusBadGateway
		}
		respond.JSON(w, status, registryFailure{
			Success:   false,
			Message:   msgRegistryUnreachable,
			ErrorCode: status,
		})
		return
	}
	respond.Raw(w, resp.StatusCode, "application/json", resp.Body)
}

// queryParams flattens the first value of each query key for the audit entry.
func queryParams(q url.Values) map[string]string {
	p := make(map[string]string, len(q))
	for k := range q {
		p[k] = q.Get(k)
	}
	return p
}

type phoneLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// PhoneLogin accepts JSON or form credentials and always forwards a form.
func (h *ProxyHandler) PhoneLogin(w http.ResponseWriter, r *http.Request) {
	var req phoneLoginRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		if err := decodeJSON(r, &req); err != nil {
			respond.JSON(w, http.StatusBadRequest, phoneFailure{Error: msgPhoneCredentials})
			return
		}
	} else if err := r.ParseForm(); err == nil {
		req.Username = r.PostFormValue("username")
		req.Password = r.PostFormValue("password")
	}

	if req.Username == "" || req.Password == "" {
		respond.JSON(w, http.StatusBadRequest, phoneFailure{Error: msgPhoneCredentials})
		return
	}

	form := url.Values{}
	form.Set("username", req.Username)
	form.Set("password", req.Password)

	resp, err := h.phone.PostForm(r.Context(), h.phoneBase+phone.PathLogin, form)
	if err != nil {
		h.logger.Warn("phone login proxy failed", zap.Error(err))
		respond.JSON(w, http.StatusBadGateway, phoneFailure{Error: msgPhoneUnreachable})
		return
	}
	respond.Raw(w, resp.StatusCode, resp.ContentType, resp.Body)
}

func (h *ProxyHandler) PhoneFetchByID(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimSpace(r.Header.Get(PhoneTokenHeader))
	if token == "" {
		respond.JSON(w, http.StatusUnauthorized, phoneFailure{Error: msgPhoneTokenRequired})
		return
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	target := h.phoneBase + phone.PathFetchByID + url.PathEscape(chi.URLParam(r, "id"))
	resp, err := h.phone.Get(r.Context(), target, nil, header)
	if err != nil {
		h.logger.Warn("phone fetch proxy failed", zap.Error(err))
		respond.JSON(w, http.StatusBadGateway, phoneFailure{Error: msgPhoneFetchFailed})
		return
	}
	respond.Raw(w, resp.StatusCode, resp.ContentType, resp.Body)
}
