package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"civilregistry/internal/audit"
	"civilregistry/internal/citizens"
	"civilregistry/internal/models"
	"civilregistry/internal/registry"
	"civilregistry/internal/respond"
	"civilregistry/internal/search"
)

type CitizenHandler struct {
	search   *search.Orchestrator
	local    *citizens.Service
	recorder *audit.Recorder
	logger   *zap.Logger
}

func NewCitizenHandler(orchestrator *search.Orchestrator, local *citizens.Service, recorder *audit.Recorder, logger *zap.Logger) *CitizenHandler {
	return &CitizenHandler{
		search:   orchestrator,
		local:    local,
		recorder: recorder,
		logger:   logger.Named("citizens"),
	}
}

// Search queries the source named by ?source= (2019, 2023 or local), 2019
// when omitted.
func (h *CitizenHandler) Search(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	q := r.URL.Query()
	criteria := registry.Criteria{
		NationalID:      q.Get("nationalId"),
		FirstName:       q.Get("firstName"),
		FatherName:      q.Get("fatherName"),
		GrandfatherName: q.Get("grandfatherName"),
		LastName:        q.Get("lastName"),
		Source:          models.ParseSource(q.Get("source")),
	}

	result, err := h.search.Search(r.Context(), id, criteria)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, result)
}

func (h *CitizenHandler) Phone(w http.ResponseWriter, r *http.Request) {
	id, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	info, err := h.search.LookupPhone(r.Context(), id, chi.URLParam(r, "nationalId"))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, info)
}


type createCitizenRequest struct {
	NationalID      string `json:"nationalId"`
	FirstName       string `json:"firstName"`
	FatherName      string `json:"fatherName"`
	GrandfatherName string `json:"grandfatherName"`
	LastName        string `json:"lastName"`
	Gender          string `json:"gender"`
	DateOfBirth     string `json:"dateOfBirth"`
	DeathDate       string `json:"deathDate"`
	SocialStatus    string `json:"socialStatus"`
	Region          string `json:"region"`
	City            string `json:"city"`
	Address         string `json:"address"`
}

// Create adds a record to the local citizens table.
func (h *CitizenHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, err := identity(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	var req createCitizenRequest
	if err := decodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	citizen, err := h.local.Create(r.Context(), citizens.CreateInput(req))
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	h.recorder.Record(r.Context(), actor, audit.ActionCreateCitizen, audit.ParamDetails(map[string]string{
		"nationalId": citizen.NationalID,
	}))

	respond.JSON(w, http.StatusCreated, citizen)
}
