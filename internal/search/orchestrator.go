package search

import (
	"context"

	"civilregistry/internal/audit"
	"civilregistry/internal/auth"
	"civilregistry/internal/models"
	"civilregistry/internal/registry"
)

type Registry interface {
	Search(ctx context.Context, criteria registry.Criteria) (models.CitizenSearchResult, error)
}

type PhoneLookup interface {
	Lookup(ctx context.Context, nationalID string) (models.PhoneInfo, error)
}

type Recorder interface {
	Record(ctx context.Context, actor auth.Identity, action audit.Action, details string)
}

// Orchestrator validates a search, records it, then queries the registry or
// the local table. It holds no per-request state.
type Orchestrator struct {
	registry Registry
	local    Registry
	phone    PhoneLookup
	recorder Recorder
}

func NewOrchestrator(reg, local Registry, phone PhoneLookup, recorder Recorder) *Orchestrator {
	return &Orchestrator{registry: reg, local: local, phone: phone, recorder: recorder}
}

// Search records exactly one SEARCH entry for every request that passes
// validation, whether or not the lookup then succeeds.
func (o *Orchestrator) Search(ctx context.Context, actor auth.Identity, criteria registry.Criteria) (models.CitizenSearchResult, error) {
	if err := criteria.Validate(); err != nil {
		return models.CitizenSearchResult{}, err
	}

	o.recorder.Record(ctx, actor, audit.ActionSearch, audit.ParamDetails(criteria.Params()))

	if criteria.Source == models.SourceLocal {
		return o.local.Search(ctx, criteria.Normalize())
	}
	return o.registry.Search(ctx, criteria.Normalize())
}

func (o *Orchestrator) LookupPhone(ctx context.Context, _ auth.Identity, nationalID string) (models.PhoneInfo, error) {
	return o.phone.Lookup(ctx, nationalID)
}
