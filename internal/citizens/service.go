// Package citizens serves the local citizens table: records entered by
// admins that are searchable alongside the external registries.
package citizens

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"

	"civilregistry/internal/apperr"
	"civilregistry/internal/models"
	"civilregistry/internal/registry"
	"civilregistry/internal/storage"
)

// MaxResults caps one local search.
const MaxResults = 100

// Field bounds, in characters.
const (
	MaxNationalIDLength = registry.MaxNationalIDLength
	MaxNameLength       = registry.MaxNameLength
	MaxAddressLength    = 500
)

const isoDate = "2006-01-02"

const (
	msgNoResults      = "لا توجد نتائج"
	msgCitizenExists  = "رقم الهوية مسجل بالفعل"
	msgInvalidCitizen = "بيانات المواطن غير صحيحة"
	msgFieldRequired  = "هذا الحقل مطلوب"
	msgFieldTooLong   = "القيمة أطول من الحد المسموح"
	msgNotNumeric     = "رقم الهوية يجب أن يتكون من أرقام فقط"
	msgInvalidGender  = "الجنس يجب أن يكون male أو female"
	msgInvalidDate    = "التاريخ يجب أن يكون بصيغة YYYY-MM-DD"
)

type Service struct {
	store storage.CitizenStore
	now   func() time.Time
}

func NewService(store storage.CitizenStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Search runs criteria against the local table. As with the registries, a
// national ID takes precedence over names.
func (s *Service) Search(ctx context.Context, criteria registry.Criteria) (models.CitizenSearchResult, error) {
	criteria = criteria.Normalize()
	if err := criteria.Validate(); err != nil {
		return models.CitizenSearchResult{}, err
	}

	q := models.CitizenQuery{Limit: MaxResults}
	if criteria.ByID() {
		q.NationalID = criteria.NationalID
	} else {
		q.FirstName = criteria.FirstName
		q.FatherName = criteria.FatherName
		q.GrandfatherName = criteria.GrandfatherName
		q.LastName = criteria.LastName
	}

	found, err := s.store.SearchCitizens(ctx, q)
	if err != nil {
		return models.CitizenSearchResult{}, fmt.Errorf("search local citizens: %w", err)
	}

	ref := s.now()
	for i := range found {
		complete(&found[i], ref)
	}

	result := models.CitizenSearchResult{
		Citizens: found,
		Count:    len(found),
		Source:   models.SourceLocal,
	}
	if len(found) == 0 {
		result.Message = msgNoResults
	}
	return result, nil
}

// CreateInput is an admin's new local record. Dates are YYYY-MM-DD.
type CreateInput struct {
	NationalID      string
	FirstName       string
	FatherName      string
	GrandfatherName string
	LastName        string
	Gender          string
	DateOfBirth     string
	DeathDate       string
	SocialStatus    string
	Region          string
	City            string
	Address         string
}

func (in CreateInput) normalize() CreateInput {
	for _, f := range []*string{
		&in.NationalID, &in.FirstName, &in.FatherName, &in.GrandfatherName, &in.LastName,
		&in.Gender, &in.DateOfBirth, &in.DeathDate, &in.SocialStatus, &in.Region, &in.City, &in.Address,
	} {
		*f = strings.TrimSpace(*f)
	}
	in.Gender = strings.ToLower(in.Gender)
	return in
}

func (in CreateInput) validate() error {
	fields := map[string][]string{}

	switch {
	case govalidator.IsNull(in.NationalID):
		fields["nationalId"] = []string{msgFieldRequired}
	case !govalidator.StringLength(in.NationalID, "1", strconv.Itoa(MaxNationalIDLength)):
		fields["nationalId"] = []string{msgFieldTooLong}
	case !govalidator.IsNumeric(in.NationalID):
		fields["nationalId"] = []string{msgNotNumeric}
	}

	for _, f := range []struct{ name, value string }{
		{"firstName", in.FirstName},
		{"fatherName", in.FatherName},
		{"grandfatherName", in.GrandfatherName},
		{"lastName", in.LastName},
	} {
		switch {
		case govalidator.IsNull(f.value):
			fields[f.name] = []string{msgFieldRequired}
		case !govalidator.StringLength(f.value, "1", strconv.Itoa(MaxNameLength)):
			fields[f.name] = []string{msgFieldTooLong}
		}
	}

	if in.Gender != "" && !govalidator.IsIn(in.Gender, string(models.GenderMale), string(models.GenderFemale)) {
		fields["gender"] = []string{msgInvalidGender}
	}
	for _, f := range []struct{ name, value string }{
		{"dateOfBirth", in.DateOfBirth},
		{"deathDate", in.DeathDate},
	} {
		if f.value != "" && !govalidator.IsTime(f.value, isoDate) {
			fields[f.name] = []string{msgInvalidDate}
		}
	}

	for _, f := range []struct {
		name, value string
		max         int
	}{
		{"socialStatus", in.SocialStatus, MaxNameLength},
		{"region", in.Region, MaxNameLength},
		{"city", in.City, MaxNameLength},
		{"address", in.Address, MaxAddressLength},
	} {
		if !govalidator.StringLength(f.value, "0", strconv.Itoa(f.max)) {
			fields[f.name] = []string{msgFieldTooLong}
		}
	}

	if len(fields) > 0 {
		return apperr.Validation(msgInvalidCitizen, fields)
	}
	return nil
}

// Create inserts a local record and returns it as a search would.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.Citizen, error) {
	in = in.normalize()
	if err := in.validate(); err != nil {
		return models.Citizen{}, err
	}

	c := models.Citizen{
		NationalID:      in.NationalID,
		FirstName:       in.FirstName,
		FatherName:      in.FatherName,
		GrandfatherName: in.GrandfatherName,
		LastName:        in.LastName,
		Gender:          models.Gender(in.Gender),
		DateOfBirth:     in.DateOfBirth,
		IsDeceased:      in.DeathDate != "",
		DeathDate:       in.DeathDate,
		SocialStatus:    in.SocialStatus,
		Region:          in.Region,
		City:            in.City,
		Address:         in.Address,
	}
	if err := s.store.InsertCitizen(ctx, c); err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return models.Citizen{}, apperr.Validation(msgCitizenExists, map[string][]string{"nationalId": {msgCitizenExists}})
		}
		return models.Citizen{}, fmt.Errorf("create local citizen: %w", err)
	}

	complete(&c, s.now())
	return c, nil
}

// complete fills the derived fields. Age runs to the death date when there
// is one.
func complete(c *models.Citizen, ref time.Time) {
	c.RegistrySourceYear = models.SourceLocal

	var parts []string
	for _, p := range []string{c.FirstName, c.FatherName, c.GrandfatherName, c.LastName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	c.FullName = strings.Join(parts, " ")

	birth, err := time.Parse(isoDate, c.DateOfBirth)
	if err != nil {
		return
	}
	until := ref
	if death, err := time.Parse(isoDate, c.DeathDate); err == nil {
		until = death
	}
	age := registry.AgeAt(birth, until)
	c.Age = &age
}
