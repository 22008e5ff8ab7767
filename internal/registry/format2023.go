package registry

import (
	"strings"
	"time"

	"civilregistry/internal/models"
)

// record2023 is one row of the 2023 registry. The upstream Age field is
// stale and ignored; age is derived from BirthDate.
type record2023 struct {
	IDNumber        flexString `json:"IdNumber"`
	FirstName       flexString `json:"FirstName"`
	FatherName      flexString `json:"FatherName"`
	GrandfatherName flexString `json:"GrandFatherName"`
	FamilyName      flexString `json:"FamilyName"`
	FullName        flexString `json:"FullName"`
	Gender          flexString `json:"Gender"`
	BirthDate       flexString `json:"BirthDate"`
	SocialStatus    flexString `json:"SocialStatus"`
	Region          flexString `json:"Region"`
	City            flexString `json:"City"`
	Address         flexString `json:"Address"`
}

func (r record2023) toCitizen(ref time.Time) (models.Citizen, error) {
	if r.IDNumber == "" {
		return models.Citizen{}, errMissingNationalID
	}

	birth, hasBirth, err := parseDate2023(r.BirthDate.String())
	if err != nil {
		return models.Citizen{}, err
	}

	c := models.Citizen{
		NationalID:         r.IDNumber.String(),
		FirstName:          r.FirstName.String(),
		FatherName:         r.FatherName.String(),
		GrandfatherName:    r.GrandfatherName.String(),
		LastName:           r.FamilyName.String(),
		FullName:           r.FullName.String(),
		Gender:             models.GenderFemale,
		SocialStatus:       r.SocialStatus.String(),
		Region:             r.Region.String(),
		City:               r.City.String(),
		Address:            r.Address.String(),
		RegistrySourceYear: models.Source2023,
	}
	if c.FullName == "" {
		c.FullName = joinNonEmpty(" ", c.FirstName, c.FatherName, c.GrandfatherName, c.LastName)
	}

	g := strings.TrimSpace(r.Gender.String())
	if g == maleCode2019 || strings.EqualFold(g, "male") {
		c.Gender = models.GenderMale
	}

	if hasBirth {
		c.DateOfBirth = birth.Format(isoDate)
		age := AgeAt(birth, ref)
		c.Age = &age
	}

	return c, nil
}
