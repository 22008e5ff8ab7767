package registry

import (
	"errors"
	"strings"
	"time"

	"civilregistry/internal/models"
)

const maleCode2019 = "ذكر"

// record2019 is one row of the 2019 registry.
type record2019 struct {
	IDNumber        flexString `json:"CI_ID_NUM"`
	FirstName       flexString `json:"CI_FIRST_ARB"`
	FatherName      flexString `json:"CI_FATHER_ARB"`
	GrandfatherName flexString `json:"CI_GRAND_FATHER_ARB"`
	FamilyName      flexString `json:"CI_FAMILY_ARB"`
	Sex             flexString `json:"CI_SEX_CD"`
	BirthDate       flexString `json:"CI_BIRTH_DT"`
	DeathDate       flexString `json:"CI_DEAD_DT"`
	PersonalStatus  flexString `json:"CI_PERSONAL_CD"`
	Street          flexString `json:"STREET_ARB"`
	Quarter         flexString `json:"QUARTER_ARB"`
	HouseNo         flexString `json:"HOUSE_NO"`
	Region          flexString `json:"REGION_ARB"`
	City            flexString `json:"CITY_ARB"`
}

var errMissingNationalID = errors.New("record has no national id")

// toCitizen converts the record. Age runs to the death date when there is
// one, otherwise to ref.
func (r record2019) toCitizen(ref time.Time) (models.Citizen, error) {
	if r.IDNumber == "" {
		return models.Citizen{}, errMissingNationalID
	}

	birth, hasBirth, err := parseDate2019(r.BirthDate.String())
	if err != nil {
		return models.Citizen{}, err
	}
	death, hasDeath, err := parseDate2019(r.DeathDate.String())
	if err != nil {
		return models.Citizen{}, err
	}

	c := models.Citizen{
		NationalID:      r.IDNumber.String(),
		FirstName:       r.FirstName.String(),
		FatherName:      r.FatherName.String(),
		GrandfatherName: r.GrandfatherName.String(),
		LastName:        r.FamilyName.String(),
		Gender:          models.GenderFemale,
		IsDeceased:      hasDeath,
		SocialStatus:    r.PersonalStatus.String(),
		Region:          r.Region.String(),
		City:            r.City.String(),
		Address: joinNonEmpty(", ",
			r.Street.String(), r.Quarter.String(), r.HouseNo.String(), r.Region.String()),
		RegistrySourceYear: models.Source2019,
	}
	c.FullName = joinNonEmpty(" ", c.FirstName, c.FatherName, c.GrandfatherName, c.LastName)

	if strings.TrimSpace(r.Sex.String()) == maleCode2019 {
		c.Gender = models.GenderMale
	}

	if hasDeath {
		c.DeathDate = death.Format(isoDate)
	}
	if hasBirth {
		c.DateOfBirth = birth.Format(isoDate)
		until := ref
		if hasDeath {
			until = death
		}
		age := AgeAt(birth, until)
		c.Age = &age
	}

	return c, nil
}
