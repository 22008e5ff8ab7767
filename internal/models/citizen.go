package models

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

// SourceYear selects where a search runs: one of the upstream registry
// schemas or the local citizens table.
type SourceYear int

const (
	SourceLocal SourceYear = 1
	Source2019  SourceYear = 2019
	Source2023  SourceYear = 2023
)

const sourceLocalName = "local"

// ParseSource reads the ?source= parameter. Empty means 2019; anything
// unrecognised maps to -1 so validation names the field.
func ParseSource(raw string) SourceYear {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return Source2019
	case strings.EqualFold(raw, sourceLocalName):
		return SourceLocal
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n == int(SourceLocal) {
		return -1
	}
	return SourceYear(n)
}

func (s SourceYear) Valid() bool {
	return s == SourceLocal || s.Remote()
}

// Remote reports whether s names an upstream registry.
func (s SourceYear) Remote() bool {
	return s == Source2019 || s == Source2023
}

func (s SourceYear) String() string {
	if s == SourceLocal {
		return sourceLocalName
	}
	return strconv.Itoa(int(s))
}

// MarshalJSON keeps registry years numeric and writes the local source as
// "local".
func (s SourceYear) MarshalJSON() ([]byte, error) {
	if s == SourceLocal {
		return json.Marshal(sourceLocalName)
	}
	return []byte(strconv.Itoa(int(s))), nil
}

func (s *SourceYear) UnmarshalJSON(b []byte) error {
	if bytes.HasPrefix(b, []byte(`"`)) {
		var raw string
		if err := json.Unmarshal(b, &raw); err != nil {
			return err
		}
		*s = ParseSource(raw)
		return nil
	}
	var n int
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*s = SourceYear(n)
	return nil
}

// Citizen is the canonical record every registry format is converted into.
type Citizen struct {
	NationalID         string     `json:"nationalId"`
	FirstName          string     `json:"firstName"`
	FatherName         string     `json:"fatherName"`
	GrandfatherName    string     `json:"grandfatherName"`
	LastName           string     `json:"lastName"`
	FullName           string     `json:"fullName"`
	Gender             Gender     `json:"gender"`
	DateOfBirth        string     `json:"dateOfBirth,omitempty"`
	Age                *int       `json:"age,omitempty"`
	IsDeceased         bool       `json:"isDeceased"`
	DeathDate          string     `json:"deathDate,omitempty"`
	SocialStatus       string     `json:"socialStatus,omitempty"`
	Region             string     `json:"region,omitempty"`
	City               string     `json:"city,omitempty"`
	Address            string     `json:"address,omitempty"`
	RegistrySourceYear SourceYear `json:"registrySourceYear"`
}

type CitizenSearchResult struct {
	Citizens []Citizen  `json:"data"`
	Count    int        `json:"count"`
	Message  string     `json:"message"`
	Source   SourceYear `json:"source"`
}

// CitizenQuery filters the local citizens table. A national ID is matched
// exactly; each non-empty name is a substring match.
type CitizenQuery struct {
	NationalID      string
	FirstName       string
	FatherName      string
	GrandfatherName string
	LastName        string
	Limit           int
}

// PhoneInfo is the phone/location lookup result. Any field may be absent.
type PhoneInfo struct {
	Mobile      *string `json:"mobile"`
	City        *string `json:"city"`
	Area        *string `json:"area"`
	Governorate *string `json:"governorate"`
}
