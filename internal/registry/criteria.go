package registry

import (
	"strconv"
	"strings"

	"github.com/asaskevich/govalidator"

	"civilregistry/internal/apperr"
	"civilregistry/internal/models"
)

const (
	msgCriteriaInvalid = "يجب إدخال رقم الهوية أو الاسم الأول واسم العائلة"
	msgFieldRequired   = "هذا الحقل مطلوب"
	msgFieldTooLong    = "القيمة أطول من الحد المسموح"
	msgSourceInvalid   = "مصدر البيانات يجب أن يكون 2019 أو 2023 أو local"
)

// Upper bounds on search input, in characters.
const (
	MaxNationalIDLength = 20
	MaxNameLength       = 100
)

// Criteria is one search request. A national ID takes precedence over names.
type Criteria struct {
	NationalID      string
	FirstName       string
	FatherName      string
	GrandfatherName string
	LastName        string
	Source          models.SourceYear
}

func (c Criteria) Normalize() Criteria {
	c.NationalID = strings.TrimSpace(c.NationalID)
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.FatherName = strings.TrimSpace(c.FatherName)
	c.GrandfatherName = strings.TrimSpace(c.GrandfatherName)
	c.LastName = strings.TrimSpace(c.LastName)
	return c
}

func (c Criteria) ByID() bool {
	return strings.TrimSpace(c.NationalID) != ""
}

// Validate reports missing or oversized fields before any upstream call is
// made.
func (c Criteria) Validate() error {
	c = c.Normalize()
	fields := map[string][]string{}

	if !c.Source.Valid() {
		fields["source"] = []string{msgSourceInvalid}
	}

	if !c.ByID() {
		switch {
		case govalidator.IsNull(c.FirstName) && govalidator.IsNull(c.LastName) &&
			govalidator.IsNull(c.FatherName) && govalidator.IsNull(c.GrandfatherName):
			fields["nationalId"] = []string{msgFieldRequired}
		default:
			if govalidator.IsNull(c.FirstName) {
				fields["firstName"] = []string{msgFieldRequired}
			}
			if govalidator.IsNull(c.LastName) {
				fields["lastName"] = []string{msgFieldRequired}
			}
		}
	}

	limits := []struct {
		field, value string
		max          int
	}{
		{"nationalId", c.NationalID, MaxNationalIDLength},
		{"firstName", c.FirstName, MaxNameLength},
		{"fatherName", c.FatherName, MaxNameLength},
		{"grandfatherName", c.GrandfatherName, MaxNameLength},
		{"lastName", c.LastName, MaxNameLength},
	}
	for _, l := range limits {
		if !govalidator.StringLength(l.value, "0", strconv.Itoa(l.max)) {
			fields[l.field] = append(fields[l.field], msgFieldTooLong)
		}
	}

	if len(fields) > 0 {
		return apperr.Validation(msgCriteriaInvalid, fields)
	}
	return nil
}

// Params returns the request parameters as sent by the client, for auditing.
func (c Criteria) Params() map[string]string {
	p := map[string]string{
		"nationalId":      c.NationalID,
		"firstName":       c.FirstName,
		"fatherName":      c.FatherName,
		"grandfatherName": c.GrandfatherName,
		"lastName":        c.LastName,
	}
	if c.Source != 0 {
		p["source"] = c.Source.String()
	}
	return p
}
