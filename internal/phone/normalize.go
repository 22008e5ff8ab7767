package phone

import (
	"encoding/json"
	"strconv"
	"strings"

	"civilregistry/internal/models"
)

// FieldVariants lists, per canonical field, the upstream keys tried in order.
type FieldVariants struct {
	Mobile      []string
	City        []string
	Area        []string
	Governorate []string
}

var DefaultFieldVariants = FieldVariants{
	Mobile:      []string{"mobile", "Mobile", "MOBILE", "mobile_number", "mobileNumber", "MobileNumber", "phone", "Phone"},
	City:        []string{"city", "City", "CITY"},
	Area:        []string{"area", "Area", "AREA"},
	Governorate: []string{"governorate", "Governorate", "GOVERNORATE"},
}

// Normalize maps a decoded response body onto PhoneInfo. The payload is read
// from "data" when that is an object, otherwise from the top level. Missing or
// blank fields stay nil.
func (v FieldVariants) Normalize(body any) models.PhoneInfo {
	top, ok := body.(map[string]any)
	if !ok {
		return models.PhoneInfo{}
	}
	payload := top
	if nested, ok := top["data"].(map[string]any); ok {
		payload = nested
	}

	return models.PhoneInfo{
		Mobile:      firstText(payload, v.Mobile),
		City:        firstText(payload, v.City),
		Area:        firstText(payload, v.Area),
		Governorate: firstText(payload, v.Governorate),
	}
}

func firstText(m map[string]any, keys []string) *string {
	for _, k := range keys {
		if s, ok := text(m[k]); ok {
			return &s
		}
	}
	return nil
}

func text(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = t
	case json.Number:
		s = t.String()
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}
