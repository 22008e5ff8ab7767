package audit

import (
	"encoding/json"
	"strings"
)

type Action string

const (
	ActionLogin            Action = "LOGIN"
	ActionLogout           Action = "LOGOUT"
	ActionSearch           Action = "SEARCH"
	ActionNavigate         Action = "NAVIGATE"
	ActionCreateUser       Action = "CREATE_USER"
	ActionUpdateUserStatus Action = "UPDATE_USER_STATUS"
	ActionUpdateProfile    Action = "UPDATE_PROFILE"
	ActionUpdatePassword   Action = "UPDATE_PASSWORD"
	ActionCreateCitizen    Action = "CREATE_CITIZEN"
)

var knownActions = map[Action]struct{}{
	ActionLogin:            {},
	ActionLogout:           {},
	ActionSearch:           {},
	ActionNavigate:         {},
	ActionCreateUser:       {},
	ActionUpdateUserStatus: {},
	ActionUpdateProfile:    {},
	ActionUpdatePassword:   {},
	ActionCreateCitizen:    {},
}

func (a Action) Valid() bool {
	_, ok := knownActions[a]
	return ok
}

// ParseClientAction accepts the actions a client may report about itself.
// Everything else is recorded server-side only.
func ParseClientAction(s string) (Action, bool) {
	a := Action(strings.ToUpper(strings.TrimSpace(s)))
	if a == ActionNavigate {
		return a, true
	}
	return "", false
}

// ParamDetails encodes the non-empty parameters as a JSON object with sorted
// keys, so the exact request can be reconstructed from the entry.
func ParamDetails(params map[string]string) string {
	nonEmpty := make(map[string]string, len(params))
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			nonEmpty[k] = v
		}
	}
	b, err := json.Marshal(nonEmpty)
	if err != nil {
		return "{}"
	}
	return string(b)
}
