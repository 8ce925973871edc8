package mailtransport

import "encoding/json"

// marshalTemplateData encodes the already-substituted template variables
// (§4.4: substitution happens once at schedule time, not at send time)
// as the flat JSON object SES's templated-send API expects.
func marshalTemplateData(vars map[string]string) (string, error) {
	if vars == nil {
		vars = map[string]string{}
	}
	data, err := json.Marshal(vars)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
