// Package templating resolves the §4.4 template-variable substitution:
// built-in recipient/campaign variables interpolated into an operator's
// configured templateData map at schedule time, using the same liquid
// engine the parent project uses for its richer template rendering
// (internal/mailing/template_engine.go), scoped down to flat {{var}}
// interpolation since body composition is out of scope (§1 Non-goals).
package templating

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"
)

// Substituter renders {{var}} placeholders in operator-configured
// templateData values against the spec's built-in variables.
type Substituter struct {
	engine *liquid.Engine
	mu     sync.RWMutex
}

// New builds a Substituter with a fresh liquid engine.
func New() *Substituter {
	return &Substituter{engine: liquid.NewEngine()}
}

// BuiltinVars returns the built-in variables available to every template
// (§4.4): recipientName (the local-part of the recipient address),
// recipientEmail, campaignName, and day.
func BuiltinVars(recipientEmail, campaignName string, day int) map[string]any {
	name := recipientEmail
	if at := strings.IndexByte(recipientEmail, '@'); at >= 0 {
		name = recipientEmail[:at]
	}
	return map[string]any{
		"recipientName":  name,
		"recipientEmail": recipientEmail,
		"campaignName":   campaignName,
		"day":            day,
	}
}

// Substitute renders every value in templateData against the built-in
// variables, returning a new map (§4.4). Substitution happens once per
// message at schedule time, not at send time (§9 Open Question (a)).
func (s *Substituter) Substitute(templateData map[string]string, recipientEmail, campaignName string, day int) (map[string]string, error) {
	vars := BuiltinVars(recipientEmail, campaignName, day)
	out := make(map[string]string, len(templateData))

	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, value := range templateData {
		rendered, err := s.engine.ParseAndRenderString(value, vars)
		if err != nil {
			return nil, fmt.Errorf("templating: substitute %q: %w", key, err)
		}
		out[key] = rendered
	}
	return out, nil
}
