package translation

import (
	"strings"

	"epubsort/internal/services"
)

// Policy gates every AI call.
type Policy struct {
	aiAllowed bool
	apiKey    string
}

// NewPolicy builds a policy from the feature flag and configured API key.
func NewPolicy(aiAllowed bool, apiKey string) Policy {
	return Policy{aiAllowed: aiAllowed, apiKey: strings.TrimSpace(apiKey)}
}

// Allowed reports whether Authorize would succeed.
func (p Policy) Allowed() bool {
	return p.aiAllowed && p.apiKey != ""
}

// AICapability proves an AI call was authorized. The zero value is invalid
// and only Policy.Authorize produces a valid one.
type AICapability struct {
	grant *grant
}

type grant struct{}

// Valid reports whether the capability came from Authorize.
func (c AICapability) Valid() bool {
	return c.grant != nil
}

// Authorize mints a capability or returns services.ErrLogic.
func (p Policy) Authorize() (AICapability, error) {
	if !p.aiAllowed {
		return AICapability{}, services.Wrap(services.ErrLogic, "translation", "authorize ai", "ai_allowed is false", nil)
	}
	if p.apiKey == "" {
		return AICapability{}, services.Wrap(services.ErrLogic, "translation", "authorize ai", "api key not configured", nil)
	}
	return AICapability{grant: &grant{}}, nil
}
