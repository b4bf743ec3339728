// Package model resolves logical model identifiers to configured
// backend sessions. Identifiers are typed at construction time: an
// unknown provider or model fails before the loop starts, never at
// call time.
package model

// Provider identifies a model backend family.
type Provider string

const (
	// ProviderAnthropic is the direct Anthropic API.
	ProviderAnthropic Provider = "anthropic"
	// ProviderBedrock is Anthropic models served through AWS Bedrock.
	ProviderBedrock Provider = "bedrock"
)

// Valid returns true if the provider is a known value.
func (p Provider) Valid() bool {
	switch p {
	case ProviderAnthropic, ProviderBedrock:
		return true
	default:
		return false
	}
}
