package model

import (
	"fmt"

	"github.com/grindloop/grind/internal/session"
)

// IncompatibleError reports a model switch that cannot carry the
// existing conversation forward because the target backend does not
// accept the transcript format. It is surfaced immediately and never
// retried.
type IncompatibleError struct {
	// FromFormat is the current session's transcript format.
	FromFormat string
	// ToFormat is the format the target provider accepts.
	ToFormat string
}

func (e *IncompatibleError) Error() string {
	return fmt.Sprintf("cannot carry history: transcript format %q is not accepted by a %q session", e.FromFormat, e.ToFormat)
}

// Factory builds a session for a resolved model. When the switch
// carries a conversation, carry holds the transcript snapshot and
// priorSpend the running cost total to continue from.
type Factory func(info ModelInfo, carry *session.Transcript, priorSpend float64) (session.Session, error)

// Registry is the model selector: it resolves identifiers through the
// catalog and constructs sessions through per-provider factories.
type Registry struct {
	catalog         *Catalog
	defaultProvider Provider
	factories       map[Provider]Factory
	formats         map[Provider]string
}

// NewRegistry returns a registry over the catalog. Bare model ids
// resolve against defaultProvider.
func NewRegistry(catalog *Catalog, defaultProvider Provider) *Registry {
	return &Registry{
		catalog:         catalog,
		defaultProvider: defaultProvider,
		factories:       make(map[Provider]Factory),
		formats:         make(map[Provider]string),
	}
}

// Register wires a provider to its session factory. format names the
// transcript format the provider's sessions accept.
func (r *Registry) Register(p Provider, format string, f Factory) {
	r.factories[p] = f
	r.formats[p] = format
}

// Catalog returns the registry's catalog.
func (r *Registry) Catalog() *Catalog {
	return r.catalog
}

// Resolve validates a model spec against the catalog and the
// registered providers without constructing a session.
func (r *Registry) Resolve(spec string) (Ref, error) {
	ref, err := r.catalog.Resolve(spec, r.defaultProvider)
	if err != nil {
		return Ref{}, err
	}
	if _, ok := r.factories[ref.Provider]; !ok {
		return Ref{}, fmt.Errorf("provider %q is not configured", ref.Provider)
	}
	return ref, nil
}

// Create constructs a session for the model spec. When carryFrom is
// non-nil its conversation history and running cost seed the new
// session; the iteration counter and cost totals of the enclosing loop
// are unaffected. An incompatible transcript format fails with
// IncompatibleError.
func (r *Registry) Create(spec string, carryFrom session.Session) (session.Session, error) {
	ref, err := r.Resolve(spec)
	if err != nil {
		return nil, err
	}

	var carry *session.Transcript
	var priorSpend float64
	if carryFrom != nil {
		targetFormat := r.formats[ref.Provider]
		hc, ok := carryFrom.(session.HistoryCarrier)
		if !ok {
			return nil, &IncompatibleError{FromFormat: "opaque", ToFormat: targetFormat}
		}
		if hc.TranscriptFormat() != targetFormat {
			return nil, &IncompatibleError{FromFormat: hc.TranscriptFormat(), ToFormat: targetFormat}
		}
		carry = hc.Snapshot()
		priorSpend = carryFrom.CumulativeCost()
	}

	return r.factories[ref.Provider](ref.Info, carry, priorSpend)
}
