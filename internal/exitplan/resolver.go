package exitplan

import (
	"fmt"
	"strings"

	"fnotrader/internal/strategy/exit"
)

// Resolver picks the exit chain for a run: a named profile from the
// registry, or the inline rules when no profile is asked for.
type Resolver struct {
	Profiles *Registry
	Handlers *exit.HandlerRegistry
	Inline   []exit.RuleSpec
	Default  string
}

// Chain builds the chain for profile; an empty name falls back to Default
// and then to the inline rules.
func (r *Resolver) Chain(profile string) (*exit.Chain, string, error) {
	name := strings.TrimSpace(profile)
	if name == "" {
		name = strings.TrimSpace(r.Default)
	}
	if name != "" {
		if r.Profiles == nil {
			return nil, "", fmt.Errorf("exit profile %q requested but no profile file is loaded", name)
		}
		chain, err := r.Profiles.Chain(name)
		return chain, name, err
	}
	if r.Handlers == nil {
		return exit.NewChain(), "", nil
	}
	chain, err := r.Handlers.BuildChain(r.Inline)
	return chain, "", err
}
