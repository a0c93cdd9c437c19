package exitplan

import (
	"testing"

	"fnotrader/internal/strategy/exit"
	"fnotrader/internal/strategy/exit/handlers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolverChain(t *testing.T) {
	hr := handlers.NewRegistry()
	reg, err := NewRegistry(writeProfiles(t, profilesYAML), hr)
	require.NoError(t, err)
	inline := []exit.RuleSpec{{Handler: handlers.HardStopID, Params: map[string]any{"pct": 3}}}

	r := &Resolver{Profiles: reg, Handlers: hr, Inline: inline}
	chain, name, err := r.Chain("")
	require.NoError(t, err)
	assert.Empty(t, name)
	assert.Equal(t, []string{handlers.HardStopID}, chain.IDs())

	chain, name, err = r.Chain(" vwap ")
	require.NoError(t, err)
	assert.Equal(t, "vwap", name)
	assert.Equal(t, 2, chain.Len())

	r.Default = "default"
	_, name, err = r.Chain("")
	require.NoError(t, err)
	assert.Equal(t, "default", name)

	_, _, err = (&Resolver{Handlers: hr}).Chain("vwap")
	assert.Error(t, err, "named profile without a file")
}
