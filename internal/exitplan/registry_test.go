package exitplan

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fnotrader/internal/strategy/exit/handlers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const profilesYAML = `
exit_profiles:
  default:
    description: stops only
    rules:
      - handler: hard_stop
        params: {pct: 5}
      - handler: trailing_stop
        params: {pct: 15}
  vwap:
    rules:
      - handler: trailing_stop
        params: {pct: 15}
      - handler: vwap_armed
        params: {long_arm_pct: 5, short_arm_pct: "5"}
`

func writeProfiles(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exit_profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRegistryLoad(t *testing.T) {
	reg, err := NewRegistry(writeProfiles(t, profilesYAML), handlers.NewRegistry())
	require.NoError(t, err)

	snap := reg.Snapshot()
	assert.Equal(t, []string{"default", "vwap"}, snap.Names())
	assert.EqualValues(t, 1, snap.Version)

	p, ok := reg.Profile("default")
	require.True(t, ok)
	assert.Equal(t, "stops only", p.Description)

	chain, err := reg.Chain("vwap")
	require.NoError(t, err)
	assert.Equal(t, []string{"vwap_armed", "trailing_stop"}, chain.IDs())

	_, err = reg.Chain("missing")
	assert.Error(t, err)
}

func TestRegistryRejectsBadFiles(t *testing.T) {
	cases := map[string]string{
		"unknown field": "exit_profiles:\n  a:\n    rule: []\n",
		"bad params":    "exit_profiles:\n  a:\n    rules:\n      - handler: hard_stop\n        params: {pct: -1}\n",
		"no rules":      "exit_profiles:\n  a:\n    description: empty\n",
		"bad handler":   "exit_profiles:\n  a:\n    rules:\n      - handler: moon\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewRegistry(writeProfiles(t, body), handlers.NewRegistry())
			assert.Error(t, err)
		})
	}
}

func TestRegistryReloadKeepsLastGoodSnapshot(t *testing.T) {
	path := writeProfiles(t, profilesYAML)
	reg, err := NewRegistry(path, handlers.NewRegistry())
	require.NoError(t, err)

	changed := make(chan Snapshot, 1)
	reg.OnChange(func(s Snapshot) { changed <- s })

	require.NoError(t, os.WriteFile(path, []byte("exit_profiles:\n  a:\n    rules:\n      - handler: moon\n"), 0o644))
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, []string{"default", "vwap"}, reg.Snapshot().Names())

	require.NoError(t, os.WriteFile(path, []byte("exit_profiles:\n  tight:\n    rules:\n      - handler: hard_stop\n        params: {pct: 2}\n"), 0o644))
	select {
	case snap := <-changed:
		assert.Equal(t, []string{"tight"}, snap.Names())
	case <-time.After(3 * time.Second):
		t.Fatal("reload listener not called")
	}
}
