package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatAndLevel(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetFormat("text")
		SetLevel("info")
		SetOutput(os.Stdout)
	})

	SetLevel("warn")
	Infof("hidden %d", 1)
	assert.Empty(t, buf.String())

	Warnf("visible %d", 2)
	assert.Contains(t, buf.String(), "visible 2")

	buf.Reset()
	SetFormat("json")
	With("symbol", "NIFTY").Warn("scoped")
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &rec))
	assert.Equal(t, "NIFTY", rec["symbol"])
	assert.Equal(t, "scoped", rec["msg"])

	buf.Reset()
	SetFormat("text")
	Debugf("dropped")
	Errorf("line")
	assert.True(t, strings.Contains(buf.String(), "level=ERROR"))
	assert.NotContains(t, buf.String(), "dropped")
}
