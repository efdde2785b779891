package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitializeWritesJSONToFile(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	path := filepath.Join(t.TempDir(), "nexx.log")
	require.NoError(t, Initialize(Config{Level: "bogus", Format: "json", Output: path}))

	Named("catalog").Debug("hidden")
	Named("catalog").Info("catalog loaded")
	Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(raw)
	assert.Contains(t, text, `"logger":"catalog"`)
	assert.Contains(t, text, `"msg":"catalog loaded"`)
	assert.NotContains(t, text, "hidden")
}

func TestInitializeRejectsUnwritableOutput(t *testing.T) {
	prev := Logger
	t.Cleanup(func() { Logger = prev })

	err := Initialize(Config{Output: filepath.Join(t.TempDir(), "missing", "nexx.log")})
	assert.Error(t, err)
	assert.Same(t, prev, Logger)
}
