package targets

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTargets(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestFileStore_LoadsCustomersAndIterations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	writeTargets(t, path, `{
		"customers":[{"customer":"acme","points":30},{"customer":"globex","points":20}],
		"iterations":[{"iteration_id":7,"points":80,"customers":["acme"]}]
	}`)

	s := NewFileStore(path, zerolog.Nop())

	v, ok := s.CustomerTarget("acme")
	require.True(t, ok)
	assert.Equal(t, 30.0, v)

	it, ok := s.IterationTarget(7)
	require.True(t, ok)
	assert.Equal(t, 80.0, it.Points)

	_, ok = s.CustomerTarget("initech")
	assert.False(t, ok)
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	s := NewFileStore(filepath.Join(t.TempDir(), "nope.json"), zerolog.Nop())
	_, ok := s.CustomerTarget("acme")
	assert.False(t, ok)
	_, ok = s.IterationTarget(7)
	assert.False(t, ok)
}

func TestFileStore_ReloadKeepsLastGoodOnParseError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "targets.json")
	writeTargets(t, path, `{"customers":[{"customer":"acme","points":30}]}`)
	s := NewFileStore(path, zerolog.Nop())

	writeTargets(t, path, `{not json`)
	require.Error(t, s.Reload())

	v, ok := s.CustomerTarget("acme")
	require.True(t, ok)
	assert.Equal(t, 30.0, v)
}

func TestFileStore_WatchPicksUpRewrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "targets.json")
	writeTargets(t, path, `{"customers":[{"customer":"acme","points":30}]}`)

	s := NewFileStore(path, zerolog.Nop())
	ctx := t.Context()
	require.NoError(t, s.Watch(ctx))

	writeTargets(t, path, `{"customers":[{"customer":"acme","points":55}]}`)

	assert.Eventually(t, func() bool {
		v, ok := s.CustomerTarget("acme")
		return ok && v == 55.0
	}, 3*time.Second, 20*time.Millisecond)
}
