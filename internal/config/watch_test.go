package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchReloadsOnChange(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "club.db")
	path := writeConfig(t, `
telegram:
  bot_token: "t"
database:
  path: "`+dbPath+`"
admins:
  - 111
`)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var admins []int64
	require.NoError(t, Watch(ctx, path, 10*time.Millisecond, func(cfg *Config) {
		mu.Lock()
		admins = cfg.Admins
		mu.Unlock()
	}))

	// The initial load runs before Watch returns.
	mu.Lock()
	assert.Equal(t, []int64{111}, admins)
	mu.Unlock()

	require.NoError(t, os.WriteFile(path, []byte(`
telegram:
  bot_token: "t"
database:
  path: "`+dbPath+`"
admins:
  - 111
  - 222
`), 0o644))
	// Push the mtime forward; coarse filesystem timestamps would
	// otherwise hide an immediate rewrite.
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(admins) == 2
	}, 3*time.Second, 10*time.Millisecond)
}

func TestWatchMissingFile(t *testing.T) {
	err := Watch(context.Background(), filepath.Join(t.TempDir(), "none.yaml"), time.Second, nil)
	assert.Error(t, err)
}
