package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitorFileLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "saida_monitor.json")
	m := NewMonitorFile(path, testLogger())

	snap, err := m.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Ops)

	require.NoError(t, os.WriteFile(path, []byte(`{"updated_brt":"2024-05-01 10:00","ops":[{"id":"ADA-1","atual":0.55,"eta":"1h"}]}`), 0o644))
	snap, err = m.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, snap.Ops, 1)
	assert.Equal(t, 0.55, *snap.Ops[0].Atual)
	assert.Equal(t, "2024-05-01 10:00", snap.UpdatedBRT)

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	snap, err = m.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Ops)
}
