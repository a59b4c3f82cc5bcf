// SPDX-License-Identifier: MIT
package statusfile

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestWriteAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "status.json")

	in := map[string]any{"succeeded": float64(3), "error": ""}
	require.NoError(t, Write(path, in))

	var out map[string]any
	require.NoError(t, Read(path, &out))

	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("status round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteReplacesAtomically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "status.json")

	require.NoError(t, Write(path, map[string]int{"v": 1}))
	require.NoError(t, Write(path, map[string]int{"v": 2}))

	var out map[string]int
	require.NoError(t, Read(path, &out))
	require.Equal(t, 2, out["v"])
}

func TestReadMissing(t *testing.T) {
	var out map[string]int
	err := Read(filepath.Join(t.TempDir(), "absent.json"), &out)
	require.True(t, os.IsNotExist(err))
}
