package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestZIP zips files (name -> content) into a temporary archive.
func createTestZIP(t *testing.T, files map[string][]byte) string {
	t.Helper()
	zipPath := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(zipPath)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return zipPath
}

func TestExtractZIP(t *testing.T) {
	zipPath := createTestZIP(t, map[string][]byte{
		"ADMIN-EXPRESS/1_DONNEES/COMMUNE.shp": []byte("shp"),
		"ADMIN-EXPRESS/1_DONNEES/COMMUNE.dbf": []byte("dbf"),
		"ADMIN-EXPRESS/LISEZ-MOI.txt":         []byte("readme"),
		"ADMIN-EXPRESS/empty/":                nil,
	})

	dest := t.TempDir()
	extracted, err := ExtractZIP(zipPath, dest)
	require.NoError(t, err)
	assert.Len(t, extracted, 3)

	data, err := os.ReadFile(filepath.Join(dest, "ADMIN-EXPRESS", "1_DONNEES", "COMMUNE.dbf"))
	require.NoError(t, err)
	assert.Equal(t, "dbf", string(data))

	info, err := os.Stat(filepath.Join(dest, "ADMIN-EXPRESS", "empty"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestExtractZIP_ZipSlip(t *testing.T) {
	zipPath := createTestZIP(t, map[string][]byte{"../../evil.shp": []byte("x")})
	_, err := ExtractZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal path")
}

func TestExtractZIP_NotAnArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.zip")
	require.NoError(t, os.WriteFile(path, []byte("not a zip"), 0o644))
	_, err := ExtractZIP(path, t.TempDir())
	assert.Error(t, err)
}
