package fetcher

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestZIP(t *testing.T, files map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.zip")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	w := zip.NewWriter(f)
	for name, content := range files {
		entry, err := w.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

func TestExtractXMLFromZIP_SingleMember(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"organisations.xml": "<export></export>",
	})

	dest := t.TempDir()
	path, err := ExtractXMLFromZIP(zipPath, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "organisations.xml"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "<export></export>", string(content))
}

func TestExtractXMLFromZIP_IgnoresNonXML(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"readme.txt":        "notes",
		"organisations.xml": "<export></export>",
	})

	path, err := ExtractXMLFromZIP(zipPath, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, "organisations.xml", filepath.Base(path))
}

func TestExtractXMLFromZIP_NestedMemberFlattens(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"data/export/organisations.xml": "<export></export>",
	})

	dest := t.TempDir()
	path, err := ExtractXMLFromZIP(zipPath, dest)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dest, "organisations.xml"), path)
}

func TestExtractXMLFromZIP_NoXMLMember(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"readme.txt": "notes",
	})

	_, err := ExtractXMLFromZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected exactly 1 XML member")
}

func TestExtractXMLFromZIP_MultipleXMLMembers(t *testing.T) {
	zipPath := createTestZIP(t, map[string]string{
		"a.xml": "<a/>",
		"b.xml": "<b/>",
	})

	_, err := ExtractXMLFromZIP(zipPath, t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected exactly 1 XML member")
}
