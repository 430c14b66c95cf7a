package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/papersearch/internal/config"
)

func TestLocalStoreOpen(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "papers.json"), []byte(`[]`), 0o644))

	st, err := New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{"dir": dir}})
	require.NoError(t, err)
	require.Equal(t, "local", st.Type())

	rc, err := st.Open(context.Background(), "papers.json")
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "[]", string(data))

	_, err = st.Open(context.Background(), "../etc/passwd")
	require.Error(t, err)
	_, err = st.Open(context.Background(), "missing.json")
	require.Error(t, err)
}

func TestNewRejectsUnknownType(t *testing.T) {
	_, err := New(config.FileStoreConfig{Type: "ftp", Data: map[string]interface{}{}})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{})
	require.Error(t, err)
	_, err = New(config.FileStoreConfig{Type: "local", Data: map[string]interface{}{}})
	require.Error(t, err)
}

func TestS3ObjectKey(t *testing.T) {
	s := &s3Store{prefix: "corpus/2025"}
	require.Equal(t, "corpus/2025/papers.json", s.objectKey("/papers.json"))
	s = &s3Store{}
	require.Equal(t, "papers.json", s.objectKey("papers.json"))
	require.Equal(t, "https://s3.example.com", normalizeEndpoint("s3.example.com"))
	require.Equal(t, "http://minio:9000", normalizeEndpoint("http://minio:9000"))
}
