package urlutil

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/pkg/decompress"
	"github.com/jmylchreest/memmux/pkg/httpclient"
)

func TestIsRemoteURL(t *testing.T) {
	assert.True(t, IsRemoteURL("http://example.com/a.ogg"))
	assert.True(t, IsRemoteURL("https://example.com/a.ogg"))
	assert.False(t, IsRemoteURL("file:///tmp/a.ogg"))
	assert.False(t, IsRemoteURL("a.ogg"))
	assert.False(t, IsRemoteURL(""))
}

func TestFilePathFromURL(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"file:///tmp/a.ogg", "/tmp/a.ogg", false},
		{"file://localhost/tmp/a.ogg", "/tmp/a.ogg", false},
		{"file://other/tmp/a.ogg", "", true},
		{"file://", "", true},
		{"/tmp/a.ogg", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := FilePathFromURL(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResourceFetcher_Fetch(t *testing.T) {
	payload := []byte("OggS and then some")

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write(payload)
	require.NoError(t, zw.Close())

	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.ogg")
	packed := filepath.Join(dir, "packed.ogg.gz")
	require.NoError(t, os.WriteFile(plain, payload, 0o600))
	require.NoError(t, os.WriteFile(packed, gz.Bytes(), 0o600))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer ts.Close()

	tests := []struct {
		name     string
		location string
		maxSize  int64
		wantErr  error
	}{
		{"path", plain, 0, nil},
		{"file url", "file://" + plain, 0, nil},
		{"gzip file", packed, 0, nil},
		{"stdin", Stdio, 0, nil},
		{"http", ts.URL + "/a.ogg", 0, nil},
		{"too large", plain, 4, decompress.ErrTooLarge},
		{"remote too large", ts.URL, 4, httpclient.ErrResponseTooLarge},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewResourceFetcher(httpclient.DefaultConfig(), tt.maxSize)
			f.Stdin = bytes.NewReader(payload)
			data, err := f.Fetch(context.Background(), tt.location)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, payload, data)
		})
	}
}

func TestResourceFetcher_Missing(t *testing.T) {
	f := NewResourceFetcher(httpclient.DefaultConfig(), 0)
	_, err := f.Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.ogg"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
