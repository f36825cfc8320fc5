package config

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByteSize_UnmarshalText(t *testing.T) {
	var b ByteSize
	require.NoError(t, b.UnmarshalText([]byte("5MB")))
	assert.Equal(t, ByteSize(5*1024*1024), b)
	assert.Error(t, b.UnmarshalText([]byte("five")))
}

func TestByteSize_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    ByteSize
		wantErr bool
	}{
		{"string", `"256MB"`, 256 * 1024 * 1024, false},
		{"number", `1048576`, 1024 * 1024, false},
		{"bad string", `"huge"`, 0, true},
		{"bool", `true`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var b ByteSize
			err := json.Unmarshal([]byte(tt.in), &b)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, b)
		})
	}
}

func TestByteSize_MarshalText(t *testing.T) {
	text, err := ByteSize(512 * 1024 * 1024).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "512MB", string(text))
	assert.Equal(t, int64(1536), ByteSize(1536).Bytes())
	assert.Equal(t, "1.5KB", ByteSize(1536).String())
}
