package cmd

import (
	"bytes"
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/config"
	"github.com/jmylchreest/memmux/internal/remux"
	"github.com/jmylchreest/memmux/internal/testutil"
)

// execute runs the root command with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Chdir(t.TempDir())
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append(args, "--log-level", "error"))
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag of c and its subcommands to its default.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tone.wav")
	out := filepath.Join(dir, "tone.mka")
	pcm := testutil.SinePCM16(8000, 1, 8000, 440)
	require.NoError(t, os.WriteFile(in, testutil.WAV(8000, 1, pcm, "Tone"), 0o600))

	_, err := execute(t, "convert", "-i", in, "-o", out, "--tag", "ARTIST=memmux", "--copy-tags")
	require.NoError(t, err)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	res, err := remux.Probe(context.Background(), data)
	require.NoError(t, err)
	assert.Equal(t, "matroska", res.Format)
	require.Len(t, res.Streams, 1)
	assert.Equal(t, "pcm_s16le", res.Streams[0].Codec)
	title, _ := res.Tags.Get("title")
	assert.Equal(t, "Tone", title)
	artist, _ := res.Tags.Get("artist")
	assert.Equal(t, "memmux", artist)
}

func TestConvertCommand_BadWindow(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tone.wav")
	require.NoError(t, os.WriteFile(in, testutil.WAV(8000, 1, testutil.SinePCM16(8000, 1, 800, 440), ""), 0o600))

	_, err := execute(t, "convert", "-i", in, "-o", filepath.Join(dir, "x.wav"), "--start", "3", "--end", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start")
}

func TestProbeCommand(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "tone.wav")
	require.NoError(t, os.WriteFile(in, testutil.WAV(22050, 2, testutil.SinePCM16(22050, 2, 22050, 440), "Tone"), 0o600))

	out, err := execute(t, "probe", "-i", in)
	require.NoError(t, err)
	assert.Contains(t, out, "Input: wav")
	assert.Contains(t, out, "Duration: 00:00:01.000")
	assert.Contains(t, out, "Stream #0: audio: pcm_s16le, 22,050 Hz, 2 ch")
	assert.Contains(t, out, "(selected)")
	assert.Contains(t, out, "Tone")
}

func TestFormatsCommand(t *testing.T) {
	out, err := execute(t, "formats")
	require.NoError(t, err)
	assert.Contains(t, out, "DE ogg")
	assert.Contains(t, out, "matroska,mkv,mka")
	assert.Contains(t, out, "pcm_s16le")
}

func TestConfigDumpCommand(t *testing.T) {
	out, err := execute(t, "config", "dump")
	require.NoError(t, err)
	assert.Contains(t, out, "MEMMUX_SERVER_PORT")
	assert.Contains(t, out, "MEMMUX_CONVERT_MAX_INPUT_SIZE")
	assert.Contains(t, out, "max_input_size: 512MB")
	assert.Contains(t, out, "default_format: ogg")
}

func TestEnvKeys(t *testing.T) {
	keys := envKeys(reflect.TypeOf(config.Config{}), "MEMMUX")
	assert.Contains(t, keys, "MEMMUX_LOGGING_LEVEL")
	assert.Contains(t, keys, "MEMMUX_PICTURE_JPEG_QUALITY")
	for _, k := range keys {
		assert.Equal(t, strings.ToUpper(k), k)
	}
}

func TestReadInput(t *testing.T) {
	payload := []byte("RIFF-ish payload")

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, _ = zw.Write(payload)
	require.NoError(t, zw.Close())

	dir := t.TempDir()
	plain := filepath.Join(dir, "plain.bin")
	packed := filepath.Join(dir, "packed.gz")
	require.NoError(t, os.WriteFile(plain, payload, 0o600))
	require.NoError(t, os.WriteFile(packed, gz.Bytes(), 0o600))

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write(payload)
	}))
	defer ts.Close()

	tests := []struct {
		name  string
		path  string
		stdin []byte
		limit int64
		err   bool
	}{
		{"file", plain, nil, 0, false},
		{"gzip file", packed, nil, 0, false},
		{"stdin", stdio, payload, 0, false},
		{"url", ts.URL, nil, 0, false},
		{"over limit", plain, nil, 4, true},
		{"missing", filepath.Join(dir, "missing"), nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := readInput(context.Background(), tt.path, bytes.NewReader(tt.stdin), tt.limit)
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, payload, data)
		})
	}
}
