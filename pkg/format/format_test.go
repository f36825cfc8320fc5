package format

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytes(t *testing.T) {
	tests := map[int64]string{
		0:          "0 B",
		1023:       "1023 B",
		1536:       "1.5 KB",
		5 << 20:    "5.0 MB",
		3 << 30:    "3.0 GB",
		2048 << 30: "2.0 TB",
		2048 << 40: "2048.0 TB",
	}
	for in, want := range tests {
		assert.Equal(t, want, Bytes(in), "Bytes(%d)", in)
	}
}

func TestNumber(t *testing.T) {
	assert.Equal(t, "0", Number(0))
	assert.Equal(t, "1,234,567", Number(1234567))
	assert.Equal(t, "-1,000", Number(-1000))
}

func TestBitRate(t *testing.T) {
	tests := map[int64]string{
		-1:      "N/A",
		0:       "N/A",
		800:     "800 b/s",
		128000:  "128 kb/s",
		1411200: "1.4 Mb/s",
		320000:  "320 kb/s",
	}
	for in, want := range tests {
		assert.Equal(t, want, BitRate(in), "BitRate(%d)", in)
	}
}

func TestTimestamp(t *testing.T) {
	tests := map[int64]string{
		-1:            "N/A",
		0:             "00:00:00.000",
		1_500_000:     "00:00:01.500",
		90_250_000:    "00:01:30.250",
		3_723_004_999: "01:02:03.004",
	}
	for in, want := range tests {
		assert.Equal(t, want, Timestamp(in), "Timestamp(%d)", in)
	}
}

func TestPercentage(t *testing.T) {
	assert.Equal(t, "45.7%", Percentage(45.678, 1))
	assert.Equal(t, "100%", Percentage(100, 0))
}
