package codec

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/jmylchreest/memmux/internal/media"
)

// ConvertSamples converts interleaved little-endian samples between formats.
// Converting to the same format returns a copy.
func ConvertSamples(data []byte, from, to media.SampleFormat) ([]byte, error) {
	fromSize, toSize := from.BytesPerSample(), to.BytesPerSample()
	if fromSize == 0 || toSize == 0 {
		return nil, fmt.Errorf("converting %s to %s: unsupported sample format", from, to)
	}
	if len(data)%fromSize != 0 {
		return nil, fmt.Errorf("converting %s: %d bytes is not a whole number of samples", from, len(data))
	}
	if from == to {
		return append([]byte(nil), data...), nil
	}
	n := len(data) / fromSize
	out := make([]byte, n*toSize)
	for i := 0; i < n; i++ {
		putSample(out[i*toSize:], to, sampleAt(data[i*fromSize:], from))
	}
	return out, nil
}

// sampleAt reads one sample as a float in [-1, 1).
func sampleAt(b []byte, f media.SampleFormat) float64 {
	switch f {
	case media.SampleFormatU8:
		return (float64(b[0]) - 128) / 128
	case media.SampleFormatS16:
		return float64(int16(binary.LittleEndian.Uint16(b))) / 32768
	case media.SampleFormatS32:
		return float64(int32(binary.LittleEndian.Uint32(b))) / 2147483648
	case media.SampleFormatF32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b)))
	}
	return 0
}

func putSample(b []byte, f media.SampleFormat, v float64) {
	switch f {
	case media.SampleFormatU8:
		b[0] = byte(clampInt(math.Round(v*128)+128, 0, 255))
	case media.SampleFormatS16:
		binary.LittleEndian.PutUint16(b, uint16(int16(clampInt(math.Round(v*32768), math.MinInt16, math.MaxInt16))))
	case media.SampleFormatS32:
		binary.LittleEndian.PutUint32(b, uint32(int32(clampInt(math.Round(v*2147483648), math.MinInt32, math.MaxInt32))))
	case media.SampleFormatF32:
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(v)))
	}
}

func clampInt(v float64, lo, hi int64) int64 {
	if v < float64(lo) {
		return lo
	}
	if v > float64(hi) {
		return hi
	}
	return int64(v)
}
