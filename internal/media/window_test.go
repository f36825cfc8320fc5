package media

import (
	"math"
	"testing"

	"github.com/jmylchreest/memmux/pkg/timebase"
	"github.com/stretchr/testify/assert"
)

func TestTimeWindow_Validate(t *testing.T) {
	tests := []struct {
		name    string
		window  TimeWindow
		wantErr bool
	}{
		{"unset", TimeWindow{}, false},
		{"start only", Window(1.5, -1), false},
		{"end only", Window(-1, 3), false},
		{"equal bounds", Window(2, 2), false},
		{"start after end", Window(3, 2), true},
		{"nan start", TimeWindow{Start: math.NaN(), HasStart: true}, true},
		{"inf end", TimeWindow{End: math.Inf(1), HasEnd: true}, true},
		{"zero start", TimeWindow{Start: 0, HasStart: true}, false},
		{"negative start", TimeWindow{Start: -1, HasStart: true}, true},
		{"negative end", TimeWindow{End: -0.5, HasEnd: true}, true},
		{"start overflows microseconds", TimeWindow{Start: 1e15, HasStart: true}, true},
		{"end overflows microseconds", TimeWindow{End: maxBoundSeconds, HasEnd: true}, true},
		{"largest representable end", TimeWindow{End: 9e12, HasEnd: true}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.window.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrPrecondition)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestTimeWindow_Bounds(t *testing.T) {
	start, end := Window(1.25, 2.5).Bounds(timebase.Matroska)
	assert.Equal(t, int64(1250), start)
	assert.Equal(t, int64(2500), end)

	start, end = Window(-1, 0.5).Bounds(timebase.New(1, 48000))
	assert.Equal(t, timebase.NoPTS, start)
	assert.Equal(t, int64(24000), end)
}

func TestTimeWindow_BoundsTruncatesToMicroseconds(t *testing.T) {
	// 0.0000019s truncates to 1us before rescaling.
	start, _ := TimeWindow{Start: 0.0000019, HasStart: true}.Bounds(timebase.Microseconds)
	assert.Equal(t, int64(1), start)
}

func TestDefaultLayout(t *testing.T) {
	for ch := 1; ch <= 6; ch++ {
		assert.Equal(t, ch, DefaultLayout(ch).Channels(), "channels=%d", ch)
	}
	assert.Equal(t, ChannelLayout(0), DefaultLayout(9))
}

func TestPacket_RescaleTS(t *testing.T) {
	p := Packet{PTS: 960, DTS: timebase.NoPTS, Duration: 960}
	p.RescaleTS(timebase.New(1, 48000), timebase.Matroska)
	assert.Equal(t, int64(20), p.PTS)
	assert.Equal(t, timebase.NoPTS, p.DTS)
	assert.Equal(t, int64(20), p.Duration)
}
