package container

import (
	"github.com/jmylchreest/memmux/internal/media"
)

// SelectBestAudioStream picks the audio stream to convert. Streams flagged
// as default win, then the highest bit rate, then the most channels, then
// the lowest index. The choice depends only on the descriptors, so it is
// stable for identical input.
func SelectBestAudioStream(streams []*media.Stream) (*media.Stream, error) {
	var best *media.Stream
	for _, st := range streams {
		if st.Params.Kind != media.MediaAudio {
			continue
		}
		if best == nil || betterAudio(st, best) {
			best = st
		}
	}
	if best == nil {
		return nil, media.Errorf(media.KindNoStream, "select stream", "no audio stream among %d streams", len(streams))
	}
	return best, nil
}

func betterAudio(a, b *media.Stream) bool {
	if a.Default != b.Default {
		return a.Default
	}
	if ra, rb := EstimatedBitRate(a), EstimatedBitRate(b); ra != rb {
		return ra > rb
	}
	if a.Params.Channels != b.Params.Channels {
		return a.Params.Channels > b.Params.Channels
	}
	return a.Index < b.Index
}

// EstimatedBitRate returns the stream bit rate, derived from PCM parameters
// when the container does not record one.
func EstimatedBitRate(st *media.Stream) int64 {
	if st.Params.BitRate > 0 {
		return st.Params.BitRate
	}
	if st.Params.BitsPerSample > 0 {
		return int64(st.Params.SampleRate) * int64(st.Params.Channels) * int64(st.Params.BitsPerSample)
	}
	return 0
}
