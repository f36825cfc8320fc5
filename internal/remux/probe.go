package remux

import (
	"context"
	"log/slog"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/picture"
	"github.com/jmylchreest/memmux/pkg/memio"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// StreamInfo describes one input stream.
type StreamInfo struct {
	Index         int         `json:"index"`
	ID            int64       `json:"id"`
	Kind          string      `json:"kind"`
	Codec         string      `json:"codec"`
	CodecLongName string      `json:"codec_long_name,omitempty"`
	SampleRate    int         `json:"sample_rate,omitempty"`
	Channels      int         `json:"channels,omitempty"`
	BitRate       int64       `json:"bit_rate,omitempty"`
	TimeBase      string      `json:"time_base"`
	StartTime     int64       `json:"start_time_us,omitempty"`
	Duration      int64       `json:"duration_us,omitempty"`
	Default       bool        `json:"default"`
	Tags          *media.Tags `json:"tags"`
}

// PictureInfo describes an embedded picture without its bytes.
type PictureInfo struct {
	Type        string `json:"type"`
	MIME        string `json:"mime"`
	Description string `json:"description,omitempty"`
	Width       uint32 `json:"width"`
	Height      uint32 `json:"height"`
	Depth       uint32 `json:"depth"`
	Size        int    `json:"size"`
}

// ProbeResult is the introspection of an input container.
type ProbeResult struct {
	Format         string `json:"format"`
	FormatLongName string `json:"format_long_name"`
	// Duration in microseconds.
	Duration int64        `json:"duration_us"`
	BitRate  int64        `json:"bit_rate"`
	Size     int64        `json:"size"`
	Streams  []StreamInfo `json:"streams"`
	Tags     *media.Tags  `json:"tags"`
	// BestStream is the stream Convert would select, -1 when none.
	BestStream int          `json:"best_stream"`
	Picture    *PictureInfo `json:"picture,omitempty"`
}

// Probe is New(Config{}).Probe.
func Probe(ctx context.Context, input []byte) (*ProbeResult, error) {
	return New(Config{}).Probe(ctx, input)
}

// Probe opens input and reports its format, duration, bit rate, streams
// and tags without reading packets.
func (c *Converter) Probe(ctx context.Context, input []byte) (*ProbeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	in, err := container.OpenInput(memio.NewReader(input), container.InputConfig{
		Logger:  c.logger,
		Formats: c.formats,
	})
	if err != nil {
		return nil, err
	}
	defer in.Close()

	res := &ProbeResult{
		Format:         in.FormatName(),
		FormatLongName: in.Format().LongName(),
		Duration:       in.Duration(),
		BitRate:        in.BitRate(),
		Size:           in.Size(),
		Tags:           in.Tags(),
		BestStream:     -1,
	}
	for _, st := range in.Streams() {
		res.Streams = append(res.Streams, streamInfo(st))
	}
	if best, err := container.SelectBestAudioStream(in.Streams()); err == nil {
		res.BestStream = best.Index
	}
	if v, ok := in.Tags().Get(picture.TagKey); ok {
		pic, err := picture.DecodeTag(v)
		if err != nil {
			c.logger.Warn("unreadable embedded picture", slog.String("error", err.Error()))
		} else {
			res.Picture = &PictureInfo{
				Type:        pic.Type.String(),
				MIME:        pic.MIME,
				Description: pic.Description,
				Width:       pic.Width,
				Height:      pic.Height,
				Depth:       pic.Depth,
				Size:        len(pic.Data),
			}
		}
	}
	return res, nil
}

func streamInfo(st *media.Stream) StreamInfo {
	info := StreamInfo{
		Index:      st.Index,
		ID:         st.ID,
		Kind:       st.Params.Kind.String(),
		Codec:      st.Params.Codec,
		SampleRate: st.Params.SampleRate,
		Channels:   st.Params.Channels,
		BitRate:    container.EstimatedBitRate(st),
		TimeBase:   st.TimeBase.String(),
		Default:    st.Default,
		Tags:       st.Tags,
	}
	if a, ok := codec.ParseAudio(st.Params.Codec); ok {
		if d, ok := codec.Describe(a); ok {
			info.CodecLongName = d.LongName
		}
	}
	if st.StartTime != timebase.NoPTS {
		info.StartTime = timebase.Rescale(st.StartTime, st.TimeBase, timebase.Microseconds)
	}
	if st.Duration != timebase.NoPTS {
		info.Duration = timebase.Rescale(st.Duration, st.TimeBase, timebase.Microseconds)
	}
	return info
}
