package codec

import (
	"fmt"

	"github.com/bluenviron/mediacommon/v2/pkg/codecs/mpeg4audio"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/jmylchreest/memmux/internal/media"
)

// Samples per frame for codecs with a fixed frame size.
const (
	AACFrameSize  = 1024
	AC3FrameSize  = 1536
	MP3FrameSize  = 1152
	OpusFrameSize = 960
)

// AACConfig returns the AudioSpecificConfig for p, parsed from extradata or
// synthesised as AAC-LC.
func AACConfig(p media.CodecParameters) (mpeg4audio.AudioSpecificConfig, error) {
	var config mpeg4audio.AudioSpecificConfig
	if len(p.Extradata) > 0 {
		if err := config.Unmarshal(p.Extradata); err != nil {
			return config, fmt.Errorf("parsing AudioSpecificConfig: %w", err)
		}
		return config, nil
	}
	if p.SampleRate <= 0 || p.Channels <= 0 {
		return config, fmt.Errorf("aac stream without extradata needs sample rate and channels")
	}
	return mpeg4audio.AudioSpecificConfig{
		Type:         mpeg4audio.ObjectTypeAACLC,
		SampleRate:   p.SampleRate,
		ChannelCount: p.Channels,
	}, nil
}

func paramsFromAACConfig(config mpeg4audio.AudioSpecificConfig) media.CodecParameters {
	p := media.CodecParameters{
		Codec:      string(AudioAAC),
		Kind:       media.MediaAudio,
		SampleRate: config.SampleRate,
		Channels:   config.ChannelCount,
		FrameSize:  AACFrameSize,
	}
	p.ChannelLayout = media.DefaultLayout(p.Channels)
	if b, err := config.Marshal(); err == nil {
		p.Extradata = b
	}
	return p
}

func opusParams(channels int) media.CodecParameters {
	if channels <= 0 {
		channels = 2
	}
	p := media.CodecParameters{
		Codec:          string(AudioOpus),
		Kind:           media.MediaAudio,
		SampleRate:     OpusSampleRate,
		Channels:       channels,
		ChannelLayout:  media.DefaultLayout(channels),
		FrameSize:      OpusFrameSize,
		InitialPadding: DefaultOpusPreSkip,
	}
	if head, err := NewOpusHead(channels, OpusSampleRate, DefaultOpusPreSkip); err == nil {
		p.Extradata = head.Marshal()
	}
	return p
}

func opusChannels(p media.CodecParameters) int {
	if head, err := ParseOpusHead(p.Extradata); err == nil {
		return int(head.Channels)
	}
	if p.Channels > 0 {
		return p.Channels
	}
	return 2
}

func fixedParams(a Audio, rate, channels, frameSize int) media.CodecParameters {
	return media.CodecParameters{
		Codec:         string(a),
		Kind:          media.MediaAudio,
		SampleRate:    rate,
		Channels:      channels,
		ChannelLayout: media.DefaultLayout(channels),
		FrameSize:     frameSize,
	}
}

// MPEGTSCodec creates the mediacommon MPEG-TS codec for a stream.
func MPEGTSCodec(p media.CodecParameters) (mpegts.Codec, error) {
	a, _ := ParseAudio(p.Codec)
	switch a {
	case AudioOpus:
		return &mpegts.CodecOpus{ChannelCount: opusChannels(p)}, nil
	case AudioAAC:
		config, err := AACConfig(p)
		if err != nil {
			return nil, err
		}
		return &mpegts.CodecMPEG4Audio{Config: config}, nil
	case AudioAC3:
		return &mpegts.CodecAC3{SampleRate: p.SampleRate, ChannelCount: p.Channels}, nil
	case AudioEAC3:
		return &mpegts.CodecEAC3{SampleRate: p.SampleRate, ChannelCount: p.Channels}, nil
	case AudioMP3:
		return &mpegts.CodecMPEG1Audio{}, nil
	default:
		return nil, fmt.Errorf("codec %q cannot be carried in MPEG-TS", p.Codec)
	}
}

// ParamsFromMPEGTS describes a mediacommon MPEG-TS track codec. Returns false
// for codecs that are not audio or not supported.
func ParamsFromMPEGTS(c mpegts.Codec) (media.CodecParameters, bool) {
	switch codec := c.(type) {
	case *mpegts.CodecOpus:
		return opusParams(codec.ChannelCount), true
	case *mpegts.CodecMPEG4Audio:
		return paramsFromAACConfig(codec.Config), true
	case *mpegts.CodecAC3:
		return fixedParams(AudioAC3, codec.SampleRate, codec.ChannelCount, AC3FrameSize), true
	case *mpegts.CodecEAC3:
		return fixedParams(AudioEAC3, codec.SampleRate, codec.ChannelCount, AC3FrameSize), true
	case *mpegts.CodecMPEG1Audio:
		// Rate and channels come from the first frame header.
		return fixedParams(AudioMP3, 0, 0, MP3FrameSize), true
	default:
		return media.CodecParameters{}, false
	}
}

// MP4Codec creates the mediacommon MP4 codec for a stream.
func MP4Codec(p media.CodecParameters) (mp4.Codec, error) {
	a, _ := ParseAudio(p.Codec)
	switch a {
	case AudioOpus:
		return &mp4.CodecOpus{ChannelCount: opusChannels(p)}, nil
	case AudioAAC:
		config, err := AACConfig(p)
		if err != nil {
			return nil, err
		}
		return &mp4.CodecMPEG4Audio{Config: config}, nil
	case AudioAC3:
		return &mp4.CodecAC3{SampleRate: p.SampleRate, ChannelCount: p.Channels}, nil
	case AudioMP3:
		return &mp4.CodecMPEG1Audio{SampleRate: p.SampleRate, ChannelCount: p.Channels}, nil
	default:
		return nil, fmt.Errorf("codec %q cannot be carried in MP4", p.Codec)
	}
}

// ParamsFromMP4 describes a mediacommon MP4 track codec.
func ParamsFromMP4(c mp4.Codec) (media.CodecParameters, bool) {
	switch codec := c.(type) {
	case *mp4.CodecOpus:
		return opusParams(codec.ChannelCount), true
	case *mp4.CodecMPEG4Audio:
		return paramsFromAACConfig(codec.Config), true
	case *mp4.CodecAC3:
		return fixedParams(AudioAC3, codec.SampleRate, codec.ChannelCount, AC3FrameSize), true
	case *mp4.CodecEAC3:
		return fixedParams(AudioEAC3, 0, 0, AC3FrameSize), true
	case *mp4.CodecMPEG1Audio:
		return fixedParams(AudioMP3, codec.SampleRate, codec.ChannelCount, MP3FrameSize), true
	default:
		return media.CodecParameters{}, false
	}
}
