// Package codec provides the audio codec registry. It maps codec names and
// aliases to canonical identities, records how each codec is labelled inside
// the supported containers, and hosts the decoder/encoder capability used
// when a stream has to be re-encoded.
package codec

import (
	"slices"
	"strings"

	"github.com/jmylchreest/memmux/internal/media"
)

// Audio represents an audio codec.
type Audio string

// Audio codec constants.
const (
	AudioOpus     Audio = "opus"      // Opus
	AudioVorbis   Audio = "vorbis"    // Vorbis
	AudioAAC      Audio = "aac"       // AAC
	AudioMP3      Audio = "mp3"       // MPEG-1 Layer III
	AudioAC3      Audio = "ac3"       // Dolby Digital (AC-3)
	AudioEAC3     Audio = "eac3"      // Dolby Digital Plus (E-AC-3)
	AudioFLAC     Audio = "flac"      // FLAC
	AudioPCMS16LE Audio = "pcm_s16le" // PCM signed 16-bit little-endian
	AudioPCMS16BE Audio = "pcm_s16be" // PCM signed 16-bit big-endian
	AudioPCMS32LE Audio = "pcm_s32le" // PCM signed 32-bit little-endian
	AudioPCMU8    Audio = "pcm_u8"    // PCM unsigned 8-bit
	AudioPCMF32LE Audio = "pcm_f32le" // PCM 32-bit float little-endian
	AudioPCMMulaw Audio = "pcm_mulaw" // G.711 mu-law
	AudioPCMAlaw  Audio = "pcm_alaw"  // G.711 A-law
)

// String returns the string representation of the audio codec.
func (a Audio) String() string {
	return string(a)
}

// MPEG-TS stream type constants.
const (
	StreamTypeAAC  uint8 = 0x0F
	StreamTypeAC3  uint8 = 0x81
	StreamTypeEAC3 uint8 = 0x87
	StreamTypeMP3  uint8 = 0x03
	// Opus is carried as private data with a registration descriptor.
	StreamTypeOpus uint8 = 0x06
)

// WAVE format tags.
const (
	WAVFormatPCM        uint16 = 0x0001
	WAVFormatIEEEFloat  uint16 = 0x0003
	WAVFormatALaw       uint16 = 0x0006
	WAVFormatMuLaw      uint16 = 0x0007
	WAVFormatMP3        uint16 = 0x0055
	WAVFormatExtensible uint16 = 0xFFFE
)

// Descriptor contains metadata about an audio codec.
type Descriptor struct {
	// Canonical name (opus, aac, pcm_s16le, ...)
	Name Audio
	// Human readable name
	LongName string
	// All known aliases and encoder names that map to this codec
	Aliases []string
	// Matroska CodecID, empty if not representable
	MatroskaID string
	// WAVE format tag, 0 if not representable
	WAVTag uint16
	// MPEG-TS stream type identifier (0 if not supported)
	MPEGTSStreamType uint8
	// PCM sample layout; SampleFormatNone for compressed codecs
	SampleFormat media.SampleFormat
	// Bits per coded sample for PCM-like codecs
	BitsPerSample int
	BigEndian     bool
	Lossless      bool
}

// IsPCM reports whether the codec carries uncompressed or companded samples.
func (d Descriptor) IsPCM() bool {
	return d.BitsPerSample > 0
}

// audioRegistry contains all audio codec definitions.
var audioRegistry = map[Audio]*Descriptor{
	AudioOpus: {
		Name:             AudioOpus,
		LongName:         "Opus (Opus Interactive Audio Codec)",
		Aliases:          []string{"opus", "libopus"},
		MatroskaID:       "A_OPUS",
		MPEGTSStreamType: StreamTypeOpus,
	},
	AudioVorbis: {
		Name:       AudioVorbis,
		LongName:   "Vorbis",
		Aliases:    []string{"vorbis", "libvorbis"},
		MatroskaID: "A_VORBIS",
	},
	AudioAAC: {
		Name:             AudioAAC,
		LongName:         "AAC (Advanced Audio Coding)",
		Aliases:          []string{"aac", "mp4a", "libfdk_aac", "aac_at"},
		MatroskaID:       "A_AAC",
		MPEGTSStreamType: StreamTypeAAC,
	},
	AudioMP3: {
		Name:             AudioMP3,
		LongName:         "MP3 (MPEG audio layer 3)",
		Aliases:          []string{"mp3", "mp3float", "libmp3lame"},
		MatroskaID:       "A_MPEG/L3",
		WAVTag:           WAVFormatMP3,
		MPEGTSStreamType: StreamTypeMP3,
	},
	AudioAC3: {
		Name:             AudioAC3,
		LongName:         "ATSC A/52A (AC-3)",
		Aliases:          []string{"ac3", "ac-3", "a52", "ac3_fixed"},
		MatroskaID:       "A_AC3",
		MPEGTSStreamType: StreamTypeAC3,
	},
	AudioEAC3: {
		Name:             AudioEAC3,
		LongName:         "ATSC A/52B (AC-3, E-AC-3)",
		Aliases:          []string{"eac3", "ec-3", "ec3"},
		MatroskaID:       "A_EAC3",
		MPEGTSStreamType: StreamTypeEAC3,
	},
	AudioFLAC: {
		Name:       AudioFLAC,
		LongName:   "FLAC (Free Lossless Audio Codec)",
		Aliases:    []string{"flac"},
		MatroskaID: "A_FLAC",
		Lossless:   true,
	},
	AudioPCMS16LE: {
		Name:          AudioPCMS16LE,
		LongName:      "PCM signed 16-bit little-endian",
		Aliases:       []string{"pcm_s16le", "s16le", "pcm"},
		MatroskaID:    "A_PCM/INT/LIT",
		WAVTag:        WAVFormatPCM,
		SampleFormat:  media.SampleFormatS16,
		BitsPerSample: 16,
		Lossless:      true,
	},
	AudioPCMS16BE: {
		Name:          AudioPCMS16BE,
		LongName:      "PCM signed 16-bit big-endian",
		Aliases:       []string{"pcm_s16be", "s16be"},
		MatroskaID:    "A_PCM/INT/BIG",
		SampleFormat:  media.SampleFormatS16,
		BitsPerSample: 16,
		BigEndian:     true,
		Lossless:      true,
	},
	AudioPCMS32LE: {
		Name:          AudioPCMS32LE,
		LongName:      "PCM signed 32-bit little-endian",
		Aliases:       []string{"pcm_s32le", "s32le"},
		MatroskaID:    "A_PCM/INT/LIT",
		WAVTag:        WAVFormatPCM,
		SampleFormat:  media.SampleFormatS32,
		BitsPerSample: 32,
		Lossless:      true,
	},
	AudioPCMU8: {
		Name:          AudioPCMU8,
		LongName:      "PCM unsigned 8-bit",
		Aliases:       []string{"pcm_u8", "u8"},
		MatroskaID:    "A_PCM/INT/LIT",
		WAVTag:        WAVFormatPCM,
		SampleFormat:  media.SampleFormatU8,
		BitsPerSample: 8,
		Lossless:      true,
	},
	AudioPCMF32LE: {
		Name:          AudioPCMF32LE,
		LongName:      "PCM 32-bit floating point little-endian",
		Aliases:       []string{"pcm_f32le", "f32le", "flt"},
		MatroskaID:    "A_PCM/FLOAT/IEEE",
		WAVTag:        WAVFormatIEEEFloat,
		SampleFormat:  media.SampleFormatF32,
		BitsPerSample: 32,
		Lossless:      true,
	},
	AudioPCMMulaw: {
		Name:          AudioPCMMulaw,
		LongName:      "PCM mu-law / G.711 mu-law",
		Aliases:       []string{"pcm_mulaw", "mulaw", "ulaw", "g711u", "pcmu"},
		WAVTag:        WAVFormatMuLaw,
		SampleFormat:  media.SampleFormatS16,
		BitsPerSample: 8,
	},
	AudioPCMAlaw: {
		Name:          AudioPCMAlaw,
		LongName:      "PCM A-law / G.711 A-law",
		Aliases:       []string{"pcm_alaw", "alaw", "g711a", "pcma"},
		WAVTag:        WAVFormatALaw,
		SampleFormat:  media.SampleFormatS16,
		BitsPerSample: 8,
	},
}

// audioAliasIndex maps all aliases to their canonical codec.
var audioAliasIndex map[string]Audio

func init() {
	audioAliasIndex = make(map[string]Audio)
	for codec, info := range audioRegistry {
		audioAliasIndex[string(codec)] = codec
		for _, alias := range info.Aliases {
			audioAliasIndex[strings.ToLower(alias)] = codec
		}
	}
}

// ParseAudio parses a string (codec name, alias, or encoder) to an Audio codec.
// Returns the canonical codec and whether the parse was successful.
func ParseAudio(s string) (Audio, bool) {
	if s == "" {
		return "", false
	}
	codec, ok := audioAliasIndex[strings.ToLower(strings.TrimSpace(s))]
	return codec, ok
}

// Normalize converts any codec string (encoder name, alias) to its canonical form.
// Returns the input unchanged if not recognized.
func Normalize(name string) string {
	if codec, ok := ParseAudio(name); ok {
		return string(codec)
	}
	return name
}

// Match returns true if two codec strings represent the same codec.
// Handles aliases, encoder names, and case differences.
func Match(a, b string) bool {
	ca, okA := ParseAudio(a)
	cb, okB := ParseAudio(b)
	if okA && okB {
		return ca == cb
	}
	return strings.EqualFold(a, b)
}

// Describe returns the descriptor for a codec.
func Describe(a Audio) (Descriptor, bool) {
	info, ok := audioRegistry[a]
	if !ok {
		return Descriptor{}, false
	}
	return *info, true
}

// All returns every known codec ordered by name.
func All() []Descriptor {
	out := make([]Descriptor, 0, len(audioRegistry))
	for _, info := range audioRegistry {
		out = append(out, *info)
	}
	slices.SortFunc(out, func(a, b Descriptor) int {
		return strings.Compare(string(a.Name), string(b.Name))
	})
	return out
}

// IsPCM reports whether a carries PCM or G.711 samples.
func (a Audio) IsPCM() bool {
	info, ok := audioRegistry[a]
	return ok && info.IsPCM()
}

// MPEGTSStreamType returns the MPEG-TS stream type for the audio codec.
// Returns 0 if not supported in MPEG-TS.
func (a Audio) MPEGTSStreamType() uint8 {
	if info, ok := audioRegistry[a]; ok {
		return info.MPEGTSStreamType
	}
	return 0
}

// MatroskaID returns the Matroska CodecID, or "" if a cannot be stored in
// Matroska.
func (a Audio) MatroskaID() string {
	if info, ok := audioRegistry[a]; ok {
		return info.MatroskaID
	}
	return ""
}

// FromMatroskaID maps a Matroska CodecID back to a codec. bitDepth
// disambiguates integer PCM.
func FromMatroskaID(id string, bitDepth int) (Audio, bool) {
	switch id {
	case "A_PCM/INT/LIT":
		switch bitDepth {
		case 8:
			return AudioPCMU8, true
		case 32:
			return AudioPCMS32LE, true
		default:
			return AudioPCMS16LE, true
		}
	case "A_PCM/INT/BIG":
		return AudioPCMS16BE, true
	}
	if strings.HasPrefix(id, "A_AAC") {
		return AudioAAC, true
	}
	for codec, info := range audioRegistry {
		if info.MatroskaID != "" && info.MatroskaID == id {
			return codec, true
		}
	}
	return "", false
}

// WAVFormatTag returns the WAVE format tag for a codec.
func (a Audio) WAVFormatTag() (uint16, bool) {
	info, ok := audioRegistry[a]
	if !ok || info.WAVTag == 0 {
		return 0, false
	}
	return info.WAVTag, true
}

// FromWAVFormat maps a WAVE format tag and bit depth to a codec.
func FromWAVFormat(tag uint16, bits int) (Audio, bool) {
	switch tag {
	case WAVFormatPCM:
		switch bits {
		case 8:
			return AudioPCMU8, true
		case 16:
			return AudioPCMS16LE, true
		case 32:
			return AudioPCMS32LE, true
		}
	case WAVFormatIEEEFloat:
		if bits == 32 {
			return AudioPCMF32LE, true
		}
	case WAVFormatALaw:
		return AudioPCMAlaw, true
	case WAVFormatMuLaw:
		return AudioPCMMulaw, true
	case WAVFormatMP3:
		return AudioMP3, true
	}
	return "", false
}
