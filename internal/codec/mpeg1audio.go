package codec

import "errors"

var errNoMPEGAudioSync = errors.New("no MPEG audio frame sync")

var mpegAudioRates = [4][3]int{
	{11025, 12000, 8000},  // MPEG-2.5
	{},                    // reserved
	{22050, 24000, 16000}, // MPEG-2
	{44100, 48000, 32000}, // MPEG-1
}

// MPEGAudioHeader reads sample rate and channel count from an MPEG audio
// frame header.
func MPEGAudioHeader(frame []byte) (sampleRate, channels int, err error) {
	if len(frame) < 4 || frame[0] != 0xFF || frame[1]&0xE0 != 0xE0 {
		return 0, 0, errNoMPEGAudioSync
	}
	version := (frame[1] >> 3) & 0x03
	rateIdx := (frame[2] >> 2) & 0x03
	if version == 1 || rateIdx == 3 {
		return 0, 0, errNoMPEGAudioSync
	}
	channels = 2
	if frame[3]>>6 == 0x03 {
		channels = 1
	}
	return mpegAudioRates[version][rateIdx], channels, nil
}
