package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// wavPacketSamples is the number of sample frames per demuxed packet.
const wavPacketSamples = 1024

// infoTags maps tag keys to RIFF INFO chunk ids.
var infoTags = []struct {
	key, id string
}{
	{"title", "INAM"},
	{"artist", "IART"},
	{"album", "IPRD"},
	{"comment", "ICMT"},
	{"genre", "IGNR"},
	{"date", "ICRD"},
	{"copyright", "ICOP"},
	{"track", "ITRK"},
	{"encoder", "ISFT"},
}

func infoIDForKey(key string) (string, bool) {
	for _, t := range infoTags {
		if strings.EqualFold(t.key, key) {
			return t.id, true
		}
	}
	return "", false
}

func infoKeyForID(id string) string {
	for _, t := range infoTags {
		if t.id == id {
			return t.key
		}
	}
	return id
}

type wavFormat struct{}

func (wavFormat) Name() string         { return "wav" }
func (wavFormat) LongName() string     { return "WAV / WAVE (Waveform Audio)" }
func (wavFormat) Aliases() []string    { return []string{"wave"} }
func (wavFormat) Extensions() []string { return []string{"wav"} }
func (wavFormat) MIMEType() string     { return "audio/wav" }

func (wavFormat) Probe(head []byte) int {
	if len(head) >= 12 && string(head[:4]) == "RIFF" && string(head[8:12]) == "WAVE" {
		return ProbeScoreMax
	}
	return ProbeScoreNone
}

func (wavFormat) Supports(a codec.Audio) bool {
	_, ok := a.WAVFormatTag()
	return ok && a.IsPCM()
}

func (wavFormat) DefaultCodec() codec.Audio { return codec.AudioPCMS16LE }
func (wavFormat) CarriesTags() bool         { return true }

func (wavFormat) NewDemuxer(r io.ReadSeeker, logger *slog.Logger) Demuxer {
	return &wavDemuxer{r: r, logger: logger}
}

func (wavFormat) NewMuxer(w io.Writer, logger *slog.Logger) Muxer {
	return &wavMuxer{w: w, logger: logger}
}

type wavFmt struct {
	tag           uint16
	channels      int
	sampleRate    int
	byteRate      int
	blockAlign    int
	bitsPerSample int
}

type wavDemuxer struct {
	r      io.ReadSeeker
	logger *slog.Logger

	blockAlign int
	dataEnd    int64
	pos        int64
	pts        int64
}

func readChunkHeader(r io.Reader) (string, uint32, error) {
	var hdr [8]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return "", 0, err
	}
	return string(hdr[:4]), binary.LittleEndian.Uint32(hdr[4:]), nil
}

func (d *wavDemuxer) ReadHeader() (*Header, error) {
	var riff [12]byte
	if _, err := io.ReadFull(d.r, riff[:]); err != nil {
		return nil, fmt.Errorf("reading RIFF header: %w", err)
	}
	if string(riff[:4]) != "RIFF" || string(riff[8:]) != "WAVE" {
		return nil, errors.New("not a RIFF/WAVE stream")
	}
	size, err := d.r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if _, err := d.r.Seek(12, io.SeekStart); err != nil {
		return nil, err
	}

	var format *wavFmt
	tags := media.NewTags()
	pos := int64(12)
	for {
		id, chunkSize, err := readChunkHeader(d.r)
		if err != nil {
			return nil, fmt.Errorf("no data chunk: %w", err)
		}
		pos += 8
		switch id {
		case "fmt ":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(d.r, buf); err != nil {
				return nil, fmt.Errorf("reading fmt chunk: %w", err)
			}
			if format, err = parseWavFmt(buf); err != nil {
				return nil, err
			}
		case "LIST":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(d.r, buf); err != nil {
				return nil, fmt.Errorf("reading LIST chunk: %w", err)
			}
			parseInfoList(buf, tags)
		case wavID3Chunk, "ID3 ":
			buf := make([]byte, chunkSize)
			if _, err := io.ReadFull(d.r, buf); err != nil {
				return nil, fmt.Errorf("reading ID3 chunk: %w", err)
			}
			parseID3Chunk(buf, tags, d.logger)
		case "data":
			if format == nil {
				return nil, errors.New("data chunk before fmt chunk")
			}
			end := pos + int64(chunkSize)
			if chunkSize == 0xFFFFFFFF || end > size {
				end = size
			}
			d.dataEnd = end
			d.pos = pos
			d.blockAlign = format.blockAlign
			return d.header(format, tags, end-pos)
		default:
			d.logger.Debug("skipping RIFF chunk", slog.String("id", id), slog.Uint64("size", uint64(chunkSize)))
			if _, err := d.r.Seek(int64(chunkSize), io.SeekCurrent); err != nil {
				return nil, err
			}
		}
		pos += int64(chunkSize)
		if chunkSize%2 == 1 {
			if _, err := d.r.Seek(1, io.SeekCurrent); err != nil {
				return nil, err
			}
			pos++
		}
	}
}

func (d *wavDemuxer) header(f *wavFmt, tags *media.Tags, dataSize int64) (*Header, error) {
	a, ok := codec.FromWAVFormat(f.tag, f.bitsPerSample)
	if !ok {
		return nil, fmt.Errorf("unsupported WAVE format tag %#04x with %d bits", f.tag, f.bitsPerSample)
	}
	if f.blockAlign <= 0 || f.sampleRate <= 0 {
		return nil, fmt.Errorf("invalid fmt chunk: block align %d, rate %d", f.blockAlign, f.sampleRate)
	}
	desc, _ := codec.Describe(a)
	st := media.NewStream(0)
	st.Params = media.CodecParameters{
		Codec:         string(a),
		Kind:          media.MediaAudio,
		SampleRate:    f.sampleRate,
		Channels:      f.channels,
		ChannelLayout: media.DefaultLayout(f.channels),
		SampleFormat:  desc.SampleFormat,
		BitsPerSample: f.bitsPerSample,
		BitRate:       int64(f.byteRate) * 8,
		FrameSize:     wavPacketSamples,
	}
	st.TimeBase = timebase.PerSecond(f.sampleRate)
	st.StartTime = 0
	st.Duration = dataSize / int64(f.blockAlign)
	st.Default = true
	return &Header{Streams: []*media.Stream{st}, Tags: tags}, nil
}

func parseWavFmt(b []byte) (*wavFmt, error) {
	if len(b) < 16 {
		return nil, fmt.Errorf("fmt chunk too short: %d bytes", len(b))
	}
	f := &wavFmt{
		tag:           binary.LittleEndian.Uint16(b[0:]),
		channels:      int(binary.LittleEndian.Uint16(b[2:])),
		sampleRate:    int(binary.LittleEndian.Uint32(b[4:])),
		byteRate:      int(binary.LittleEndian.Uint32(b[8:])),
		blockAlign:    int(binary.LittleEndian.Uint16(b[12:])),
		bitsPerSample: int(binary.LittleEndian.Uint16(b[14:])),
	}
	if f.tag == codec.WAVFormatExtensible {
		if len(b) < 26 {
			return nil, errors.New("truncated WAVE_FORMAT_EXTENSIBLE fmt chunk")
		}
		// The sub-format GUID starts with the effective format tag.
		f.tag = binary.LittleEndian.Uint16(b[24:])
	}
	return f, nil
}

func parseInfoList(b []byte, tags *media.Tags) {
	if len(b) < 4 || string(b[:4]) != "INFO" {
		return
	}
	r := bytes.NewReader(b[4:])
	for {
		id, size, err := readChunkHeader(r)
		if err != nil {
			return
		}
		val := make([]byte, size)
		if _, err := io.ReadFull(r, val); err != nil {
			return
		}
		if size%2 == 1 {
			_, _ = r.ReadByte()
		}
		tags.Set(infoKeyForID(id), strings.TrimRight(string(val), "\x00"))
	}
}

func (d *wavDemuxer) ReadPacket() (*media.Packet, error) {
	remaining := d.dataEnd - d.pos
	remaining -= remaining % int64(d.blockAlign)
	if remaining <= 0 {
		return nil, io.EOF
	}
	n := min(remaining, int64(wavPacketSamples*d.blockAlign))
	buf := make([]byte, n)
	if _, err := d.r.Seek(d.pos, io.SeekStart); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(d.r, buf); err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}
	samples := n / int64(d.blockAlign)
	pkt := &media.Packet{
		PTS:      d.pts,
		DTS:      d.pts,
		Duration: samples,
		Keyframe: true,
		Data:     buf,
	}
	d.pos += n
	d.pts += samples
	return pkt, nil
}

func (d *wavDemuxer) Close() error {
	d.r = nil
	return nil
}

// wavMuxer collects samples and writes the whole file at the trailer, when
// chunk sizes are known.
type wavMuxer struct {
	w      io.Writer
	logger *slog.Logger

	params media.CodecParameters
	tag    uint16
	tags   *media.Tags
	data   bytes.Buffer
}

func (m *wavMuxer) WriteHeader(streams []*media.Stream, tags *media.Tags) error {
	if len(streams) != 1 {
		return fmt.Errorf("wav carries exactly one stream, got %d", len(streams))
	}
	st := streams[0]
	a, _ := codec.ParseAudio(st.Params.Codec)
	tag, ok := a.WAVFormatTag()
	if !ok {
		return fmt.Errorf("codec %q has no WAVE format tag", st.Params.Codec)
	}
	if st.Params.SampleRate <= 0 || st.Params.Channels <= 0 {
		return fmt.Errorf("wav needs sample rate and channels, got %d Hz %d ch", st.Params.SampleRate, st.Params.Channels)
	}
	desc, _ := codec.Describe(a)
	m.params = st.Params
	m.params.BitsPerSample = desc.BitsPerSample
	m.tag = tag
	m.tags = tags
	st.TimeBase = timebase.PerSecond(st.Params.SampleRate)
	return nil
}

func (m *wavMuxer) WritePacket(pkt *media.Packet) error {
	m.data.Write(pkt.Data)
	return nil
}

func (m *wavMuxer) WriteTrailer() error {
	p := m.params
	blockAlign := p.BitsPerSample / 8 * p.Channels

	fmtChunk := make([]byte, 16, 18)
	binary.LittleEndian.PutUint16(fmtChunk[0:], m.tag)
	binary.LittleEndian.PutUint16(fmtChunk[2:], uint16(p.Channels))
	binary.LittleEndian.PutUint32(fmtChunk[4:], uint32(p.SampleRate))
	binary.LittleEndian.PutUint32(fmtChunk[8:], uint32(p.SampleRate*blockAlign))
	binary.LittleEndian.PutUint16(fmtChunk[12:], uint16(blockAlign))
	binary.LittleEndian.PutUint16(fmtChunk[14:], uint16(p.BitsPerSample))
	if m.tag != codec.WAVFormatPCM {
		fmtChunk = append(fmtChunk, 0, 0)
	}

	var body bytes.Buffer
	body.WriteString("WAVE")
	writeChunk(&body, "fmt ", fmtChunk)
	if m.tag != codec.WAVFormatPCM {
		fact := make([]byte, 4)
		binary.LittleEndian.PutUint32(fact, uint32(m.data.Len()/blockAlign))
		writeChunk(&body, "fact", fact)
	}
	if info := m.infoList(); info != nil {
		writeChunk(&body, "LIST", info)
	}
	id3, err := id3Tag(m.tags, m.logger)
	if err != nil {
		return err
	}
	if id3 != nil {
		writeChunk(&body, wavID3Chunk, id3)
	}
	writeChunk(&body, "data", m.data.Bytes())

	var out bytes.Buffer
	out.Grow(body.Len() + 8)
	writeChunk(&out, "RIFF", body.Bytes())
	if _, err := m.w.Write(out.Bytes()); err != nil {
		return fmt.Errorf("writing wav: %w", err)
	}
	m.data.Reset()
	return nil
}

// infoList encodes the tags with a RIFF INFO id. The rest go to the ID3
// chunk.
func (m *wavMuxer) infoList() []byte {
	if m.tags.Len() == 0 {
		return nil
	}
	var list bytes.Buffer
	list.WriteString("INFO")
	m.tags.Each(func(key, value string) {
		if id, ok := infoIDForKey(key); ok {
			writeChunk(&list, id, append([]byte(value), 0))
		}
	})
	if list.Len() == 4 {
		return nil
	}
	return list.Bytes()
}

func writeChunk(w *bytes.Buffer, id string, data []byte) {
	var hdr [8]byte
	copy(hdr[:4], id)
	binary.LittleEndian.PutUint32(hdr[4:], uint32(len(data)))
	w.Write(hdr[:])
	w.Write(data)
	if len(data)%2 == 1 {
		w.WriteByte(0)
	}
}
