package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// oggSerial is the logical stream serial written by the muxer.
const oggSerial uint32 = 0x6d6d7578

type oggFormat struct{}

func (oggFormat) Name() string         { return "ogg" }
func (oggFormat) LongName() string     { return "Ogg (Opus)" }
func (oggFormat) Aliases() []string    { return []string{"opus", "oga"} }
func (oggFormat) Extensions() []string { return []string{"ogg", "opus", "oga"} }
func (oggFormat) MIMEType() string     { return "audio/ogg" }

func (oggFormat) Probe(head []byte) int {
	if !bytes.HasPrefix(head, oggCapture) {
		return ProbeScoreNone
	}
	// The first page of an Ogg Opus stream carries OpusHead.
	if len(head) >= 28 && bytes.Contains(head[:min(len(head), 28+255)], []byte("OpusHead")) {
		return ProbeScoreMax
	}
	return ProbeScoreMax / 2
}

func (oggFormat) Supports(a codec.Audio) bool { return a == codec.AudioOpus }
func (oggFormat) DefaultCodec() codec.Audio   { return codec.AudioOpus }
func (oggFormat) CarriesTags() bool           { return true }

func (oggFormat) NewDemuxer(r io.ReadSeeker, logger *slog.Logger) Demuxer {
	return &oggDemuxer{r: r, logger: logger}
}

func (oggFormat) NewMuxer(w io.Writer, logger *slog.Logger) Muxer {
	return &oggMuxer{w: w, logger: logger}
}

type oggDemuxer struct {
	r      io.ReadSeeker
	logger *slog.Logger
	queue  packetQueue
}

// oggLogical tracks one logical Opus stream while demuxing.
type oggLogical struct {
	stream  *media.Stream
	head    *codec.OpusHead
	headers int
	// pending holds audio packets whose pts is not yet anchored to a granule.
	pending []*media.Packet
	nextPTS int64
	based   bool
}

func (d *oggDemuxer) ReadHeader() (*Header, error) {
	pages := newOggPageReader(d.r)
	depack := newOggDepacketizer()
	logical := make(map[uint32]*oggLogical)
	ignored := make(map[uint32]bool)
	var streams []*media.Stream
	tags := media.NewTags()

	for {
		page, err := pages.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(streams) == 0 {
				return nil, err
			}
			d.logger.Warn("stopping at damaged ogg page", slog.String("error", err.Error()))
			break
		}
		if ignored[page.serial] {
			continue
		}
		for _, op := range depack.packets(page) {
			ls, ok := logical[op.serial]
			if !ok {
				head, err := codec.ParseOpusHead(op.data)
				if err != nil {
					d.logger.Debug("ignoring non-opus logical stream", slog.Uint64("serial", uint64(op.serial)))
					ignored[op.serial] = true
					break
				}
				ls = &oggLogical{stream: opusStream(len(streams), head, op.data), head: head, headers: 1}
				ls.stream.ID = int64(op.serial)
				logical[op.serial] = ls
				streams = append(streams, ls.stream)
				continue
			}
			if ls.headers == 1 {
				ls.headers++
				if bytes.HasPrefix(op.data, opusTagsMagic) {
					if _, err := parseVorbisComment(op.data[len(opusTagsMagic):], tags); err != nil {
						d.logger.Debug("malformed OpusTags", slog.String("error", err.Error()))
					}
					continue
				}
			}
			d.addAudioPacket(ls, op)
		}
	}

	for _, ls := range logical {
		// Streams that ended before any granule anchor start at zero.
		d.anchor(ls, 0)
	}
	applyPacketStats(streams, d.queue.pkts)
	return &Header{Streams: streams, Tags: tags}, nil
}

func opusStream(index int, head *codec.OpusHead, extradata []byte) *media.Stream {
	st := media.NewStream(index)
	st.Params = media.CodecParameters{
		Codec:          string(codec.AudioOpus),
		Kind:           media.MediaAudio,
		SampleRate:     codec.OpusSampleRate,
		Channels:       int(head.Channels),
		ChannelLayout:  media.DefaultLayout(int(head.Channels)),
		InitialPadding: int(head.PreSkip),
		Extradata:      append([]byte(nil), extradata...),
	}
	st.TimeBase = timebase.PerSecond(codec.OpusSampleRate)
	st.Default = true
	return st
}

func (d *oggDemuxer) addAudioPacket(ls *oggLogical, op oggPacket) {
	samples, err := codec.OpusPacketSamples(op.data)
	if err != nil {
		d.logger.Debug("skipping invalid opus packet", slog.String("error", err.Error()))
		return
	}
	pkt := &media.Packet{
		StreamIndex: ls.stream.Index,
		PTS:         timebase.NoPTS,
		DTS:         timebase.NoPTS,
		Duration:    int64(samples),
		Keyframe:    true,
		Data:        op.data,
	}
	if ls.based {
		pkt.PTS, pkt.DTS = ls.nextPTS, ls.nextPTS
		ls.nextPTS += pkt.Duration
		d.queue.push(pkt)
		return
	}
	ls.pending = append(ls.pending, pkt)
	if op.pageEnd && op.granule >= 0 {
		var total int64
		for _, p := range ls.pending {
			total += p.Duration
		}
		d.anchor(ls, max(op.granule-total-int64(ls.head.PreSkip), 0))
	}
}

// anchor assigns timestamps to pending packets starting at base.
func (d *oggDemuxer) anchor(ls *oggLogical, base int64) {
	if ls.based {
		return
	}
	ls.based = true
	ls.nextPTS = base
	for _, p := range ls.pending {
		p.PTS, p.DTS = ls.nextPTS, ls.nextPTS
		ls.nextPTS += p.Duration
		d.queue.push(p)
	}
	ls.pending = nil
}

func (d *oggDemuxer) ReadPacket() (*media.Packet, error) {
	return d.queue.pop()
}

func (d *oggDemuxer) Close() error {
	d.queue.reset()
	d.r = nil
	return nil
}

type oggMuxer struct {
	w      io.Writer
	logger *slog.Logger

	pages   *oggPageWriter
	preSkip int64
	// granule of the last written packet.
	granule int64
}

func (m *oggMuxer) WriteHeader(streams []*media.Stream, tags *media.Tags) error {
	if len(streams) != 1 {
		return fmt.Errorf("ogg muxer writes exactly one opus stream, got %d", len(streams))
	}
	st := streams[0]
	head, err := codec.ParseOpusHead(st.Params.Extradata)
	if err != nil {
		preSkip := st.Params.InitialPadding
		if preSkip == 0 {
			preSkip = codec.DefaultOpusPreSkip
		}
		if head, err = codec.NewOpusHead(st.Params.Channels, st.Params.SampleRate, preSkip); err != nil {
			return err
		}
		m.logger.Debug("synthesised OpusHead", slog.Int("channels", st.Params.Channels), slog.Int("pre_skip", preSkip))
	}
	st.TimeBase = timebase.PerSecond(codec.OpusSampleRate)
	m.preSkip = int64(head.PreSkip)
	m.granule = m.preSkip
	m.pages = newOggPageWriter(m.w, oggSerial)

	if err := m.pages.writePacket(head.Marshal(), 0); err != nil {
		return err
	}
	if err := m.pages.flush(false); err != nil {
		return err
	}
	comment := append(append([]byte(nil), opusTagsMagic...), marshalVorbisComment(VendorString, tags)...)
	if err := m.pages.writePacket(comment, 0); err != nil {
		return err
	}
	return m.pages.flush(false)
}

func (m *oggMuxer) WritePacket(pkt *media.Packet) error {
	duration := pkt.Duration
	if duration <= 0 {
		n, err := codec.OpusPacketSamples(pkt.Data)
		if err != nil {
			return err
		}
		duration = int64(n)
	}
	granule := m.granule + duration
	if pkt.PTS != timebase.NoPTS {
		granule = max(m.preSkip+pkt.PTS+duration, m.granule)
	}
	m.granule = granule
	return m.pages.writePacket(pkt.Data, granule)
}

func (m *oggMuxer) WriteTrailer() error {
	return m.pages.flush(true)
}
