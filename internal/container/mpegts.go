package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/asticode/go-astits"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

const (
	// tsFirstPID is the PID of the first elementary stream written.
	tsFirstPID = 0x0100
	// tsClockRate is the MPEG-TS 90 kHz system clock.
	tsClockRate = 90000
	// tsMaxSIData bounds how much data is inspected for service tables.
	tsMaxSIData = 512
)

type mpegtsFormat struct{}

func (mpegtsFormat) Name() string         { return "mpegts" }
func (mpegtsFormat) LongName() string     { return "MPEG-TS (MPEG-2 Transport Stream)" }
func (mpegtsFormat) Aliases() []string    { return []string{"ts"} }
func (mpegtsFormat) Extensions() []string { return []string{"ts", "m2ts", "mts"} }
func (mpegtsFormat) MIMEType() string     { return "video/mp2t" }

func (mpegtsFormat) Probe(head []byte) int {
	if len(head) == 0 || head[0] != 0x47 {
		return ProbeScoreNone
	}
	syncs := 0
	for off := 0; off < len(head) && syncs < 4; off += astits.MpegTsPacketSize {
		if head[off] != 0x47 {
			return ProbeScoreNone
		}
		syncs++
	}
	if syncs >= 3 {
		return ProbeScoreMax
	}
	return ProbeScoreExtension / 2
}

func (mpegtsFormat) Supports(a codec.Audio) bool {
	return a.MPEGTSStreamType() != 0
}

func (mpegtsFormat) DefaultCodec() codec.Audio { return codec.AudioAAC }
func (mpegtsFormat) CarriesTags() bool         { return false }

func (mpegtsFormat) NewDemuxer(r io.ReadSeeker, logger *slog.Logger) Demuxer {
	return &mpegtsDemuxer{r: r, logger: logger}
}

func (mpegtsFormat) NewMuxer(w io.Writer, logger *slog.Logger) Muxer {
	return &mpegtsMuxer{w: w, logger: logger}
}

type mpegtsDemuxer struct {
	r      io.ReadSeeker
	logger *slog.Logger
	queue  packetQueue
}

// tsServiceInfo is what the service information tables say about a stream.
type tsServiceInfo struct {
	tags      *media.Tags
	languages map[uint16]string
}

// readServiceInfo scans the SDT and PMT for service names and stream
// languages. mediacommon does not expose either.
func (d *mpegtsDemuxer) readServiceInfo() tsServiceInfo {
	info := tsServiceInfo{tags: media.NewTags(), languages: make(map[uint16]string)}
	dmx := astits.NewDemuxer(context.Background(), d.r)
	var sawSDT, sawPMT bool
	for range tsMaxSIData {
		data, err := dmx.NextData()
		if err != nil {
			if !errors.Is(err, astits.ErrNoMorePackets) && !errors.Is(err, io.EOF) {
				d.logger.Debug("service table scan stopped", slog.String("error", err.Error()))
			}
			break
		}
		if data.SDT != nil && !sawSDT {
			sawSDT = true
			for _, svc := range data.SDT.Services {
				for _, desc := range svc.Descriptors {
					if desc.Service == nil {
						continue
					}
					if name := strings.TrimSpace(string(desc.Service.Name)); name != "" {
						info.tags.Set("service_name", name)
					}
					if provider := strings.TrimSpace(string(desc.Service.Provider)); provider != "" {
						info.tags.Set("service_provider", provider)
					}
				}
			}
		}
		if data.PMT != nil && !sawPMT {
			sawPMT = true
			for _, es := range data.PMT.ElementaryStreams {
				for _, desc := range es.ElementaryStreamDescriptors {
					if l := desc.ISO639LanguageAndAudioType; l != nil && len(l.Language) > 0 {
						info.languages[es.ElementaryPID] = string(l.Language)
					}
				}
			}
		}
		if sawSDT && sawPMT {
			break
		}
	}
	return info
}

// tsTrack accumulates packets of one elementary stream.
type tsTrack struct {
	stream *media.Stream
	pkts   []*media.Packet
}

func (d *mpegtsDemuxer) ReadHeader() (*Header, error) {
	info := d.readServiceInfo()
	if _, err := d.r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}

	reader := &mpegts.Reader{R: d.r}
	if err := reader.Initialize(); err != nil {
		return nil, fmt.Errorf("initializing mpegts reader: %w", err)
	}

	var tracks []*tsTrack
	for _, track := range reader.Tracks() {
		params, ok := codec.ParamsFromMPEGTS(track.Codec)
		if !ok {
			d.logger.Debug("ignoring unsupported elementary stream",
				slog.Uint64("pid", uint64(track.PID)),
				slog.String("type", fmt.Sprintf("%T", track.Codec)))
			continue
		}
		st := media.NewStream(len(tracks))
		st.ID = int64(track.PID)
		st.Params = params
		st.TimeBase = timebase.MPEGTS
		if lang, ok := info.languages[track.PID]; ok {
			st.Tags.Set("language", lang)
		}
		t := &tsTrack{stream: st}
		tracks = append(tracks, t)
		d.setupTrackCallback(reader, track, t)
	}
	if len(tracks) > 0 {
		tracks[0].stream.Default = true
	}

	reader.OnDecodeError(func(err error) {
		d.logger.Debug("MPEG-TS decode error", slog.String("error", err.Error()))
	})

	for {
		err := reader.Read()
		if err == nil {
			continue
		}
		if !errors.Is(err, io.EOF) && !errors.Is(err, astits.ErrNoMorePackets) {
			d.logger.Debug("MPEG-TS read error", slog.String("error", err.Error()))
			d.queue.err = fmt.Errorf("reading mpegts: %w", err)
		}
		break
	}

	streams := make([]*media.Stream, 0, len(tracks))
	var all []*media.Packet
	for _, t := range tracks {
		streams = append(streams, t.stream)
		all = append(all, t.pkts...)
	}
	sortPacketsByDTS(all)
	for _, p := range all {
		d.queue.push(p)
	}
	applyPacketStats(streams, all)
	return &Header{Streams: streams, Tags: info.tags}, nil
}

func (d *mpegtsDemuxer) setupTrackCallback(reader *mpegts.Reader, track *mpegts.Track, t *tsTrack) {
	emit := func(pts int64, data []byte, samples int) int64 {
		var dur int64
		if rate := t.stream.Params.SampleRate; rate > 0 && samples > 0 {
			dur = int64(samples) * tsClockRate / int64(rate)
		}
		t.pkts = append(t.pkts, &media.Packet{
			StreamIndex: t.stream.Index,
			PTS:         pts,
			DTS:         pts,
			Duration:    dur,
			Keyframe:    true,
			Data:        data,
		})
		return dur
	}

	switch track.Codec.(type) {
	case *mpegts.CodecOpus:
		reader.OnDataOpus(track, func(pts int64, packets [][]byte) error {
			for _, p := range packets {
				n, err := codec.OpusPacketSamples(p)
				if err != nil {
					d.logger.Debug("skipping invalid opus packet", slog.String("error", err.Error()))
					continue
				}
				pts += emit(pts, p, n)
			}
			return nil
		})
	case *mpegts.CodecMPEG4Audio:
		reader.OnDataMPEG4Audio(track, func(pts int64, aus [][]byte) error {
			for _, au := range aus {
				pts += emit(pts, au, codec.AACFrameSize)
			}
			return nil
		})
	case *mpegts.CodecAC3:
		reader.OnDataAC3(track, func(pts int64, frame []byte) error {
			emit(pts, frame, codec.AC3FrameSize)
			return nil
		})
	case *mpegts.CodecEAC3:
		reader.OnDataEAC3(track, func(pts int64, frame []byte) error {
			emit(pts, frame, codec.AC3FrameSize)
			return nil
		})
	case *mpegts.CodecMPEG1Audio:
		reader.OnDataMPEG1Audio(track, func(pts int64, frames [][]byte) error {
			for _, f := range frames {
				if t.stream.Params.SampleRate == 0 {
					if rate, ch, err := codec.MPEGAudioHeader(f); err == nil {
						t.stream.Params.SampleRate = rate
						t.stream.Params.Channels = ch
						t.stream.Params.ChannelLayout = media.DefaultLayout(ch)
					}
				}
				pts += emit(pts, f, codec.MP3FrameSize)
			}
			return nil
		})
	}
}

func (d *mpegtsDemuxer) ReadPacket() (*media.Packet, error) {
	return d.queue.pop()
}

func (d *mpegtsDemuxer) Close() error {
	d.queue.reset()
	d.r = nil
	return nil
}

type mpegtsMuxer struct {
	w      io.Writer
	logger *slog.Logger

	writer *mpegts.Writer
	tracks []*mpegts.Track
	// last holds each track's last pts, for packets without one.
	last []int64
}

func (m *mpegtsMuxer) WriteHeader(streams []*media.Stream, _ *media.Tags) error {
	m.tracks = m.tracks[:0]
	for i, st := range streams {
		c, err := codec.MPEGTSCodec(st.Params)
		if err != nil {
			return err
		}
		m.tracks = append(m.tracks, &mpegts.Track{PID: uint16(tsFirstPID + i), Codec: c})
		st.TimeBase = timebase.MPEGTS
	}
	m.last = make([]int64, len(streams))
	m.writer = &mpegts.Writer{W: m.w, Tracks: m.tracks}
	if err := m.writer.Initialize(); err != nil {
		return fmt.Errorf("initializing mpegts writer: %w", err)
	}
	m.logger.Debug("MPEG-TS muxer initialized", slog.Int("tracks", len(m.tracks)))
	return nil
}

func (m *mpegtsMuxer) WritePacket(pkt *media.Packet) error {
	if len(pkt.Data) == 0 {
		return nil
	}
	track := m.tracks[pkt.StreamIndex]
	pts := pkt.PTS
	if pts == timebase.NoPTS {
		pts = pkt.DTS
	}
	if pts == timebase.NoPTS {
		pts = m.last[pkt.StreamIndex]
	}
	m.last[pkt.StreamIndex] = pts + max(pkt.Duration, 0)

	switch track.Codec.(type) {
	case *mpegts.CodecOpus:
		return m.writer.WriteOpus(track, pts, [][]byte{pkt.Data})
	case *mpegts.CodecMPEG4Audio:
		return m.writer.WriteMPEG4Audio(track, pts, [][]byte{pkt.Data})
	case *mpegts.CodecAC3:
		return m.writer.WriteAC3(track, pts, pkt.Data)
	case *mpegts.CodecEAC3:
		return m.writer.WriteEAC3(track, pts, pkt.Data)
	case *mpegts.CodecMPEG1Audio:
		return m.writer.WriteMPEG1Audio(track, pts, [][]byte{pkt.Data})
	default:
		return fmt.Errorf("no writer for %T", track.Codec)
	}
}

// WriteTrailer is a no-op: mediacommon writes each PES as it arrives.
func (m *mpegtsMuxer) WriteTrailer() error {
	return nil
}
