package container

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	gomp4 "github.com/abema/go-mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/fmp4/seekablebuffer"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// mp4FragmentSeconds is the fragment length written by the muxer.
const mp4FragmentSeconds = 1

type mp4Format struct{}

func (mp4Format) Name() string         { return "mp4" }
func (mp4Format) LongName() string     { return "MP4 (fragmented MPEG-4 Part 14)" }
func (mp4Format) Aliases() []string    { return []string{"fmp4", "m4a"} }
func (mp4Format) Extensions() []string { return []string{"mp4", "m4a"} }
func (mp4Format) MIMEType() string     { return "audio/mp4" }

func (mp4Format) Probe(head []byte) int {
	if len(head) < 8 {
		return ProbeScoreNone
	}
	switch string(head[4:8]) {
	case "ftyp":
		return ProbeScoreMax
	case "moov", "moof", "styp":
		return ProbeScoreMax * 4 / 5
	}
	return ProbeScoreNone
}

func (mp4Format) Supports(a codec.Audio) bool {
	switch a {
	case codec.AudioOpus, codec.AudioAAC, codec.AudioMP3, codec.AudioAC3:
		return true
	}
	return false
}

func (mp4Format) DefaultCodec() codec.Audio { return codec.AudioAAC }
func (mp4Format) CarriesTags() bool         { return false }

func (mp4Format) NewDemuxer(r io.ReadSeeker, logger *slog.Logger) Demuxer {
	return &mp4Demuxer{r: r, logger: logger}
}

func (mp4Format) NewMuxer(w io.Writer, logger *slog.Logger) Muxer {
	return &mp4Muxer{w: w, logger: logger}
}

type mp4Demuxer struct {
	r      io.ReadSeeker
	logger *slog.Logger
	queue  packetQueue

	byID map[int]*media.Stream
	pkts []*media.Packet
}

// readBox returns the raw bytes of the box described by info, header included.
func readBox(r io.ReadSeeker, info *gomp4.BoxInfo) ([]byte, error) {
	if _, err := r.Seek(int64(info.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	buf := make([]byte, info.Size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("reading %s box: %w", info.Type, err)
	}
	return buf, nil
}

func (d *mp4Demuxer) ReadHeader() (*Header, error) {
	d.byID = make(map[int]*media.Stream)
	var streams []*media.Stream
	var moov *gomp4.BoxInfo
	var fragmented bool

	for {
		info, err := gomp4.ReadBoxInfo(d.r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if streams == nil {
				return nil, fmt.Errorf("reading box header: %w", err)
			}
			d.queue.err = fmt.Errorf("reading box header: %w", err)
			break
		}
		switch info.Type {
		case gomp4.BoxTypeMoov():
			moov = info
			data, err := readBox(d.r, info)
			if err != nil {
				return nil, err
			}
			if streams, err = d.parseInit(data); err != nil {
				return nil, err
			}
		case gomp4.BoxTypeMoof():
			fragmented = true
			if err := d.readFragment(info); err != nil {
				d.queue.err = err
			}
		default:
			d.logger.Debug("skipping mp4 box", slog.String("type", info.Type.String()), slog.Uint64("size", info.Size))
		}
		if info.Size == 0 || info.ExtendToEOF {
			break
		}
		if _, err := d.r.Seek(int64(info.Offset+info.Size), io.SeekStart); err != nil {
			return nil, err
		}
	}
	if moov == nil {
		return nil, errors.New("mp4: no moov box")
	}
	if !fragmented {
		if err := d.readSampleTables(moov); err != nil {
			return nil, err
		}
	}

	sortPacketsByTime(d.pkts, streams)
	for _, p := range d.pkts {
		d.queue.push(p)
	}
	applyPacketStats(streams, d.pkts)
	d.pkts = nil
	return &Header{Streams: streams}, nil
}

func (d *mp4Demuxer) parseInit(moov []byte) ([]*media.Stream, error) {
	var init fmp4.Init
	if err := init.Unmarshal(bytes.NewReader(moov)); err != nil {
		return nil, fmt.Errorf("parsing moov: %w", err)
	}
	var streams []*media.Stream
	for _, track := range init.Tracks {
		params, ok := codec.ParamsFromMP4(track.Codec)
		if !ok {
			d.logger.Debug("ignoring unsupported mp4 track",
				slog.Int("track_id", track.ID),
				slog.String("type", fmt.Sprintf("%T", track.Codec)))
			continue
		}
		if track.TimeScale == 0 {
			return nil, fmt.Errorf("mp4 track %d has no timescale", track.ID)
		}
		st := media.NewStream(len(streams))
		st.ID = int64(track.ID)
		st.Params = params
		st.TimeBase = timebase.PerSecond(int(track.TimeScale))
		if params.SampleRate == 0 {
			st.Params.SampleRate = int(track.TimeScale)
		}
		d.byID[track.ID] = st
		streams = append(streams, st)
	}
	if len(streams) > 0 {
		streams[0].Default = true
	}
	return streams, nil
}

func (d *mp4Demuxer) readFragment(moof *gomp4.BoxInfo) error {
	moofData, err := readBox(d.r, moof)
	if err != nil {
		return err
	}
	mdat, err := gomp4.ReadBoxInfo(d.r)
	if err != nil || mdat.Type != gomp4.BoxTypeMdat() {
		return errors.New("mp4: moof not followed by mdat")
	}
	mdatData, err := readBox(d.r, mdat)
	if err != nil {
		return err
	}

	var parts fmp4.Parts
	if err := parts.Unmarshal(append(moofData, mdatData...)); err != nil {
		return fmt.Errorf("parsing fragment: %w", err)
	}
	for _, part := range parts {
		for _, track := range part.Tracks {
			st, ok := d.byID[track.ID]
			if !ok {
				continue
			}
			dts := int64(track.BaseTime)
			for _, s := range track.Samples {
				d.pkts = append(d.pkts, &media.Packet{
					StreamIndex: st.Index,
					PTS:         dts + int64(s.PTSOffset),
					DTS:         dts,
					Duration:    int64(s.Duration),
					Keyframe:    !s.IsNonSyncSample,
					Data:        s.Payload,
				})
				dts += int64(s.Duration)
			}
		}
	}
	return nil
}

// readSampleTables extracts samples of a progressive file from the stbl
// boxes of every track.
func (d *mp4Demuxer) readSampleTables(moov *gomp4.BoxInfo) error {
	traks, err := gomp4.ExtractBox(d.r, moov, gomp4.BoxPath{gomp4.BoxTypeTrak()})
	if err != nil {
		return fmt.Errorf("finding tracks: %w", err)
	}
	stbl := func(leaf gomp4.BoxType) gomp4.BoxPath {
		return gomp4.BoxPath{gomp4.BoxTypeMdia(), gomp4.BoxTypeMinf(), gomp4.BoxTypeStbl(), leaf}
	}
	for _, trak := range traks {
		tkhd, err := extractOne[*gomp4.Tkhd](d.r, trak, gomp4.BoxPath{gomp4.BoxTypeTkhd()})
		if err != nil {
			return err
		}
		st, ok := d.byID[int(tkhd.TrackID)]
		if !ok {
			continue
		}
		stts, err := extractOne[*gomp4.Stts](d.r, trak, stbl(gomp4.BoxTypeStts()))
		if err != nil {
			return err
		}
		stsz, err := extractOne[*gomp4.Stsz](d.r, trak, stbl(gomp4.BoxTypeStsz()))
		if err != nil {
			return err
		}
		stsc, err := extractOne[*gomp4.Stsc](d.r, trak, stbl(gomp4.BoxTypeStsc()))
		if err != nil {
			return err
		}
		var offsets []uint64
		if stco, err := extractOne[*gomp4.Stco](d.r, trak, stbl(gomp4.BoxTypeStco())); err == nil {
			for _, o := range stco.ChunkOffset {
				offsets = append(offsets, uint64(o))
			}
		} else if co64, err := extractOne[*gomp4.Co64](d.r, trak, stbl(gomp4.BoxTypeCo64())); err == nil {
			offsets = co64.ChunkOffset
		} else {
			return errors.New("mp4: track has no chunk offsets")
		}
		if err := d.readTrackSamples(st, stts, stsz, stsc, offsets); err != nil {
			return err
		}
	}
	return nil
}

func extractOne[T gomp4.IBox](r io.ReadSeeker, parent *gomp4.BoxInfo, path gomp4.BoxPath) (T, error) {
	var zero T
	boxes, err := gomp4.ExtractBoxWithPayload(r, parent, path)
	if err != nil {
		return zero, err
	}
	if len(boxes) == 0 {
		return zero, fmt.Errorf("mp4: missing %s box", path[len(path)-1])
	}
	box, ok := boxes[0].Payload.(T)
	if !ok {
		return zero, fmt.Errorf("mp4: unexpected %s payload %T", path[len(path)-1], boxes[0].Payload)
	}
	return box, nil
}

func (d *mp4Demuxer) readTrackSamples(st *media.Stream, stts *gomp4.Stts, stsz *gomp4.Stsz, stsc *gomp4.Stsc, offsets []uint64) error {
	count := int(stsz.SampleCount)
	sizeOf := func(i int) uint32 {
		if stsz.SampleSize != 0 {
			return stsz.SampleSize
		}
		return stsz.EntrySize[i]
	}
	if stsz.SampleSize == 0 && len(stsz.EntrySize) < count {
		return errors.New("mp4: truncated stsz")
	}

	var durations []int64
	for _, e := range stts.Entries {
		for range e.SampleCount {
			durations = append(durations, int64(e.SampleDelta))
		}
	}

	sample := 0
	var dts int64
	for chunk := range offsets {
		perChunk := samplesInChunk(stsc, uint32(chunk+1))
		pos := offsets[chunk]
		for range perChunk {
			if sample >= count {
				return nil
			}
			size := sizeOf(sample)
			if _, err := d.r.Seek(int64(pos), io.SeekStart); err != nil {
				return err
			}
			data := make([]byte, size)
			if _, err := io.ReadFull(d.r, data); err != nil {
				return fmt.Errorf("reading sample %d: %w", sample, err)
			}
			var dur int64
			if sample < len(durations) {
				dur = durations[sample]
			}
			d.pkts = append(d.pkts, &media.Packet{
				StreamIndex: st.Index,
				PTS:         dts,
				DTS:         dts,
				Duration:    dur,
				Keyframe:    true,
				Data:        data,
			})
			dts += dur
			pos += uint64(size)
			sample++
		}
	}
	return nil
}

func samplesInChunk(stsc *gomp4.Stsc, chunk uint32) uint32 {
	var n uint32
	for _, e := range stsc.Entries {
		if e.FirstChunk > chunk {
			break
		}
		n = e.SamplesPerChunk
	}
	return n
}

// sortPacketsByTime orders packets of streams with different time bases.
func sortPacketsByTime(pkts []*media.Packet, streams []*media.Stream) {
	slices.SortStableFunc(pkts, func(a, b *media.Packet) int {
		ta := timebase.Rescale(a.DTS, streams[a.StreamIndex].TimeBase, timebase.Microseconds)
		tb := timebase.Rescale(b.DTS, streams[b.StreamIndex].TimeBase, timebase.Microseconds)
		switch {
		case ta < tb:
			return -1
		case ta > tb:
			return 1
		}
		return 0
	})
}

func (d *mp4Demuxer) ReadPacket() (*media.Packet, error) {
	return d.queue.pop()
}

func (d *mp4Demuxer) Close() error {
	d.queue.reset()
	d.r = nil
	return nil
}

type mp4Track struct {
	id        int
	frameSize int64
	samples   []*fmp4.Sample
	baseTime  uint64
	nextDTS   int64
	started   bool
	// fragment is the pending duration, in timescale units, that triggers a
	// flush.
	fragment int64
	pending  int64
}

// mp4Muxer writes the init segment at the header and one moof+mdat per
// fragment.
type mp4Muxer struct {
	w      io.Writer
	logger *slog.Logger

	tracks   []*mp4Track
	sequence uint32
}

func (m *mp4Muxer) WriteHeader(streams []*media.Stream, _ *media.Tags) error {
	init := &fmp4.Init{}
	m.tracks = m.tracks[:0]
	for i, st := range streams {
		c, err := codec.MP4Codec(st.Params)
		if err != nil {
			return err
		}
		scale := st.Params.SampleRate
		if a, _ := codec.ParseAudio(st.Params.Codec); a == codec.AudioOpus {
			scale = codec.OpusSampleRate
		}
		if scale <= 0 {
			return fmt.Errorf("mp4 stream %d has no sample rate", i)
		}
		init.Tracks = append(init.Tracks, &fmp4.InitTrack{
			ID:        i + 1,
			TimeScale: uint32(scale),
			Codec:     c,
		})
		frameSize := int64(st.Params.FrameSize)
		if frameSize <= 0 {
			frameSize = codec.AACFrameSize
		}
		m.tracks = append(m.tracks, &mp4Track{
			id:        i + 1,
			frameSize: frameSize,
			fragment:  int64(scale) * mp4FragmentSeconds,
		})
		st.TimeBase = timebase.PerSecond(scale)
	}

	var buf seekablebuffer.Buffer
	if err := init.Marshal(&buf); err != nil {
		return fmt.Errorf("marshaling init: %w", err)
	}
	if _, err := m.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing init: %w", err)
	}
	m.sequence = 1
	return nil
}

func (m *mp4Muxer) WritePacket(pkt *media.Packet) error {
	t := m.tracks[pkt.StreamIndex]
	dts := pkt.DTS
	if dts == timebase.NoPTS {
		dts = pkt.PTS
	}
	if dts == timebase.NoPTS {
		dts = t.nextDTS
	}
	if !t.started {
		t.started = true
		t.baseTime = uint64(max(dts, 0))
		t.nextDTS = dts
	}
	dur := pkt.Duration
	if dur <= 0 {
		dur = t.frameSize
	}
	var offset int32
	if pkt.PTS != timebase.NoPTS {
		offset = int32(pkt.PTS - dts)
	}
	t.samples = append(t.samples, &fmp4.Sample{
		Duration:        uint32(dur),
		PTSOffset:       offset,
		IsNonSyncSample: !pkt.Keyframe,
		Payload:         pkt.Data,
	})
	t.nextDTS = dts + dur
	t.pending += dur
	if t.pending >= t.fragment {
		return m.flush()
	}
	return nil
}

func (m *mp4Muxer) flush() error {
	part := &fmp4.Part{SequenceNumber: m.sequence}
	for _, t := range m.tracks {
		if len(t.samples) == 0 {
			continue
		}
		part.Tracks = append(part.Tracks, &fmp4.PartTrack{
			ID:       t.id,
			BaseTime: t.baseTime,
			Samples:  t.samples,
		})
		for _, s := range t.samples {
			t.baseTime += uint64(s.Duration)
		}
		t.samples = nil
		t.pending = 0
	}
	if len(part.Tracks) == 0 {
		return nil
	}
	var buf seekablebuffer.Buffer
	if err := part.Marshal(&buf); err != nil {
		return fmt.Errorf("marshaling fragment: %w", err)
	}
	if _, err := m.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing fragment: %w", err)
	}
	m.sequence++
	return nil
}

// Flush writes every pending sample as one fragment.
func (m *mp4Muxer) Flush() error {
	return m.flush()
}

func (m *mp4Muxer) WriteTrailer() error {
	return m.flush()
}
