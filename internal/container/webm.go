package container

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/bits"
	"slices"
	"strings"

	"github.com/at-wat/ebml-go"
	"github.com/google/uuid"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

var ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}

// ebmlDocType extracts the DocType string from the EBML header in head.
func ebmlDocType(head []byte) (string, bool) {
	if !bytes.HasPrefix(head, ebmlMagic) {
		return "", false
	}
	i := bytes.Index(head, []byte{0x42, 0x82})
	if i < 0 {
		return "", true
	}
	size, n := ebmlVint(head[i+2:])
	start := i + 2 + n
	if n == 0 || start+int(size) > len(head) {
		return "", true
	}
	return string(head[start : start+int(size)]), true
}

// ebmlVint decodes a variable-size integer. n is 0 when b is too short.
func ebmlVint(b []byte) (v uint64, n int) {
	if len(b) == 0 || b[0] == 0 {
		return 0, 0
	}
	n = bits.LeadingZeros8(b[0]) + 1
	if len(b) < n {
		return 0, 0
	}
	v = uint64(b[0] & (0xFF >> n))
	for _, c := range b[1:n] {
		v = v<<8 | uint64(c)
	}
	return v, n
}

// webmFormat is the WebM profile of Matroska: Opus and Vorbis only.
type webmFormat struct{}

func (webmFormat) Name() string         { return "webm" }
func (webmFormat) LongName() string     { return "WebM" }
func (webmFormat) Aliases() []string    { return nil }
func (webmFormat) Extensions() []string { return []string{"webm", "weba"} }
func (webmFormat) MIMEType() string     { return "audio/webm" }

func (webmFormat) Probe(head []byte) int {
	if docType, ok := ebmlDocType(head); ok && docType == "webm" {
		return ProbeScoreMax
	}
	return ProbeScoreNone
}

func (webmFormat) Supports(a codec.Audio) bool {
	return a == codec.AudioOpus || a == codec.AudioVorbis
}

func (webmFormat) DefaultCodec() codec.Audio { return codec.AudioOpus }
func (webmFormat) CarriesTags() bool         { return true }

func (webmFormat) NewDemuxer(r io.ReadSeeker, logger *slog.Logger) Demuxer {
	return &matroskaDemuxer{r: r, logger: logger}
}

func (webmFormat) NewMuxer(w io.Writer, logger *slog.Logger) Muxer {
	return &matroskaMuxer{w: w, logger: logger, docType: "webm"}
}

// matroskaFormat is full Matroska with every codec that has a CodecID.
type matroskaFormat struct{}

func (matroskaFormat) Name() string         { return "matroska" }
func (matroskaFormat) LongName() string     { return "Matroska" }
func (matroskaFormat) Aliases() []string    { return []string{"mkv", "mka"} }
func (matroskaFormat) Extensions() []string { return []string{"mka", "mkv"} }
func (matroskaFormat) MIMEType() string     { return "audio/x-matroska" }

func (matroskaFormat) Probe(head []byte) int {
	docType, ok := ebmlDocType(head)
	switch {
	case !ok:
		return ProbeScoreNone
	case docType == "matroska":
		return ProbeScoreMax
	default:
		// Unknown or unreadable DocType: still EBML.
		return ProbeScoreMax * 3 / 5
	}
}

func (matroskaFormat) Supports(a codec.Audio) bool { return a.MatroskaID() != "" }
func (matroskaFormat) DefaultCodec() codec.Audio   { return codec.AudioPCMS16LE }
func (matroskaFormat) CarriesTags() bool           { return true }

func (matroskaFormat) NewDemuxer(r io.ReadSeeker, logger *slog.Logger) Demuxer {
	return &matroskaDemuxer{r: r, logger: logger}
}

func (matroskaFormat) NewMuxer(w io.Writer, logger *slog.Logger) Muxer {
	return &matroskaMuxer{w: w, logger: logger, docType: "matroska"}
}

type matroskaDemuxer struct {
	r       io.ReadSeeker
	logger  *slog.Logger
	docType string
	queue   packetQueue
}

// FormatName reports the DocType of the file.
func (d *matroskaDemuxer) FormatName() string { return d.docType }

func (d *matroskaDemuxer) ReadHeader() (*Header, error) {
	var file mkvFile
	if err := ebml.Unmarshal(d.r, &file, ebml.WithIgnoreUnknown(true)); err != nil {
		// Truncated files still carry usable clusters.
		if len(file.Segment.Tracks.TrackEntry) == 0 {
			return nil, fmt.Errorf("parsing EBML: %w", err)
		}
		d.logger.Warn("EBML parse stopped early", slog.String("error", err.Error()))
	}
	d.docType = file.Header.EBMLDocType

	scale := file.Segment.Info.TimecodeScale
	if scale == 0 {
		scale = mkvTimecodeScale
	}
	tb := timebase.New(int64(scale), 1_000_000_000)

	byTrack := make(map[uint64]*media.Stream)
	var streams []*media.Stream
	for _, te := range file.Segment.Tracks.TrackEntry {
		if te.TrackType != mkvTrackTypeAudio {
			d.logger.Debug("ignoring non-audio track", slog.Uint64("track", te.TrackNumber), slog.String("codec_id", te.CodecID))
			continue
		}
		st, err := d.trackStream(len(streams), te, tb)
		if err != nil {
			d.logger.Debug("ignoring unsupported track", slog.Uint64("track", te.TrackNumber), slog.String("error", err.Error()))
			continue
		}
		byTrack[te.TrackNumber] = st
		streams = append(streams, st)
	}

	for _, cl := range file.Segment.Cluster {
		d.queueCluster(cl, byTrack, scale)
	}

	tags := media.NewTags()
	if t := file.Segment.Tags; t != nil {
		for _, tag := range t.Tag {
			target := tags
			if uid := tag.Targets.TagTrackUID; uid != 0 {
				target = nil
				for _, st := range streams {
					if uint64(st.ID) == uid {
						target = st.Tags
					}
				}
				if target == nil {
					continue
				}
			}
			for _, st := range tag.SimpleTag {
				value := st.TagString
				if value == "" && len(st.TagBinary) > 0 {
					value = string(st.TagBinary)
				}
				target.Set(strings.ToLower(st.TagName), value)
			}
		}
	}
	if title := file.Segment.Info.Title; title != "" {
		if _, ok := tags.Get("title"); !ok {
			tags.Set("title", title)
		}
	}

	applyPacketStats(streams, d.queue.pkts)
	var duration int64
	if file.Segment.Info.Duration > 0 {
		duration = timebase.Rescale(int64(math.Round(file.Segment.Info.Duration)), tb, timebase.Microseconds)
	}
	return &Header{Streams: streams, Tags: tags, Duration: duration}, nil
}

func (d *matroskaDemuxer) trackStream(index int, te mkvTrackEntry, tb timebase.Rational) (*media.Stream, error) {
	var bitDepth int
	var rate float64
	var channels int
	if te.Audio != nil {
		bitDepth = int(te.Audio.BitDepth)
		rate = te.Audio.SamplingFrequency
		channels = int(te.Audio.Channels)
	}
	if channels == 0 {
		channels = 1
	}
	a, ok := codec.FromMatroskaID(te.CodecID, bitDepth)
	if !ok {
		return nil, fmt.Errorf("unknown codec id %q", te.CodecID)
	}
	st := media.NewStream(index)
	st.ID = int64(te.TrackUID)
	st.TimeBase = tb
	st.Default = te.FlagDefault == 1
	st.Params = media.CodecParameters{
		Codec:         string(a),
		Kind:          media.MediaAudio,
		SampleRate:    int(rate),
		Channels:      channels,
		ChannelLayout: media.DefaultLayout(channels),
		Extradata:     slices.Clone(te.CodecPrivate),
	}
	if desc, ok := codec.Describe(a); ok && desc.IsPCM() {
		st.Params.SampleFormat = desc.SampleFormat
		st.Params.BitsPerSample = desc.BitsPerSample
	}
	if te.Name != "" {
		st.Tags.Set("title", te.Name)
	}
	if te.Language != "" {
		st.Tags.Set("language", te.Language)
	}
	if a == codec.AudioOpus {
		st.Params.SampleRate = codec.OpusSampleRate
		if head, err := codec.ParseOpusHead(te.CodecPrivate); err == nil {
			st.Params.InitialPadding = int(head.PreSkip)
		} else if te.CodecDelay > 0 {
			st.Params.InitialPadding = int(te.CodecDelay * codec.OpusSampleRate / 1_000_000_000)
		}
	}
	return st, nil
}

func (d *matroskaDemuxer) queueCluster(cl mkvCluster, byTrack map[uint64]*media.Stream, scale uint64) {
	var pkts []*media.Packet
	add := func(b ebml.Block, blockDuration uint64, key bool) {
		st, ok := byTrack[b.TrackNumber]
		if !ok {
			return
		}
		pts := int64(cl.Timecode) + int64(b.Timecode)
		for i, frame := range b.Data {
			dur := frameTicks(st.Params, frame, scale)
			if i == 0 && len(b.Data) == 1 && blockDuration > 0 {
				dur = int64(blockDuration)
			}
			pkts = append(pkts, &media.Packet{
				StreamIndex: st.Index,
				PTS:         pts,
				DTS:         pts,
				Duration:    dur,
				Keyframe:    key,
				Data:        frame,
			})
			pts += dur
		}
	}
	for _, b := range cl.SimpleBlock {
		add(b, 0, b.Keyframe)
	}
	for _, bg := range cl.BlockGroup {
		add(bg.Block, bg.BlockDuration, true)
	}
	sortPacketsByDTS(pkts)
	for _, p := range pkts {
		d.queue.push(p)
	}
}

// frameTicks is the duration of one frame in timecode ticks, 0 if unknown.
func frameTicks(p media.CodecParameters, frame []byte, scale uint64) int64 {
	var samples int
	a, _ := codec.ParseAudio(p.Codec)
	switch {
	case a == codec.AudioOpus:
		n, err := codec.OpusPacketSamples(frame)
		if err != nil {
			return 0
		}
		samples = n
	case p.BitsPerSample > 0 && p.Channels > 0:
		samples = len(frame) / (p.BitsPerSample / 8 * p.Channels)
	case p.FrameSize > 0:
		samples = p.FrameSize
	}
	if samples == 0 || p.SampleRate <= 0 {
		return 0
	}
	return timebase.Rescale(int64(samples), timebase.PerSecond(p.SampleRate), timebase.New(int64(scale), 1_000_000_000))
}

func (d *matroskaDemuxer) ReadPacket() (*media.Packet, error) {
	return d.queue.pop()
}

func (d *matroskaDemuxer) Close() error {
	d.queue.reset()
	d.r = nil
	return nil
}

type mkvPending struct {
	track    uint64
	pts      int64
	duration int64
	keyframe bool
	data     []byte
}

// matroskaMuxer collects packets and writes the file at the trailer, when
// cluster layout and duration are known.
type matroskaMuxer struct {
	w       io.Writer
	logger  *slog.Logger
	docType string

	tracks  []mkvTrackEntry
	tags    *mkvTags
	packets []mkvPending
}

func (m *matroskaMuxer) WriteHeader(streams []*media.Stream, tags *media.Tags) error {
	m.tracks = m.tracks[:0]
	for i, st := range streams {
		a, _ := codec.ParseAudio(st.Params.Codec)
		te := mkvTrackEntry{
			TrackNumber: uint64(i + 1),
			TrackUID:    uint64(i + 1),
			TrackType:   mkvTrackTypeAudio,
			CodecID:     a.MatroskaID(),
			Audio: &mkvAudio{
				SamplingFrequency: float64(st.Params.SampleRate),
				Channels:          uint64(st.Params.Channels),
			},
		}
		if st.Default {
			te.FlagDefault = 1
		}
		if te.CodecID == "" {
			return fmt.Errorf("codec %q has no Matroska codec id", st.Params.Codec)
		}
		switch {
		case a == codec.AudioOpus:
			head, err := codec.ParseOpusHead(st.Params.Extradata)
			if err != nil {
				preSkip := st.Params.InitialPadding
				if preSkip == 0 {
					preSkip = codec.DefaultOpusPreSkip
				}
				if head, err = codec.NewOpusHead(st.Params.Channels, st.Params.SampleRate, preSkip); err != nil {
					return err
				}
			}
			te.CodecPrivate = head.Marshal()
			te.CodecDelay = uint64(head.PreSkip) * 1_000_000_000 / codec.OpusSampleRate
			te.SeekPreRoll = mkvOpusSeekPreRoll
			te.Audio.SamplingFrequency = codec.OpusSampleRate
			te.Audio.Channels = uint64(head.Channels)
		case a.IsPCM():
			desc, _ := codec.Describe(a)
			te.Audio.BitDepth = uint64(desc.BitsPerSample)
		default:
			te.CodecPrivate = slices.Clone(st.Params.Extradata)
		}
		if title, ok := st.Tags.Get("title"); ok {
			te.Name = title
		}
		if lang, ok := st.Tags.Get("language"); ok {
			te.Language = lang
		}
		m.tracks = append(m.tracks, te)
		st.TimeBase = timebase.New(mkvTimecodeScale, 1_000_000_000)
	}

	m.tags = nil
	if tags.Len() > 0 {
		tag := mkvTag{Targets: mkvTargets{TargetTypeValue: mkvTargetAlbum}}
		tags.Each(func(key, value string) {
			tag.SimpleTag = append(tag.SimpleTag, mkvSimpleTag{TagName: strings.ToUpper(key), TagString: value})
		})
		m.tags = &mkvTags{Tag: []mkvTag{tag}}
	}
	return nil
}

func (m *matroskaMuxer) WritePacket(pkt *media.Packet) error {
	pts := pkt.PTS
	if pts == timebase.NoPTS {
		pts = pkt.DTS
	}
	if pts == timebase.NoPTS {
		if n := len(m.packets); n > 0 {
			last := m.packets[n-1]
			pts = last.pts + last.duration
		} else {
			pts = 0
		}
	}
	m.packets = append(m.packets, mkvPending{
		track:    uint64(pkt.StreamIndex + 1),
		pts:      pts,
		duration: max(pkt.Duration, 0),
		keyframe: pkt.Keyframe,
		data:     pkt.Data,
	})
	return nil
}

func (m *matroskaMuxer) WriteTrailer() error {
	var shift, end int64
	for _, p := range m.packets {
		shift = min(shift, p.pts)
	}
	if shift < 0 {
		m.logger.Debug("shifting negative timestamps", slog.Int64("shift_ms", -shift))
	}

	var clusters []mkvCluster
	for _, p := range m.packets {
		ts := p.pts - shift
		end = max(end, ts+p.duration)
		n := len(clusters)
		rel := int64(0)
		if n > 0 {
			rel = ts - int64(clusters[n-1].Timecode)
		}
		if n == 0 || rel < math.MinInt16 || rel > math.MaxInt16 || rel >= mkvClusterSpan {
			clusters = append(clusters, mkvCluster{Timecode: uint64(ts)})
			n++
			rel = 0
		}
		cur := &clusters[n-1]
		cur.SimpleBlock = append(cur.SimpleBlock, ebml.Block{
			TrackNumber: p.track,
			Timecode:    int16(rel),
			Keyframe:    p.keyframe,
			Data:        [][]byte{p.data},
		})
	}

	segmentUID := uuid.New()
	file := mkvFile{
		Header: mkvHeader{
			EBMLVersion:            1,
			EBMLReadVersion:        1,
			EBMLMaxIDLength:        4,
			EBMLMaxSizeLength:      8,
			EBMLDocType:            m.docType,
			EBMLDocTypeVersion:     4,
			EBMLDocTypeReadVersion: 2,
		},
		Segment: mkvSegment{
			Info: mkvInfo{
				TimecodeScale: mkvTimecodeScale,
				SegmentUID:    segmentUID[:],
				MuxingApp:     VendorString,
				WritingApp:    VendorString,
				Duration:      float64(end),
			},
			Tracks:  mkvTracks{TrackEntry: m.tracks},
			Tags:    m.tags,
			Cluster: clusters,
		},
	}
	var buf bytes.Buffer
	if err := ebml.Marshal(&file, &buf); err != nil {
		return fmt.Errorf("marshaling %s: %w", m.docType, err)
	}
	if _, err := m.w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("writing %s: %w", m.docType, err)
	}
	m.packets = nil
	return nil
}
