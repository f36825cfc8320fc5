package container

import "github.com/at-wat/ebml-go"

// EBML element layout for the subset of Matroska read and written here.
// Field names are element names.

type mkvFile struct {
	Header  mkvHeader  `ebml:"EBML"`
	Segment mkvSegment `ebml:"Segment"`
}

type mkvHeader struct {
	EBMLVersion            uint64
	EBMLReadVersion        uint64
	EBMLMaxIDLength        uint64
	EBMLMaxSizeLength      uint64
	EBMLDocType            string
	EBMLDocTypeVersion     uint64
	EBMLDocTypeReadVersion uint64
}

type mkvSegment struct {
	Info    mkvInfo
	Tracks  mkvTracks
	Tags    *mkvTags `ebml:",omitempty"`
	Cluster []mkvCluster
}

type mkvInfo struct {
	TimecodeScale uint64
	SegmentUID    []byte `ebml:",omitempty"`
	Title         string `ebml:",omitempty"`
	MuxingApp     string
	WritingApp    string
	Duration      float64 `ebml:",omitempty"`
}

type mkvTracks struct {
	TrackEntry []mkvTrackEntry
}

type mkvTrackEntry struct {
	TrackNumber     uint64
	TrackUID        uint64
	TrackType       uint64
	FlagDefault     uint64 `ebml:",omitempty"`
	Name            string `ebml:",omitempty"`
	Language        string `ebml:",omitempty"`
	CodecID         string
	CodecPrivate    []byte `ebml:",omitempty"`
	CodecDelay      uint64 `ebml:",omitempty"`
	SeekPreRoll     uint64 `ebml:",omitempty"`
	DefaultDuration uint64 `ebml:",omitempty"`
	Audio           *mkvAudio `ebml:",omitempty"`
}

type mkvAudio struct {
	SamplingFrequency float64
	Channels          uint64
	BitDepth          uint64 `ebml:",omitempty"`
}

type mkvCluster struct {
	Timecode    uint64
	SimpleBlock []ebml.Block    `ebml:",omitempty"`
	BlockGroup  []mkvBlockGroup `ebml:",omitempty"`
}

type mkvBlockGroup struct {
	Block         ebml.Block
	BlockDuration uint64 `ebml:",omitempty"`
}

type mkvTags struct {
	Tag []mkvTag
}

type mkvTag struct {
	Targets   mkvTargets
	SimpleTag []mkvSimpleTag
}

type mkvTargets struct {
	TargetTypeValue uint64 `ebml:",omitempty"`
	TagTrackUID     uint64 `ebml:",omitempty"`
}

type mkvSimpleTag struct {
	TagName   string
	TagString string `ebml:",omitempty"`
	TagBinary []byte `ebml:",omitempty"`
}

const (
	mkvTrackTypeAudio = 2
	// mkvTargetAlbum is the TargetTypeValue for whole-file tags.
	mkvTargetAlbum = 50
	// mkvTimecodeScale is the muxer's tick, in nanoseconds.
	mkvTimecodeScale = 1_000_000
	// mkvClusterSpan is the longest cluster the muxer writes, in ticks.
	mkvClusterSpan = 5000
	// mkvOpusSeekPreRoll is 80ms in nanoseconds.
	mkvOpusSeekPreRoll = 80_000_000
)
