package container

import (
	"cmp"
	"io"
	"slices"

	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// packetQueue serves packets from demuxers that parse the whole input while
// reading the header.
type packetQueue struct {
	pkts []*media.Packet
	pos  int
	// err is returned once the queue drains, instead of io.EOF.
	err error
}

func (q *packetQueue) push(pkt *media.Packet) {
	q.pkts = append(q.pkts, pkt)
}

func (q *packetQueue) pop() (*media.Packet, error) {
	if q.pos >= len(q.pkts) {
		if q.err != nil {
			return nil, q.err
		}
		return nil, io.EOF
	}
	pkt := q.pkts[q.pos]
	q.pkts[q.pos] = nil
	q.pos++
	return pkt, nil
}

func (q *packetQueue) reset() {
	q.pkts = nil
	q.pos = 0
	q.err = nil
}

// applyPacketStats fills StartTime, Duration and BitRate of streams that do
// not have them from the queued packets.
func applyPacketStats(streams []*media.Stream, pkts []*media.Packet) {
	type stat struct {
		first, last int64
		bytes       int64
		seen        bool
	}
	stats := make([]stat, len(streams))
	for _, pkt := range pkts {
		if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(stats) || pkt.PTS == timebase.NoPTS {
			continue
		}
		s := &stats[pkt.StreamIndex]
		end := pkt.PTS + pkt.Duration
		if !s.seen {
			s.first, s.last, s.seen = pkt.PTS, end, true
		}
		s.first = min(s.first, pkt.PTS)
		s.last = max(s.last, end)
		s.bytes += int64(len(pkt.Data))
	}
	for i, st := range streams {
		s := stats[i]
		if !s.seen {
			continue
		}
		if st.StartTime == timebase.NoPTS {
			st.StartTime = s.first
		}
		if st.Duration == timebase.NoPTS || st.Duration <= 0 {
			st.Duration = s.last - s.first
		}
		if st.Params.BitRate == 0 && st.Duration > 0 {
			us := timebase.Rescale(st.Duration, st.TimeBase, timebase.Microseconds)
			if us > 0 {
				st.Params.BitRate = s.bytes * 8 * 1_000_000 / us
			}
		}
	}
}

// sortPacketsByDTS orders packets of interleaved streams by decode time,
// keeping stream order for equal timestamps.
func sortPacketsByDTS(pkts []*media.Packet) {
	slices.SortStableFunc(pkts, func(a, b *media.Packet) int {
		return cmp.Compare(a.DTS, b.DTS)
	})
}
