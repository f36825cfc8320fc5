package remux

import (
	"errors"
	"io"
	"log/slog"

	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// trimmer applies a time window to packets of one stream. Bounds are
// converted once into the stream's time base.
type trimmer struct {
	start int64
	end   int64
}

func newTrimmer(w media.TimeWindow, tb timebase.Rational) trimmer {
	start, end := w.Bounds(tb)
	return trimmer{start: start, end: end}
}

// admit decides what happens to pkt. stop means the end bound was passed
// and reading ends normally. A forwarded packet has the start offset
// subtracted from its timestamps so the output begins at zero.
func (t trimmer) admit(pkt *media.Packet) (forward, stop bool) {
	if t.end != timebase.NoPTS && pkt.PTS != timebase.NoPTS && pkt.PTS > t.end {
		return false, true
	}
	if t.start != timebase.NoPTS {
		if pkt.PTS == timebase.NoPTS || pkt.PTS < t.start {
			return false, false
		}
		pkt.PTS -= t.start
		if pkt.DTS != timebase.NoPTS {
			pkt.DTS -= t.start
		}
	}
	return true, false
}

// engineStats counts what an engine did with the packets it read.
type engineStats struct {
	read    int64
	skipped int64
	trimmed int64
	written int64
	// end is the largest pts+duration written, in the output time base.
	end int64
}

func (s *engineStats) wrote(pkt *media.Packet) {
	s.written++
	if pkt.PTS == timebase.NoPTS {
		return
	}
	if e := pkt.PTS + pkt.Duration; e > s.end {
		s.end = e
	}
}

func (s *engineStats) logAttrs() []any {
	return []any{
		slog.Int64("read", s.read),
		slog.Int64("skipped", s.skipped),
		slog.Int64("trimmed", s.trimmed),
		slog.Int64("written", s.written),
	}
}

// streamCopier forwards packets of one input stream to one output stream
// without decoding them. The output header must be written before run.
type streamCopier struct {
	in     *container.Input
	out    *container.Output
	ist    *media.Stream
	ost    *media.Stream
	trim   trimmer
	logger *slog.Logger
	stats  engineStats
}

func newStreamCopier(in *container.Input, out *container.Output, ist, ost *media.Stream, w media.TimeWindow, logger *slog.Logger) *streamCopier {
	return &streamCopier{
		in:     in,
		out:    out,
		ist:    ist,
		ost:    ost,
		trim:   newTrimmer(w, ist.TimeBase),
		logger: logger,
	}
}

// run reads the input to its end or to the window's end bound, then
// flushes the output. The trailer is left to the caller.
func (c *streamCopier) run() error {
	for {
		pkt, err := c.in.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		c.stats.read++
		if pkt.StreamIndex != c.ist.Index {
			c.stats.skipped++
			pkt.Unref()
			continue
		}
		forward, stop := c.trim.admit(pkt)
		if stop {
			c.logger.Debug("end bound reached", slog.Int64("pts", pkt.PTS))
			pkt.Unref()
			break
		}
		if !forward {
			c.stats.trimmed++
			pkt.Unref()
			continue
		}
		if err := c.forward(pkt); err != nil {
			return err
		}
	}
	if err := c.out.Flush(); err != nil {
		return err
	}
	c.logger.Debug("stream copy finished", c.stats.logAttrs()...)
	return nil
}

// forward re-tags pkt to the output stream, rescales its timestamps and
// writes it. The packet is released whether or not the write succeeds.
func (c *streamCopier) forward(pkt *media.Packet) error {
	defer pkt.Unref()
	if pkt.StreamIndex != c.ist.Index {
		return media.Errorf(media.KindPrecondition, "copy packet",
			"packet belongs to stream %d, copying stream %d", pkt.StreamIndex, c.ist.Index)
	}
	pkt.StreamIndex = c.ost.Index
	pkt.RescaleTS(c.ist.TimeBase, c.ost.TimeBase)
	if err := c.out.WritePacket(pkt); err != nil {
		return err
	}
	c.stats.wrote(pkt)
	return nil
}
