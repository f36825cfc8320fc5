package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/jmylchreest/memmux/internal/media"
)

func TestResult(t *testing.T) {
	assert.Equal(t, "ok", Result(nil))
	assert.Equal(t, "MuxError", Result(media.Errorf(media.KindMux, "write", "short write")))
	assert.Equal(t, "Error", Result(errors.New("boom")))
}

func TestObserveConversion(t *testing.T) {
	ok := ConversionsTotal.WithLabelValues("copy", "webm", "ok")
	failed := ConversionsTotal.WithLabelValues("none", "wav", "NoStreamError")
	in := ConversionBytes.WithLabelValues("in")
	out := ConversionBytes.WithLabelValues("out")

	okBefore, failedBefore := testutil.ToFloat64(ok), testutil.ToFloat64(failed)
	inBefore, outBefore := testutil.ToFloat64(in), testutil.ToFloat64(out)
	pktBefore := testutil.ToFloat64(ConversionPackets)

	ObserveConversion(Conversion{Mode: "copy", Format: "webm", BytesIn: 1000, BytesOut: 800, Packets: 12, Elapsed: 5 * time.Millisecond})
	ObserveConversion(Conversion{Format: "wav", Err: media.ErrNoStream, BytesIn: 50})

	assert.Equal(t, okBefore+1, testutil.ToFloat64(ok))
	assert.Equal(t, failedBefore+1, testutil.ToFloat64(failed))
	assert.Equal(t, inBefore+1050, testutil.ToFloat64(in))
	assert.Equal(t, outBefore+800, testutil.ToFloat64(out))
	assert.Equal(t, pktBefore+12, testutil.ToFloat64(ConversionPackets))
}

func TestObserveProbe(t *testing.T) {
	c := ProbesTotal.WithLabelValues("unknown", "OpenError")
	before := testutil.ToFloat64(c)
	ObserveProbe("", media.ErrOpen)
	assert.Equal(t, before+1, testutil.ToFloat64(c))
}
