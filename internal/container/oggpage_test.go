package container

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOggCRC(t *testing.T) {
	// Polynomial 0x04c11db7, unreflected, zero init and xorout.
	assert.Equal(t, uint32(0), oggCRC(0, nil))
	assert.Equal(t, uint32(0x89a1897f), oggCRC(0, []byte("123456789")))
}

func TestOggPageWriter_Packets(t *testing.T) {
	tests := []struct {
		name    string
		packets [][]byte
	}{
		{"small", [][]byte{{1, 2, 3}, {4}, {}}},
		{"exact lacing boundary", [][]byte{bytes.Repeat([]byte{7}, 255), bytes.Repeat([]byte{8}, 510)}},
		{"spans pages", [][]byte{bytes.Repeat([]byte{9}, 255*255+17), {1}}},
		{"many", func() [][]byte {
			var p [][]byte
			for i := range 600 {
				p = append(p, bytes.Repeat([]byte{byte(i)}, 1+i%40))
			}
			return p
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			pw := newOggPageWriter(&buf, 99)
			for i, p := range tt.packets {
				require.NoError(t, pw.writePacket(p, int64(i+1)))
			}
			require.NoError(t, pw.flush(true))

			pr := newOggPageReader(&buf)
			dp := newOggDepacketizer()
			var got [][]byte
			var pages []*oggPage
			for {
				page, err := pr.next()
				if err == io.EOF {
					break
				}
				require.NoError(t, err)
				pages = append(pages, page)
				for _, op := range dp.packets(page) {
					got = append(got, op.data)
				}
			}
			require.Len(t, got, len(tt.packets))
			for i := range got {
				assert.Equal(t, len(tt.packets[i]), len(got[i]), "packet %d", i)
				assert.True(t, bytes.Equal(tt.packets[i], got[i]), "packet %d", i)
			}
			assert.NotZero(t, pages[0].headerType&oggHeaderBOS)
			assert.NotZero(t, pages[len(pages)-1].headerType&oggHeaderEOS)
			for i, p := range pages {
				assert.Equal(t, uint32(i), p.sequence)
				assert.Equal(t, uint32(99), p.serial)
			}
		})
	}
}

func TestOggPageWriter_ContinuedPageHasNoGranule(t *testing.T) {
	var buf bytes.Buffer
	pw := newOggPageWriter(&buf, 1)
	require.NoError(t, pw.writePacket(bytes.Repeat([]byte{1}, 255*300), 42))
	require.NoError(t, pw.flush(true))

	pr := newOggPageReader(&buf)
	first, err := pr.next()
	require.NoError(t, err)
	assert.Equal(t, oggNoGranule, first.granule)
	second, err := pr.next()
	require.NoError(t, err)
	assert.NotZero(t, second.headerType&oggHeaderContinued)
	assert.Equal(t, int64(42), second.granule)
}
