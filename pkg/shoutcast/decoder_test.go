package shoutcast

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// buildBlock encodes text as a length byte followed by the NUL padded text.
func buildBlock(text string) []byte {
	blocks := (len(text) + MetadataBlockUnit - 1) / MetadataBlockUnit
	out := make([]byte, 1+blocks*MetadataBlockUnit)
	out[0] = byte(blocks)
	copy(out[1:], text)
	return out
}

// buildCycle returns metaint audio bytes followed by a metadata block.
func buildCycle(metaint int, text string) []byte {
	audio := bytes.Repeat([]byte{0xFF}, metaint)
	return append(audio, buildBlock(text)...)
}

func feedChunks(t *testing.T, d *Decoder, data []byte, sizes func() int) []Metadata {
	t.Helper()

	var out []Metadata
	for len(data) > 0 {
		n := sizes()
		if n > len(data) {
			n = len(data)
		}
		records, err := d.Feed(data[:n])
		require.NoError(t, err)
		out = append(out, records...)
		data = data[n:]
	}
	return out
}

func TestNewDecoder_InvalidMetaInt(t *testing.T) {
	for _, metaint := range []int{0, -1} {
		_, err := NewDecoder(metaint, nil)
		assert.Error(t, err, "metaint %d", metaint)
	}
}

func TestDecoder_ChunkBoundaryInvariance(t *testing.T) {
	cases := []struct {
		name    string
		metaint int
		titles  []string
	}{
		{name: "single byte interval", metaint: 1, titles: []string{"A - B"}},
		{name: "small interval", metaint: 16, titles: []string{"Artist - Song", "Other - Track"}},
		{name: "common interval", metaint: 8192, titles: []string{"One", "Two", "Three"}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var data []byte
			for _, title := range tc.titles {
				data = append(data, buildCycle(tc.metaint, "StreamTitle='"+title+"';StreamUrl='';")...)
			}

			whole, err := NewDecoder(tc.metaint, nil)
			require.NoError(t, err)
			expected, err := whole.Feed(data)
			require.NoError(t, err)
			require.Len(t, expected, len(tc.titles))

			oneByte, err := NewDecoder(tc.metaint, nil)
			require.NoError(t, err)
			got := feedChunks(t, oneByte, data, func() int { return 1 })
			assert.Equal(t, expected, got)

			rnd := rand.New(rand.NewSource(int64(tc.metaint)))
			random, err := NewDecoder(tc.metaint, nil)
			require.NoError(t, err)
			got = feedChunks(t, random, data, func() int { return 1 + rnd.Intn(3*tc.metaint+64) })
			assert.Equal(t, expected, got)

			for i, title := range tc.titles {
				assert.Equal(t, title, got[i][TitleKey])
			}
		})
	}
}

func TestDecoder_EmptyBlock(t *testing.T) {
	const metaint = 32

	d, err := NewDecoder(metaint, nil)
	require.NoError(t, err)

	data := append(bytes.Repeat([]byte{0x01}, metaint), 0)
	records, err := d.Feed(data)
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, frameState{kind: skippingAudio, n: metaint}, d.state)
	assert.Equal(t, int64(1), d.Stats().EmptyBlocks)

	// The next cycle must skip a full interval again.
	records, err = d.Feed(buildCycle(metaint, "StreamTitle='Next';"))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Next", records[0][TitleKey])
	assert.Equal(t, int64(2*metaint), d.Stats().AudioBytes)
}

func TestDecoder_MaxBlockWaits(t *testing.T) {
	const metaint = 8

	d, err := NewDecoder(metaint, nil)
	require.NoError(t, err)

	text := "StreamTitle='Long';"
	block := make([]byte, MaxMetadataBlockSize)
	copy(block, text)

	records, err := d.Feed(append(bytes.Repeat([]byte{0}, metaint), 255))
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, frameState{kind: capturingMetadata, n: 4080}, d.state)

	records, err = d.Feed(block[:MaxMetadataBlockSize-1])
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, MaxMetadataBlockSize-1, d.Buffered())
	assert.Equal(t, capturingMetadata, d.state.kind)

	records, err = d.Feed(block[MaxMetadataBlockSize-1:])
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Long", records[0][TitleKey])
	assert.Equal(t, 0, d.Buffered())
}

func TestDecoder_StopsMidState(t *testing.T) {
	const metaint = 64

	d, err := NewDecoder(metaint, nil)
	require.NoError(t, err)

	data := buildCycle(metaint, "StreamTitle='Cut';")
	records, err := d.Feed(data[:len(data)-3])
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, capturingMetadata, d.state.kind)
	assert.Positive(t, d.Buffered())
}

func TestDecoder_BackToBackTitles(t *testing.T) {
	const metaint = 100

	d, err := NewDecoder(metaint, nil)
	require.NoError(t, err)

	data := append(buildCycle(metaint, "StreamTitle='First';"), buildCycle(metaint, "StreamTitle='Second';")...)
	records, err := d.Feed(data)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "First", records[0][TitleKey])
	assert.Equal(t, "Second", records[1][TitleKey])
	assert.Equal(t, int64(2), d.Stats().MetadataBlocks)
}

func TestDecoder_InvalidEncoding(t *testing.T) {
	const metaint = 4

	d, err := NewDecoder(metaint, nil)
	require.NoError(t, err)

	data := append(bytes.Repeat([]byte{0}, metaint), 1)
	data = append(data, 0xC3, 0x28, 0xFF, 0xFE)
	data = append(data, make([]byte, 12)...)

	_, err = d.Feed(data)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidEncoding)
	assert.Contains(t, err.Error(), "decode metadata")
}

func TestDecoder_CharsetTranscodes(t *testing.T) {
	const metaint = 10

	md, err := NewMetadataDecoder("iso-8859-1")
	require.NoError(t, err)

	d, err := NewDecoder(metaint, md)
	require.NoError(t, err)

	// "Beyoncé" in Latin-1.
	text := "StreamTitle='Beyonc\xe9';"
	records, err := d.Feed(buildCycle(metaint, text))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Beyoncé", records[0][TitleKey])
}

func TestFrameState_Required(t *testing.T) {
	assert.Equal(t, 10, frameState{kind: skippingAudio, n: 10}.required())
	assert.Equal(t, 1, frameState{kind: awaitingLengthMarker}.required())
	assert.Equal(t, 0, frameState{kind: capturingMetadata}.required())
	assert.Equal(t, "capturing-metadata(32)", frameState{kind: capturingMetadata, n: 32}.String())
}
