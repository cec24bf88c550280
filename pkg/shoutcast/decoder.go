package shoutcast

import (
	"bytes"
	"fmt"

	"github.com/pkg/errors"
)

// MetadataBlockUnit is the size multiplier of the metadata length byte.
const MetadataBlockUnit = 16

// MaxMetadataBlockSize is the largest block a single length byte can announce.
const MaxMetadataBlockSize = 255 * MetadataBlockUnit

type stateKind int

const (
	skippingAudio stateKind = iota
	awaitingLengthMarker
	capturingMetadata
)

func (k stateKind) String() string {
	switch k {
	case skippingAudio:
		return "skipping-audio"
	case awaitingLengthMarker:
		return "awaiting-length-marker"
	case capturingMetadata:
		return "capturing-metadata"
	}
	return "unknown"
}

// frameState is the position within the audio/metadata cycle. n is the number
// of buffered bytes the state needs before it can resolve.
type frameState struct {
	kind stateKind
	n    int
}

func (s frameState) required() int {
	if s.kind == awaitingLengthMarker {
		return 1
	}
	return s.n
}

func (s frameState) String() string {
	return fmt.Sprintf("%s(%d)", s.kind, s.required())
}

// DecoderStats counts what a Decoder has consumed.
type DecoderStats struct {
	AudioBytes     int64
	MetadataBlocks int64
	EmptyBlocks    int64
}

// Decoder separates ICY metadata blocks from the audio bytes around them. Feed
// accepts chunks of any size; a Decoder is not safe for concurrent use.
type Decoder struct {
	metaint  int
	metadata *MetadataDecoder

	state   frameState
	pending bytes.Buffer
	stats   DecoderStats
}

// NewDecoder returns a Decoder for a stream carrying metaint audio bytes
// between metadata blocks. A nil MetadataDecoder means strict UTF-8.
func NewDecoder(metaint int, md *MetadataDecoder) (*Decoder, error) {
	if metaint <= 0 {
		return nil, errors.Errorf("invalid metaint %d", metaint)
	}

	d := &Decoder{
		metaint:  metaint,
		metadata: md,
		state:    frameState{kind: skippingAudio, n: metaint},
	}
	d.pending.Grow(metaint)

	return d, nil
}

// Feed appends chunk to the pending bytes and runs every transition they
// allow. It returns the records of the non-empty metadata blocks completed by
// this chunk, in stream order. A decode error leaves the Decoder unusable.
func (d *Decoder) Feed(chunk []byte) ([]Metadata, error) {
	d.pending.Write(chunk)

	var records []Metadata
	for d.pending.Len() >= d.state.required() {
		switch d.state.kind {
		case skippingAudio:
			d.pending.Next(d.state.n)
			d.stats.AudioBytes += int64(d.state.n)
			d.state = frameState{kind: awaitingLengthMarker}

		case awaitingLengthMarker:
			b, _ := d.pending.ReadByte()
			d.state = frameState{kind: capturingMetadata, n: int(b) * MetadataBlockUnit}

		case capturingMetadata:
			raw := d.pending.Next(d.state.n)
			d.state = frameState{kind: skippingAudio, n: d.metaint}

			if len(raw) == 0 {
				d.stats.EmptyBlocks++
				continue
			}

			m, err := d.metadata.Decode(raw)
			if err != nil {
				return records, errors.Wrap(err, "decode metadata")
			}
			d.stats.MetadataBlocks++
			records = append(records, m)
		}
	}

	return records, nil
}

// Buffered returns the number of bytes waiting for the current state.
func (d *Decoder) Buffered() int {
	return d.pending.Len()
}

// Stats returns the running totals.
func (d *Decoder) Stats() DecoderStats {
	return d.stats
}

// MetaInt returns the audio interval the Decoder was created with.
func (d *Decoder) MetaInt() int {
	return d.metaint
}
