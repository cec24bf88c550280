package shoutcast

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/pkg/errors"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
)

const (
	fieldSeparator = "';"
	valueSeparator = "='"

	// TitleKey is the metadata key carrying the "artist - title" string.
	TitleKey = "StreamTitle"
)

// ErrInvalidEncoding is returned when a metadata block is not valid text.
var ErrInvalidEncoding = errors.New("metadata is not valid text")

// Metadata holds the fields of one ICY metadata block.
type Metadata map[string]string

// StreamTitle returns the StreamTitle field and whether it was present.
func (m Metadata) StreamTitle() (string, bool) {
	t, ok := m[TitleKey]
	return t, ok
}

// DecodeMetadata parses a UTF-8 metadata block.
func DecodeMetadata(raw []byte) (Metadata, error) {
	if !utf8.Valid(raw) {
		return nil, errors.Wrapf(ErrInvalidEncoding, "%d byte block", len(raw))
	}
	return parseFields(string(raw)), nil
}

// MetadataDecoder decodes metadata blocks sent in a fixed charset.
type MetadataDecoder struct {
	charset string
	enc     encoding.Encoding
}

// NewMetadataDecoder returns a decoder for the named charset. An empty name or
// any alias of UTF-8 selects strict UTF-8 validation.
func NewMetadataDecoder(charset string) (*MetadataDecoder, error) {
	d := &MetadataDecoder{charset: "utf-8"}
	if charset == "" {
		return d, nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown metadata charset %q", charset)
	}

	name, err := htmlindex.Name(enc)
	if err != nil {
		return nil, errors.Wrapf(err, "unknown metadata charset %q", charset)
	}

	d.charset = name
	if name != "utf-8" {
		d.enc = enc
	}

	return d, nil
}

// Charset returns the canonical name of the decoder's charset.
func (d *MetadataDecoder) Charset() string {
	return d.charset
}

// Decode transcodes raw to UTF-8 when needed and parses its fields.
func (d *MetadataDecoder) Decode(raw []byte) (Metadata, error) {
	if d == nil || d.enc == nil {
		return DecodeMetadata(raw)
	}

	text, err := d.enc.NewDecoder().Bytes(raw)
	if err != nil {
		return nil, errors.Wrapf(ErrInvalidEncoding, "%d byte %s block: %v", len(raw), d.charset, err)
	}

	return DecodeMetadata(text)
}

// parseFields splits StreamTitle='a';StreamUrl='b'; into its fields. Empty
// segments and segments without a key/value separator are dropped.
func parseFields(text string) Metadata {
	m := Metadata{}

	segments := strings.Split(text, fieldSeparator)
	for i, segment := range segments {
		segment = trimSegment(segment)
		if segment == "" {
			continue
		}

		key, value, ok := strings.Cut(segment, valueSeparator)
		if !ok {
			continue
		}

		// Unterminated junk ahead of the key, as in garbage;StreamTitle='x'.
		if j := strings.LastIndexByte(key, ';'); j >= 0 {
			key = trimSegment(key[j+1:])
		}
		if key == "" {
			continue
		}

		// The last field keeps its closing quote when the encoder omits the
		// trailing semicolon.
		if i == len(segments)-1 {
			value = strings.TrimSuffix(value, "'")
		}

		m[key] = value
	}

	return m
}

func trimSegment(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return r == 0 || unicode.IsSpace(r)
	})
}
