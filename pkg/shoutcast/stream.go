package shoutcast

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	defaultReadBufferSize = 4096
	defaultUserAgent      = "iTunes/12.9.2 (Macintosh; OS X 10.14.3) AppleWebKit/606.4.5"
)

// ErrNoMetaInt is returned by Open when the server does not declare a metadata
// interval.
var ErrNoMetaInt = errors.New("no icy-metaint response header")

// MetadataCallbackFunc is the type of the function called for each decoded
// metadata block.
type MetadataCallbackFunc func(m Metadata)

// Stream represents an open shoutcast stream.
type Stream struct {
	// The name of the server
	Name string

	// What category the server falls under
	Genre string

	// The description of the stream
	Description string

	// Homepage of the server
	URL string

	// Bitrate of the server
	Bitrate int

	// Optional function to be executed for every non-empty metadata block
	MetadataCallbackFunc MetadataCallbackFunc

	decoder  *Decoder
	readSize int
	logger   *slog.Logger

	// The underlying data stream
	rc io.ReadCloser
}

type options struct {
	client    *http.Client
	logger    *slog.Logger
	charset   string
	readSize  int
	userAgent string
}

// Option configures Open.
type Option func(*options)

// WithHTTPClient replaces the default client, which has connect timeouts only.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithLogger sets the logger used for connection and metadata events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithCharset sets the charset metadata blocks are sent in.
func WithCharset(charset string) Option {
	return func(o *options) { o.charset = charset }
}

// WithReadBufferSize sets the largest chunk read from the connection at once.
func WithReadBufferSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.readSize = n
		}
	}
}

// WithUserAgent overrides the User-Agent sent to the server.
func WithUserAgent(ua string) Option {
	return func(o *options) {
		if ua != "" {
			o.userAgent = ua
		}
	}
}

func newHTTPClient() *http.Client {
	// Timeout for establishing the connection.
	// We don't want for the stream to timeout while we're reading it, but
	// we do want a timeout for establishing the connection to the server.
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ResponseHeaderTimeout: 10 * time.Second,
		DisableCompression:    true,
	}
	return &http.Client{Transport: transport}
}

// Open establishes a connection to a remote server and requests in-band
// metadata. Playlist URLs (.pls, .m3u) are resolved to the first stream they
// list. The connection lives until ctx is cancelled or Close is called.
func Open(ctx context.Context, url string, opts ...Option) (*Stream, error) {
	o := &options{
		readSize:  defaultReadBufferSize,
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.client == nil {
		o.client = newHTTPClient()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	md, err := NewMetadataDecoder(o.charset)
	if err != nil {
		return nil, err
	}

	o.logger.Info("opening stream", "url", url)

	resolvedURL, err := resolvePlaylistURL(ctx, o.client, url, o.userAgent)
	if err != nil {
		return nil, errors.Wrap(err, "failed to resolve playlist URL")
	}
	if resolvedURL != url {
		o.logger.Info("resolved playlist to stream URL", "url", resolvedURL)
		url = resolvedURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Add("accept", "*/*")
	req.Header.Add("user-agent", o.userAgent)
	req.Header.Add("icy-metadata", "1")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to connect")
	}

	s, err := newStream(resp, md, o)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}

	o.logger.Info("connected to stream", "name", s.Name, "metaint", s.decoder.MetaInt(), "charset", md.Charset())

	return s, nil
}

func newStream(resp *http.Response, md *MetadataDecoder, o *options) (*Stream, error) {
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("unexpected status: %s", resp.Status)
	}

	for k, v := range resp.Header {
		o.logger.Debug("HTTP header", "key", k, "value", v[0])
	}

	var bitrate int
	if rawBitrate := strings.TrimSpace(resp.Header.Get("icy-br")); rawBitrate != "" {
		// Some servers send a list like "128,128".
		rawBitrate, _, _ = strings.Cut(rawBitrate, ",")
		b, err := strconv.Atoi(rawBitrate)
		if err != nil {
			return nil, errors.Wrap(err, "cannot parse bitrate")
		}
		bitrate = b
	}

	metaint, err := parseMetaInt(resp.Header.Get("icy-metaint"))
	if err != nil {
		return nil, err
	}

	decoder, err := NewDecoder(metaint, md)
	if err != nil {
		return nil, err
	}

	return &Stream{
		Name:        resp.Header.Get("icy-name"),
		Genre:       resp.Header.Get("icy-genre"),
		Description: resp.Header.Get("icy-description"),
		URL:         resp.Header.Get("icy-url"),
		Bitrate:     bitrate,
		decoder:     decoder,
		readSize:    o.readSize,
		logger:      o.logger,
		rc:          resp.Body,
	}, nil
}

func parseMetaInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, ErrNoMetaInt
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrap(err, "cannot parse metaint")
	}
	if n <= 0 {
		return 0, errors.Errorf("invalid metaint %d", n)
	}

	return n, nil
}

// Run reads the stream until it ends, calling MetadataCallbackFunc for every
// decoded block. It returns nil when the server closes the stream or ctx is
// cancelled; a read or decode failure is returned and ends the stream.
func (s *Stream) Run(ctx context.Context) error {
	buf := make([]byte, s.readSize)

	for {
		n, err := s.rc.Read(buf)
		if n > 0 {
			records, decodeErr := s.decoder.Feed(buf[:n])
			for _, m := range records {
				s.logger.Debug("metadata", "meta", map[string]string(m))
				if s.MetadataCallbackFunc != nil {
					s.MetadataCallbackFunc(m)
				}
			}
			if decodeErr != nil {
				return decodeErr
			}
		}

		if err != nil {
			if errors.Is(err, io.EOF) {
				s.logger.Info("stream ended", "buffered", s.decoder.Buffered())
				return nil
			}
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "read stream")
		}
	}
}

// MetaInt returns the declared number of audio bytes between metadata blocks.
func (s *Stream) MetaInt() int {
	return s.decoder.MetaInt()
}

// Stats returns the decoder totals. It must not be called while Run is active
// on another goroutine.
func (s *Stream) Stats() DecoderStats {
	return s.decoder.Stats()
}

// Close closes the stream
func (s *Stream) Close() error {
	s.logger.Info("closing stream", "name", s.Name)
	return s.rc.Close()
}
