package notifier

import (
	"context"
	"log/slog"

	"github.com/grafana/dskit/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/icybot/pkg/nowplaying"
	"github.com/zachfi/icybot/pkg/shoutcast"
)

const announcePrefix = "now playing: "

var module = "notifier"

var (
	metricMetadataBlocks = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "icybot",
		Subsystem: module,
		Name:      "metadata_blocks_total",
		Help:      "Non-empty ICY metadata blocks decoded.",
	})
	metricAnnouncements = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "icybot",
		Subsystem: module,
		Name:      "announcements_total",
		Help:      "Now playing announcements sent.",
	})
	metricAnnounceFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "icybot",
		Subsystem: module,
		Name:      "announce_failures_total",
		Help:      "Now playing announcements that could not be sent.",
	})
)

// Sink delivers announcements. It is shared with other modules and must be
// safe for concurrent use.
type Sink interface {
	Send(target, message string) error
}

// Notifier follows a stream and announces every StreamTitle it carries.
type Notifier struct {
	services.Service
	cfg     *Config
	logger  *slog.Logger
	tracer  trace.Tracer
	sink    Sink
	tracker *nowplaying.Tracker
	stream  *shoutcast.Stream
}

// New creates and returns a new Notifier.
func New(cfg Config, sink Sink, tracker *nowplaying.Tracker, logger slog.Logger) (*Notifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ReadBufferSize <= 0 {
		cfg.ReadBufferSize = defaultReadBufferSize
	}
	if tracker == nil {
		tracker = nowplaying.NewTracker()
	}

	n := &Notifier{
		cfg:     &cfg,
		logger:  logger.With("module", module),
		tracer:  otel.Tracer(module),
		sink:    sink,
		tracker: tracker,
	}

	n.Service = services.NewBasicService(n.starting, n.running, n.stopping)

	return n, nil
}

func (n *Notifier) starting(ctx context.Context) error {
	stream, err := shoutcast.Open(ctx, n.cfg.URL,
		shoutcast.WithLogger(n.logger),
		shoutcast.WithCharset(n.cfg.MetadataCharset),
		shoutcast.WithReadBufferSize(n.cfg.ReadBufferSize),
		shoutcast.WithUserAgent(n.cfg.UserAgent),
	)
	if err != nil {
		n.logger.Error("error opening stream", "err", err)
		return err
	}

	n.stream = stream
	n.tracker.SetStation(stream.Name)

	return nil
}

func (n *Notifier) running(ctx context.Context) error {
	n.stream.MetadataCallbackFunc = func(m shoutcast.Metadata) {
		n.handleMetadata(ctx, m)
	}

	if err := n.stream.Run(ctx); err != nil {
		n.logger.Error("stream failed", "err", err)
		return err
	}

	stats := n.stream.Stats()
	n.logger.Info("stream finished",
		"audio", ByteCountIEC(stats.AudioBytes),
		"metadata_blocks", stats.MetadataBlocks,
		"empty_blocks", stats.EmptyBlocks,
	)

	return nil
}

func (n *Notifier) stopping(_ error) error {
	n.logger.Info("stopping")

	if n.stream != nil {
		return n.stream.Close()
	}
	return nil
}

func (n *Notifier) handleMetadata(ctx context.Context, m shoutcast.Metadata) {
	metricMetadataBlocks.Inc()
	n.logger.Debug("metadata", "meta", map[string]string(m))

	title, ok := m.StreamTitle()
	if !ok {
		return
	}

	changed := n.tracker.Update(title)
	if n.cfg.SkipRepeats && !changed {
		n.logger.Debug("skipping repeated title", "title", title)
		return
	}

	_ = n.announce(ctx, title)
}

func (n *Notifier) announce(ctx context.Context, title string) error {
	_, span := n.tracer.Start(ctx, "Notifier.announce")
	span.SetAttributes(
		attribute.String("channel", n.cfg.Channel),
		attribute.String("title", title),
	)

	n.logger.Info("now playing", "title", title)

	err := n.sink.Send(n.cfg.Channel, announcePrefix+title)
	if err != nil {
		metricAnnounceFailures.Inc()
	} else {
		metricAnnouncements.Inc()
	}

	return endSpan(span, err, "failed to announce", n.logger)
}
