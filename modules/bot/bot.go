package bot

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/grafana/dskit/services"
	"github.com/lrstanley/girc"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zachfi/icybot/pkg/icestats"
	"github.com/zachfi/icybot/pkg/nowplaying"
)

var module = "bot"

const closeRetryInterval = 250 * time.Millisecond

// ErrNotConnected is returned by Send while there is no IRC connection.
var ErrNotConnected = errors.New("not connected to irc")

var (
	metricCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "icybot",
		Subsystem: module,
		Name:      "commands_total",
		Help:      "Commands handled, by command.",
	}, []string{"command"})
	metricStatsFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "icybot",
		Subsystem: module,
		Name:      "stats_failures_total",
		Help:      "Listener count lookups that failed.",
	})
)

type command string

const (
	commandListeners  command = "listeners"
	commandNowPlaying command = "nowplaying"
)

// StatsFetcher looks up listener counts.
type StatsFetcher interface {
	Fetch(ctx context.Context) (icestats.Stats, error)
}

// Bot keeps an IRC session open, answers commands and relays announcements.
type Bot struct {
	services.Service
	cfg     *Config
	logger  *slog.Logger
	tracer  trace.Tracer
	client  *girc.Client
	stats   StatsFetcher
	tracker *nowplaying.Tracker

	listenersRe  *regexp.Regexp
	nowPlayingRe *regexp.Regexp
}

// New creates and returns a new Bot. stats may be nil when no status URL is
// configured.
func New(cfg Config, stats StatsFetcher, tracker *nowplaying.Tracker, logger slog.Logger) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.User == "" {
		cfg.User = cfg.Nick
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Nick
	}
	if cfg.StatsTimeout <= 0 {
		cfg.StatsTimeout = defaultStatsTimeout
	}
	if tracker == nil {
		tracker = nowplaying.NewTracker()
	}

	nick := regexp.QuoteMeta(cfg.Nick)

	b := &Bot{
		cfg:          &cfg,
		logger:       logger.With("module", module),
		tracer:       otel.Tracer(module),
		stats:        stats,
		tracker:      tracker,
		listenersRe:  regexp.MustCompile(nick + `:?\s+(nl|nowlistening|listeners)\b`),
		nowPlayingRe: regexp.MustCompile(nick + `:?\s+(np|nowplaying)\b`),
	}

	b.client = girc.New(girc.Config{
		Server: cfg.Server,
		Port:   cfg.Port,
		SSL:    cfg.TLS,
		Nick:   cfg.Nick,
		User:   cfg.User,
		Name:   cfg.Name,
	})

	b.client.Handlers.Add(girc.CONNECTED, b.onConnected)
	b.client.Handlers.AddBg(girc.PRIVMSG, b.onPrivmsg)

	b.Service = services.NewBasicService(nil, b.running, b.stopping)

	return b, nil
}

func (b *Bot) running(ctx context.Context) error {
	connErr := make(chan error, 1)
	go func() {
		b.logger.Info("connecting", "server", b.cfg.Server, "port", b.cfg.Port, "tls", b.cfg.TLS)
		connErr <- b.client.Connect()
	}()

	select {
	case <-ctx.Done():
		b.disconnect(connErr)
		return nil
	case err := <-connErr:
		if err == nil {
			return errors.New("irc connection closed")
		}
		return errors.Wrap(err, "irc connection lost")
	}
}

// disconnect closes the client until Connect returns. Close is a no-op while
// the connection is still being set up.
func (b *Bot) disconnect(connErr <-chan error) {
	ticker := time.NewTicker(closeRetryInterval)
	defer ticker.Stop()

	for {
		b.client.Close()

		select {
		case <-connErr:
			return
		case <-ticker.C:
		}
	}
}

func (b *Bot) stopping(_ error) error {
	b.logger.Info("stopping")
	return nil
}

// Send delivers a message to a channel or nick. It is safe for concurrent use.
func (b *Bot) Send(target, message string) error {
	if !b.client.IsConnected() {
		return ErrNotConnected
	}
	b.client.Cmd.Message(target, message)
	return nil
}

func (b *Bot) onConnected(c *girc.Client, _ girc.Event) {
	b.logger.Info("connected", "nick", c.GetNick(), "channels", b.cfg.Channels.String())
	if len(b.cfg.Channels) > 0 {
		c.Cmd.Join(b.cfg.Channels...)
	}
}

func (b *Bot) onPrivmsg(c *girc.Client, e girc.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.StatsTimeout)
	defer cancel()

	reply, ok := b.respond(ctx, e.Last())
	if !ok {
		return
	}

	c.Cmd.Reply(e, reply)
}

// respond returns the reply to text, or false when text is not addressed to
// the bot as a known command.
func (b *Bot) respond(ctx context.Context, text string) (string, bool) {
	switch {
	case b.listenersRe.MatchString(text):
		metricCommands.WithLabelValues(string(commandListeners)).Inc()
		return b.listeners(ctx)
	case b.nowPlayingRe.MatchString(text):
		metricCommands.WithLabelValues(string(commandNowPlaying)).Inc()
		return b.nowPlaying(), true
	}
	return "", false
}

func (b *Bot) listeners(ctx context.Context) (string, bool) {
	if b.stats == nil {
		return "", false
	}

	ctx, span := b.tracer.Start(ctx, "Bot.listeners")

	stats, err := b.stats.Fetch(ctx)
	if err != nil {
		metricStatsFailures.Inc()
		_ = endSpan(span, err, "failed to fetch listener stats", b.logger)
		return "couldn't fetch listener stats", true
	}

	span.SetAttributes(
		attribute.Int64("listeners.current", int64(stats.Current)),
		attribute.Int64("listeners.peak", int64(stats.Peak)),
	)
	_ = endSpan(span, nil, "", b.logger)

	return fmt.Sprintf("current: %d peak: %d", stats.Current, stats.Peak), true
}

func (b *Bot) nowPlaying() string {
	track := b.tracker.Current()
	if track.Updated.IsZero() || track.Title == "" {
		return "nothing playing yet"
	}
	return "now playing: " + track.Title
}
