package bot

import (
	"flag"
	"time"

	"github.com/grafana/dskit/flagext"
	"github.com/pkg/errors"
	"github.com/zachfi/zkit/pkg/util"
)

const (
	defaultPort         = 6667
	defaultStatsTimeout = 10 * time.Second
)

type Config struct {
	Server   string                 `yaml:"server,omitempty"`
	Port     int                    `yaml:"port,omitempty"`
	TLS      bool                   `yaml:"tls,omitempty"`
	Nick     string                 `yaml:"nick,omitempty"`
	User     string                 `yaml:"user,omitempty"`
	Name     string                 `yaml:"name,omitempty"`
	Channels flagext.StringSliceCSV `yaml:"channels,omitempty"`

	StatsURL     string        `yaml:"stats-url,omitempty"` // Icecast status-json.xsl
	StatsTimeout time.Duration `yaml:"stats-timeout,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Server, util.PrefixConfig(prefix, "server"), "", "The IRC server to connect to.")
	f.IntVar(&cfg.Port, util.PrefixConfig(prefix, "port"), defaultPort, "The IRC server port.")
	f.BoolVar(&cfg.TLS, util.PrefixConfig(prefix, "tls"), false, "Connect to the IRC server using TLS.")
	f.StringVar(&cfg.Nick, util.PrefixConfig(prefix, "nick"), "icybot", "The nickname of the bot.")
	f.StringVar(&cfg.User, util.PrefixConfig(prefix, "user"), "", "The IRC username, defaults to the nickname.")
	f.StringVar(&cfg.Name, util.PrefixConfig(prefix, "name"), "", "The IRC real name, defaults to the nickname.")
	f.Var(&cfg.Channels, util.PrefixConfig(prefix, "channels"), "Comma separated list of channels to join.")
	f.StringVar(&cfg.StatsURL, util.PrefixConfig(prefix, "stats-url"), "", "The Icecast status-json.xsl URL used for listener counts.")
	f.DurationVar(&cfg.StatsTimeout, util.PrefixConfig(prefix, "stats-timeout"), defaultStatsTimeout, "Timeout for a listener count lookup.")
}

func (cfg *Config) Validate() error {
	if cfg.Server == "" {
		return errors.New("no irc server configured")
	}
	if cfg.Nick == "" {
		return errors.New("no irc nick configured")
	}
	return nil
}
