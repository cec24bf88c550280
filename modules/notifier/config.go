package notifier

import (
	"flag"

	"github.com/pkg/errors"
	"github.com/zachfi/zkit/pkg/util"
)

const defaultReadBufferSize = 4096

type Config struct {
	URL             string `yaml:"url,omitempty"`
	Channel         string `yaml:"channel,omitempty"`
	MetadataCharset string `yaml:"metadata-charset,omitempty"` // empty means strict UTF-8
	ReadBufferSize  int    `yaml:"read-buffer-size,omitempty"`
	SkipRepeats     bool   `yaml:"skip-repeats,omitempty"`
	UserAgent       string `yaml:"user-agent,omitempty"`
}

func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.URL, util.PrefixConfig(prefix, "url"), "", "The stream URL, or a .pls/.m3u playlist pointing at it.")
	f.StringVar(&cfg.Channel, util.PrefixConfig(prefix, "channel"), "", "The channel that receives now playing announcements.")
	f.StringVar(&cfg.MetadataCharset, util.PrefixConfig(prefix, "metadata-charset"), "",
		"Charset of the stream metadata, eg: iso-8859-1. Empty means strict UTF-8.")
	f.IntVar(&cfg.ReadBufferSize, util.PrefixConfig(prefix, "read-buffer-size"), defaultReadBufferSize,
		"Largest number of bytes read from the stream at once.")
	f.BoolVar(&cfg.SkipRepeats, util.PrefixConfig(prefix, "skip-repeats"), false,
		"Do not announce a title equal to the previous one.")
	f.StringVar(&cfg.UserAgent, util.PrefixConfig(prefix, "user-agent"), "", "Override the User-Agent sent to the stream server.")
}

func (cfg *Config) Validate() error {
	if cfg.URL == "" {
		return errors.New("no stream url configured")
	}
	if cfg.Channel == "" {
		return errors.New("no announcement channel configured")
	}
	return nil
}
