package app

import (
	"flag"
	"os"
	"path/filepath"

	"github.com/grafana/dskit/flagext"
	"github.com/grafana/dskit/server"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"

	"github.com/zachfi/zkit/pkg/tracing"

	"github.com/zachfi/icybot/modules/bot"
	"github.com/zachfi/icybot/modules/notifier"
)

type Config struct {
	Target   string          `yaml:"target"`
	Tracing  tracing.Config  `yaml:"tracing,omitempty"`
	Server   server.Config   `yaml:"server,omitempty"`
	Bot      bot.Config      `yaml:"bot,omitempty"`
	Notifier notifier.Config `yaml:"notifier,omitempty"`
}

// LoadConfig overlays the YAML file at file onto config. Unknown fields are an
// error.
func LoadConfig(file string, config *Config) error {
	filename, _ := filepath.Abs(file)

	if err := loadYamlFile(filename, config); err != nil {
		return errors.Wrapf(err, "failed to load yaml file %s", file)
	}

	return nil
}

// loadYamlFile unmarshals a YAML file into the received interface{} or returns an error.
func loadYamlFile(filename string, d interface{}) error {
	yamlFile, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.UnmarshalStrict(yamlFile, d)
}

func (c *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	flagext.DefaultValues(&c.Server)
	f.IntVar(&c.Server.HTTPListenPort, "server.http-listen-port", 3030, "HTTP server listen port.")
	f.IntVar(&c.Server.GRPCListenPort, "server.grpc-listen-port", 9090, "gRPC server listen port.")

	c.Tracing.RegisterFlagsAndApplyDefaults("tracing", f)
	c.Bot.RegisterFlagsAndApplyDefaults("bot", f)
	c.Notifier.RegisterFlagsAndApplyDefaults("notifier", f)
}
