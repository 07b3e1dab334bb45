package cli

import (
	"errors"
	"io/fs"
	"os"

	"github.com/catatsuy/kioku/internal/config"
	"github.com/urfave/cli/v3"
)

func flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "config file (yaml or json)",
			Value:   config.DefaultPath,
		},
		&cli.IntFlag{
			Name:    "port",
			Aliases: []string{"p"},
			Usage:   "TCP port to listen on, overrides server.default_port",
		},
		&cli.StringFlag{
			Name:  "host",
			Usage: "address to bind, overrides server.host",
		},
		&cli.IntFlag{
			Name:  "capacity",
			Usage: "maximum number of cached items",
		},
		&cli.StringFlag{
			Name:  "separator",
			Usage: "protocol segment separator",
		},
		&cli.IntFlag{
			Name:  "max-frame-bytes",
			Usage: "largest command line or payload accepted",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "debug, info, warn or error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "auto, text or json",
		},
		&cli.StringFlag{
			Name:  "log-file",
			Usage: "write logs to a rotated file instead of stderr",
		},
		&cli.BoolFlag{
			Name:  "version",
			Usage: "print version and exit",
		},
	}
}

// loadConfig resolves the config file, the environment and explicit flags,
// later sources winning.
func (c *CLI) loadConfig(cmd *cli.Command) (config.Config, error) {
	path := cmd.String("config")
	if !cmd.IsSet("config") {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(config.LoadOptions{
		Path:        path,
		DotEnvFiles: []string{".env"},
		Environment: c.environ,
	})
	if err != nil {
		return config.Config{}, err
	}

	if cmd.IsSet("port") {
		cfg.Server.DefaultPort = int(cmd.Int("port"))
	}
	if cmd.IsSet("host") {
		cfg.Server.Host = cmd.String("host")
	}
	if cmd.IsSet("capacity") {
		cfg.Cache.Capacity = int(cmd.Int("capacity"))
	}
	if cmd.IsSet("separator") {
		cfg.Protocol.Separator = cmd.String("separator")
	}
	if cmd.IsSet("max-frame-bytes") {
		cfg.Server.MaxFrameBytes = int(cmd.Int("max-frame-bytes"))
	}
	if cmd.IsSet("log-level") {
		cfg.Log.Level = cmd.String("log-level")
	}
	if cmd.IsSet("log-format") {
		cfg.Log.Format = cmd.String("log-format")
	}
	if cmd.IsSet("log-file") {
		cfg.Log.File = cmd.String("log-file")
	}

	return cfg, cfg.Validate()
}
