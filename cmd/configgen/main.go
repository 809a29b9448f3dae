package main

import (
	"flag"
	"os"

	"github.com/danmuck/xpbridge/internal/config"
	"github.com/danmuck/xpbridge/internal/logging"
	"github.com/rs/zerolog/log"
)

const defaultPath = "cmd/xpbridged/config.toml"

func main() {
	output := flag.String("output", defaultPath, "output path for the config template, - for stdout")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	logging.ConfigureRuntime("configgen")

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			log.Fatal().Err(err).Str("path", *input).Msg("config invalid")
		}
		log.Info().
			Str("path", *input).
			Str("listen", cfg.ListenAddr).
			Str("decoder", cfg.DefaultDecoder.String()).
			Msg("config valid")
		return
	}

	if *output == "-" {
		tpl, err := config.Template()
		if err != nil {
			log.Fatal().Err(err).Msg("render template")
		}
		_, _ = os.Stdout.WriteString(tpl)
		return
	}
	if err := config.WriteTemplate(*output, *force); err != nil {
		log.Fatal().Err(err).Str("path", *output).Msg("write template")
	}
	log.Info().Str("path", *output).Msg("wrote config template")
}
