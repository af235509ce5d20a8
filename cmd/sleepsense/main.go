package main

import (
	"context"
	"flag"
	"os"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"github.com/RMahshie/sleepsense/internal/app"
	"github.com/RMahshie/sleepsense/internal/config"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var fileFlag string
	flag.StringVar(&fileFlag, "file", "", "CSV/TXT recording or s3://key to open (default: DATA_DIR/DATA_FILE)")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && level != zerolog.NoLevel {
		zerolog.SetGlobalLevel(level)
	}

	core, err := app.New(context.Background(), cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize viewer")
	}
	defer core.Close()

	source := fileFlag
	if source == "" {
		source = cfg.Data.DefaultSource()
	}

	a := fyneapp.NewWithID("com.sleepsense.pro")
	w := a.NewWindow("SleepSense Pro")
	w.Resize(fyne.NewSize(1280, 860))

	v := newViewer(core, w, nil)
	w.SetContent(v.content())
	v.bindKeys()
	v.open(source)

	w.ShowAndRun()
}
