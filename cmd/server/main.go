package main

import (
	"flag"
	"log/slog"
	"os"

	"github.com/voxread/voxread/internal/bootstrap"
)

func main() {
	configPath := flag.String("config", "", "path to yaml config file (falls back to CONFIG_PATH)")
	flag.Parse()

	cfg, err := bootstrap.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	bootstrap.Run(cfg)
}
