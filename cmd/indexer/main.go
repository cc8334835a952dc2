package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/hatchmark/hatchmark/pkg/app"
	"github.com/hatchmark/hatchmark/pkg/app/indexer"
	"github.com/hatchmark/hatchmark/pkg/config"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadIndexer(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	var runner app.Runner = indexer.NewServer(cfg)
	if err := runner.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Indexer exited with error: %v\n", err)
		os.Exit(1)
	}
}
