package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/mbeckett/TuneVault/internal"
	"github.com/mbeckett/TuneVault/pkg/logger"
)

var log = logger.Get("Main")

// main is the entry point to the program; load the user configuration,
// construct the server, and run it until interrupted.
func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (environment variables take precedence)")
	verbose := flag.Bool("verbose", false, "enable verbose logging output")
	flag.Parse()

	if *verbose {
		logger.SetMinLoggingLevel(logger.VERBOSE.Level())
	}

	config := internal.TuneVaultConfig{}
	if *configPath != "" {
		if err := config.LoadFromFile(*configPath); err != nil {
			log.Fatalf("%s\n", err.Error())
			os.Exit(1)
		}
	} else if err := config.LoadFromEnv(); err != nil {
		log.Fatalf("%s\n", err.Error())
		os.Exit(1)
	}

	if err := config.Validate(); err != nil {
		log.Fatalf("%s\n", err.Error())
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	exitChannel := make(chan os.Signal, 1)
	signal.Notify(exitChannel, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-exitChannel
		log.Infof("Interrupt detected! Shutting down...\n")
		cancel()
	}()

	if err := internal.New(config).Run(ctx); err != nil {
		log.Fatalf("TuneVault exited with error: %s\n", err.Error())
		os.Exit(1)
	}
}
