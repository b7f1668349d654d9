package main

import (
	"Go2NetPeriod/internal/config"
	"Go2NetPeriod/internal/diagram"
	"Go2NetPeriod/internal/engine/analyzer"
	"Go2NetPeriod/internal/factory"
	"Go2NetPeriod/internal/input"
	"Go2NetPeriod/internal/model"
	_ "Go2NetPeriod/internal/publish" // Registers the nats and kafka publishers
	"Go2NetPeriod/internal/report"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:      "pa-analyzer",
		Usage:     "analyze the dominant peers of labeled periods in a capture log",
		ArgsUsage: "<log> <index> [local-ip]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to the YAML config file",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "report file (overrides output.report_path)",
			},
			&cli.StringFlag{
				Name:  "diagrams",
				Usage: "diagram directory (overrides output.diagram_dir)",
			},
			&cli.BoolFlag{
				Name:  "plot",
				Usage: "render packet size and time diff diagrams",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "activity state label of the capture: active or idle",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "number of periods analyzed concurrently",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "enable debug logging",
			},
		},
		Action: analyze,
	}
}

// loadConfig reads the config file, if any, and applies the flag overrides.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := config.Default()
	if path := c.String("config"); path != "" {
		var err error
		if cfg, err = config.LoadConfig(path); err != nil {
			return nil, err
		}
	}

	if c.IsSet("output") {
		cfg.Output.ReportPath = c.String("output")
	}
	if c.IsSet("diagrams") {
		cfg.Output.DiagramDir = c.String("diagrams")
	}
	if c.IsSet("plot") {
		cfg.Output.Plot = c.Bool("plot")
	}
	if c.IsSet("state") {
		cfg.Analysis.State = c.String("state")
	}
	if c.IsSet("workers") {
		cfg.Analysis.Workers = c.Int("workers")
	}
	if c.NArg() >= 3 {
		cfg.Analysis.LocalAddress = c.Args().Get(2)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func analyze(c *cli.Context) error {
	if c.NArg() < 2 || c.NArg() > 3 {
		return cli.Exit(fmt.Sprintf("usage: %s %s", c.App.Name, c.App.ArgsUsage), 2)
	}
	if c.Bool("verbose") {
		log.SetLevel(log.DebugLevel)
	}

	// 1. Load configuration
	cfg, err := loadConfig(c)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Analysis.LocalAddress == "" {
		return cli.Exit("local address missing: pass it as the third argument or set analysis.local_address", 2)
	}
	opts, err := analyzer.OptionsFromConfig(cfg.Analysis)
	if err != nil {
		return err
	}

	// 2. Load inputs
	store, periods, err := input.Load(c.Args().Get(0), c.Args().Get(1))
	if err != nil {
		return err
	}
	log.Printf("Analyzing %d periods for local address %s.", len(periods), cfg.Analysis.LocalAddress)

	// 3. Initialize sinks
	var sink model.DiagramSink
	if cfg.Output.Plot {
		if err := diagram.Prepare(cfg.Output.DiagramDir); err != nil {
			return err
		}
		if sink, err = diagram.NewPNGSink(cfg.Output.DiagramDir); err != nil {
			return err
		}
	}

	publishers, err := factory.Create(cfg)
	if err != nil {
		return err
	}
	defer func() {
		for _, p := range publishers {
			if err := p.Close(); err != nil {
				log.Warnf("Failed to close publisher: %v", err)
			}
		}
	}()

	writer, err := report.NewFileWriter(cfg.Output.ReportPath)
	if err != nil {
		return err
	}

	// 4. Run
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res, err := analyzer.New(opts, writer, sink, publishers, nil).Run(ctx, store, periods, cfg.Analysis.LocalAddress)
	if err != nil {
		writer.Discard()
		return err
	}
	if err := writer.Close(); err != nil {
		return err
	}

	log.Printf("Report written to %s (run %s, %d groups).", cfg.Output.ReportPath, res.RunID, res.Groups)
	return nil
}
