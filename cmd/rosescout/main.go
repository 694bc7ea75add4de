// Command rosescout screens a DNA-synthesis customer from the command line:
// it researches the customer with the configured tools and prints the
// structured risk report as JSON.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rosescout/rosescout"
	"github.com/rosescout/rosescout/config"
	"github.com/rosescout/rosescout/gemini"
	"github.com/rosescout/rosescout/logger"
	"github.com/rosescout/rosescout/screening"
	"github.com/rosescout/rosescout/toolkits/maps"
	"github.com/rosescout/rosescout/toolkits/screeninglist"
	"github.com/rosescout/rosescout/toolkits/websearch"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var profile screening.Profile

	cmd := &cobra.Command{
		Use:   "rosescout",
		Short: "Screen a DNA-synthesis customer",
		Long: `rosescout researches a customer with web search, address verification,
and sanctions-list checks, then prints a structured risk report as JSON.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), profile)
		},
	}

	cmd.Flags().StringVar(&profile.CustomerName, "name", "", "customer name")
	cmd.Flags().StringVar(&profile.Organization, "org", "", "customer organization")
	cmd.Flags().StringVar(&profile.Address, "address", "", "customer address")
	cmd.Flags().StringVar(&profile.Country, "country", "", "customer country")
	cmd.Flags().StringVar(&profile.OrderDetails, "order", "", "order details (organisms, sequences)")
	return cmd
}

func run(ctx context.Context, profile screening.Profile) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := rosescout.NewRegistry(
		rosescout.WithMaxConcurrency(cfg.MaxConcurrent * 4),
	)
	defer func() {
		if err := registry.Shutdown(context.Background()); err != nil {
			log.Warn().Err(err).Msg("registry shutdown")
		}
	}()
	if err := registerTools(registry, cfg); err != nil {
		return err
	}

	provider, err := gemini.New(ctx, gemini.Config{
		APIKey: cfg.GeminiAPIKey,
		Model:  cfg.GeminiModel,
		Logger: log,
	})
	if err != nil {
		return err
	}

	svc := screening.NewService(provider, registry, screening.ServiceConfig{
		MaxRounds:      cfg.MaxRounds,
		RoundTimeout:   cfg.RoundTimeout,
		MaxConcurrent:  cfg.MaxConcurrent,
		RequestTimeout: cfg.RequestTimeout,
		Logger:         log,
	})
	defer svc.Close()

	outcome, err := svc.Screen(ctx, profile)
	if err != nil {
		return err
	}
	if outcome.Report == nil {
		log.Error().Err(outcome.Err).Str("reason", string(outcome.Reason)).Msg("screening failed")
		if outcome.RawText != "" {
			fmt.Fprintln(os.Stderr, outcome.RawText)
		}
		return fmt.Errorf("screening ended with %s", outcome.Reason)
	}
	if len(outcome.MissingFields) > 0 {
		log.Warn().Strs("missing_fields", outcome.MissingFields).Msg("report is incomplete")
	}

	out, err := json.MarshalIndent(outcome.Report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func registerTools(registry *rosescout.Registry, cfg *config.Config) error {
	if cfg.GoogleMapsAPIKey != "" {
		mapsClient := maps.NewClient(cfg.GoogleMapsAPIKey)
		geocode, err := mapsClient.GeocodeTool()
		if err != nil {
			return err
		}
		distance, err := mapsClient.DistanceTool()
		if err != nil {
			return err
		}
		if err := registry.Register(geocode); err != nil {
			return err
		}
		if err := registry.Register(distance); err != nil {
			return err
		}
	}
	if cfg.TavilyAPIKey != "" {
		search, err := websearch.NewClient(cfg.TavilyAPIKey).Tool()
		if err != nil {
			return err
		}
		if err := registry.Register(search); err != nil {
			return err
		}
	}
	if cfg.ScreeningAPIKey != "" {
		csl, err := screeninglist.NewClient(cfg.ScreeningAPIKey).Tool()
		if err != nil {
			return err
		}
		if err := registry.Register(csl); err != nil {
			return err
		}
	}
	return nil
}
