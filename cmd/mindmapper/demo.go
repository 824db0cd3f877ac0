package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dipan99/mindmapper/application/engine"
	"github.com/dipan99/mindmapper/application/ports"
	"github.com/dipan99/mindmapper/application/services"
	"github.com/dipan99/mindmapper/infrastructure/answering"
	"github.com/dipan99/mindmapper/infrastructure/config"
	"github.com/dipan99/mindmapper/infrastructure/di"
	"github.com/dipan99/mindmapper/infrastructure/search"
)

func newDemoCmd(configPath *string) *cobra.Command {
	var question string

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the climate change walkthrough and print the graph as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runDemo(cmd.Context(), cfg, question, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&question, "question", "q", engine.DemoQuery, "root question to submit")
	return cmd
}

func runDemo(ctx context.Context, cfg *config.Config, question string, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	domain := cfg.ToDomainConfig()
	domain.MaterializeDelay = 0

	tp, flush, err := di.ProvideTracing(ctx, cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer flush()

	ctx, span := tp.StartSpan(ctx, "demo.run")
	defer span.End()

	sources := search.NewStaticSearch().WithFallback(
		ports.SearchResult{URL: "https://www.ipcc.ch/report/ar6/syr/", Title: "IPCC Sixth Assessment Report"},
		ports.SearchResult{URL: "https://climate.nasa.gov/evidence/", Title: "NASA: Evidence"},
	)
	e, err := engine.New(
		engine.WithConfig(domain),
		engine.WithAnsweringService(answering.NewPlaceholderProvider()),
		engine.WithSearchService(sources),
		engine.WithTracer(tp.Tracer()),
		engine.WithSeedDemo(),
	)
	if err != nil {
		return err
	}
	defer func() { _ = e.Shutdown(context.Background()) }()

	if _, err := e.SubmitQuery(ctx, question); err != nil {
		return fmt.Errorf("submit query: %w", err)
	}
	if _, err := e.Expand(ctx, services.BulletIntent{AnswerID: "answer-1", Index: 0}); err != nil {
		return fmt.Errorf("expand: %w", err)
	}
	if _, err := e.Sources(ctx, services.BulletIntent{AnswerID: "answer-1", Index: 1}); err != nil {
		return fmt.Errorf("sources: %w", err)
	}
	if err := e.Wait(ctx); err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(e.Snapshot())
}
