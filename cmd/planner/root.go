package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/leofalp/planner/internal/agents"
	"github.com/leofalp/planner/internal/config"
	"github.com/leofalp/planner/patterns/graph"
	"github.com/leofalp/planner/providers/ai/middleware"
	"github.com/leofalp/planner/providers/ai/openai"
	"github.com/leofalp/planner/providers/observability/promobs"
	"github.com/leofalp/planner/providers/observability/slogobs"
)

// app is the state shared by the subcommands once the configuration is
// loaded.
type app struct {
	config   *config.Config
	registry *prometheus.Registry
	observer *slogobs.Observer
}

func newRootCommand() *cobra.Command {
	application := &app{}
	var configPath string

	root := &cobra.Command{
		Use:           "planner",
		Short:         "Lesson planning assistant for teachers",
		Long:          `planner turns a teacher's request into an analyzed learning objective and serves a small web page to do so.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return application.load(configPath, cmd.ErrOrStderr())
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML configuration file")

	root.AddCommand(
		newServeCommand(application),
		newPlanCommand(application),
		newSearchCommand(application),
	)
	return root
}

// load reads the configuration and sets up logging and metrics.
func (application *app) load(configPath string, logOutput io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	level, err := slogobs.ParseLevel(cfg.Log.Level)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	application.config = cfg
	application.registry = registry
	application.observer = slogobs.New(
		slogobs.WithFormat(slogobs.ParseFormat(cfg.Log.Format)),
		slogobs.WithLevel(level),
		slogobs.WithOutput(logOutput),
		slogobs.WithMetrics(promobs.New(registry)),
	)
	slog.SetDefault(application.observer.Logger())
	return nil
}

// newService wires the model provider into the planning workflow.
func (application *app) newService() (*agents.Service, error) {
	llm := application.config.LLM
	if err := llm.RequireAPIKey(); err != nil {
		return nil, err
	}

	var retry middleware.Middleware
	if llm.MaxRetries > 0 {
		retry = middleware.Retry(middleware.RetryConfig{MaxRetries: llm.MaxRetries})
	}

	provider := middleware.Wrap(openai.New(
		openai.WithModel(llm.Model),
		openai.WithTemperature(float32(llm.Temperature)),
		openai.WithMaxTokens(llm.MaxTokens),
		openai.WithTimeout(llm.Timeout),
	), retry).
		WithAPIKey(llm.APIKey).
		WithBaseURL(strings.TrimRight(llm.BaseURL, "/"))

	interpreter, err := agents.NewObjectiveInterpreter(provider)
	if err != nil {
		return nil, fmt.Errorf("create objective interpreter: %w", err)
	}

	service := agents.NewService(interpreter,
		agents.WithNodeTimeout(llm.NodeTimeout),
		agents.WithGraphOptions(graph.WithObserver(application.observer)),
	)

	// Compiled once here; every later run reuses the cached graph.
	if _, err := service.Graph(); err != nil {
		return nil, err
	}
	return service, nil
}
