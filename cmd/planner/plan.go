package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/leofalp/planner/internal/agents"
	"github.com/leofalp/planner/providers/observability"
)

func newPlanCommand(application *app) *cobra.Command {
	var render bool

	cmd := &cobra.Command{
		Use:   "plan [request]",
		Short: "Run one planning workflow",
		Long: `Runs the planning workflow once and prints the final state as indented JSON.
The request is taken from the arguments, or from standard input when none are given.`,
		Example: `  planner plan "Soạn giáo án bài Căn bậc hai cho học sinh lớp 9"
  echo "Dạy giải phương trình bậc hai" | planner plan --render`,
		RunE: func(cmd *cobra.Command, args []string) error {
			request, err := readRequest(args, cmd.InOrStdin())
			if err != nil {
				return err
			}
			return application.plan(cmd.Context(), cmd.OutOrStdout(), request, render)
		},
	}
	cmd.Flags().BoolVar(&render, "render", false, "print a formatted summary instead of JSON")
	return cmd
}

func readRequest(args []string, stdin io.Reader) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	content, err := io.ReadAll(stdin)
	if err != nil {
		return "", fmt.Errorf("read request: %w", err)
	}
	request := strings.TrimSpace(string(content))
	if request == "" {
		return "", errors.New("empty request: pass it as an argument or on standard input")
	}
	return request, nil
}

func (application *app) plan(ctx context.Context, out io.Writer, request string, render bool) error {
	service, err := application.newService()
	if err != nil {
		return err
	}

	if timeout := application.config.Server.PlanTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	runID := uuid.NewString()
	ctx = observability.ContextWithObserver(ctx, application.observer)
	application.observer.Info(ctx, "Planning run started", observability.String(observability.AttrRunID, runID))

	final, err := service.Plan(ctx, request)
	if err != nil {
		application.observer.Error(ctx, "Planning run failed",
			observability.String(observability.AttrRunID, runID),
			observability.Error(err),
		)
		return err
	}

	if render {
		renderer, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
		if err != nil {
			return fmt.Errorf("create renderer: %w", err)
		}
		text, err := renderer.Render(summaryMarkdown(final, runID))
		if err != nil {
			return fmt.Errorf("render summary: %w", err)
		}
		_, err = io.WriteString(out, text)
		return err
	}

	text, err := agents.MarshalTransport(final)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, text)
	return err
}
