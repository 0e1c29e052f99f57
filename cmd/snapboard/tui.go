// ABOUTME: "snapboard tui" and "snapboard mcp": drive the local board from the terminal or from an MCP client on stdio.
package main

import (
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/2389-research/snapboard/mcpserver"
	"github.com/2389-research/snapboard/server"
	"github.com/2389-research/snapboard/tui"
)

func newTUICmd(a *app) *cobra.Command {
	var logFile string
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Drive the board from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			// The alt screen owns stderr; logs go to a file or nowhere.
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			if logFile != "" {
				f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return err
				}
				defer func() { _ = f.Close() }()
				logger = newLogger(f, cfg.LogLevel)
			}

			ctx := cmd.Context()
			rt, err := openBoard(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			model := tui.NewAppModel(ctx, rt.session, rt.camera)
			defer model.Close()
			p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
			_, err = p.Run()
			return err
		},
	}
	cmd.Flags().StringVar(&logFile, "log-file", "", "Write logs here while the TUI runs")
	cmd.Flags().String(flagName(server.KeyCameraDir), "", "Folder a tethered camera drops stills into")
	cmd.Flags().String(flagName(server.KeyEditProvider), "", "Image model provider: gemini or openai")
	cmd.Flags().String(flagName(server.KeyEditModel), "", "Image model name")
	return cmd
}

func newMCPCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the board's MCP tools over stdio",
		Long: `Runs an MCP server on stdin/stdout so an agent can list, capture,
caption, frame, filter and edit photos on the local board.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := openBoard(ctx, cfg, a.logger)
			if err != nil {
				return err
			}
			defer func() { _ = rt.Close() }()

			tools, err := mcpserver.New(mcpserver.Options{
				Session: rt.session,
				Camera:  rt.camera,
				Version: version,
				Logger:  a.logger,
			})
			if err != nil {
				return err
			}
			return tools.RunStdio(ctx)
		},
	}
	cmd.Flags().String(flagName(server.KeyCameraDir), "", "Folder a tethered camera drops stills into")
	cmd.Flags().String(flagName(server.KeyEditProvider), "", "Image model provider: gemini or openai")
	cmd.Flags().String(flagName(server.KeyEditModel), "", "Image model name")
	return cmd
}
