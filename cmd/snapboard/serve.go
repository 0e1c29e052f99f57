// ABOUTME: "snapboard serve": the HTTP/websocket board server with the gallery, MCP endpoint and optional mDNS advertisement.
package main

import (
	"log/slog"
	"net"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/2389-research/snapboard/discovery"
	"github.com/2389-research/snapboard/gallery"
	"github.com/2389-research/snapboard/mcpserver"
	"github.com/2389-research/snapboard/server"
	"github.com/2389-research/snapboard/web"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the board to browsers, phones and agents",
		Example: `  # Serve on the default loopback address
  snapboard serve

  # Serve the LAN with a token and announce the board over mDNS
  SNAPBOARD_AUTH_TOKEN=secret snapboard serve --bind 0.0.0.0:7780 --allow-remote --advertise`,
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

			photos, err := gallery.Open(cfg.Gallery)
			if err != nil {
				return err
			}
			defer func() { _ = photos.Close() }()

			tools, err := mcpserver.New(mcpserver.Options{
				Session: rt.session,
				Camera:  rt.camera,
				Version: version,
				Logger:  a.logger,
			})
			if err != nil {
				return err
			}

			srv, err := web.NewServer(web.ServerConfig{
				Addr:      cfg.Bind,
				Session:   rt.session,
				Gallery:   photos,
				Camera:    rt.camera,
				MCP:       tools.Handler(),
				AuthToken: cfg.AuthToken,
				Editor:    rt.editor,
				Logger:    a.logger,
			})
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", cfg.Bind)
			if err != nil {
				return err
			}
			if cfg.Advertise {
				adv, err := advertise(ln.Addr(), cfg, a.logger)
				if err != nil {
					a.logger.Warn("mDNS advertisement failed", slog.String("component", "cli"), slog.Any("err", err))
				} else {
					defer func() { _ = adv.Shutdown() }()
				}
			}
			return srv.Serve(ctx, ln)
		},
	}
	cmd.Flags().String(flagName(server.KeyBind), "127.0.0.1:7780", "Listen address")
	cmd.Flags().Bool(flagName(server.KeyAllowRemote), false, "Allow non-loopback binds (requires SNAPBOARD_AUTH_TOKEN)")
	cmd.Flags().Bool(flagName(server.KeyAdvertise), false, "Announce the board on the LAN over mDNS")
	cmd.Flags().String(flagName(server.KeyCameraDir), "", "Folder a tethered camera drops stills into")
	cmd.Flags().String(flagName(server.KeyEditProvider), "", "Image model provider: gemini or openai")
	cmd.Flags().String(flagName(server.KeyEditModel), "", "Image model name")
	return cmd
}

func advertise(addr net.Addr, cfg *server.Config, logger *slog.Logger) (*discovery.Advertiser, error) {
	_, portText, err := net.SplitHostPort(addr.String())
	if err != nil {
		return nil, err
	}
	port, err := strconv.Atoi(portText)
	if err != nil {
		return nil, err
	}
	return discovery.Advertise(discovery.Service{
		Port:    port,
		Version: version,
		Auth:    cfg.AuthToken != "",
	}, logger)
}
