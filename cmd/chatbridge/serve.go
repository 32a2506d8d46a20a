package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/skosovsky/chatbridge/server"
)

const serveLongDesc string = `Start the HTTP server.

Endpoints:
  GET  /healthz
  GET  /v1/presets
  POST /v1/chat    {"messages":[...],"options":{...},"preset":"id","stream":false}

Streamed answers are NDJSON: {"role","delta"} lines, then {"done":true}.`

const serveShortDesc string = "Serve chat requests over HTTP"

type serveCommander struct {
	root *rootCommander
	addr string
}

func newServeCmd(root *rootCommander) *cobra.Command {
	cmder := &serveCommander{root: root}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd.Context())
		},
	}

	cmd.Flags().StringVarP(&cmder.addr, "addr", "a", "", "Listen address (overrides server.addr)")

	return cmd
}

func (c *serveCommander) run(ctx context.Context) error {
	cfg, logger := c.root.cfg, c.root.logger
	client, err := newClient(ctx, cfg, logger)
	if err != nil {
		return err
	}

	addr := cfg.Server.Addr
	if c.addr != "" {
		addr = c.addr
	}
	opts := []server.Option{server.WithAddr(addr), server.WithLogger(logger)}

	reg, err := newPresets(cfg, logger)
	if err != nil {
		return err
	}
	if reg != nil {
		defer func() { _ = reg.Close() }()
		opts = append(opts, server.WithPresets(reg))
	}

	srv, err := server.New(client, opts...)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}
