package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/mj1618/hidbridge/internal/server"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start an MCP server exposing hidbridge tools",
	Long: `Start a Model Context Protocol (MCP) server that exposes HID devices as
tools: list_devices, device_properties, get_report, set_report and
read_reports. AI agents can call tools directly without shell overhead.

Supported transports:
  stdio             Standard I/O (default, for MCP clients)
  streamable-http   Streamable HTTP transport (for remote agents)

Examples:
  hidbridge serve
  hidbridge serve --transport streamable-http --port 8080
  hidbridge --backend sim serve --cache-ttl 0`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("transport", "", "Transport: stdio, streamable-http (default from config, else stdio)")
	serveCmd.Flags().Int("port", 0, "HTTP port for streamable-http transport (default from config, else 8080)")
	serveCmd.Flags().Int("cache-ttl", -1, "Device list cache TTL in milliseconds (0 to disable; default from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	transport, _ := cmd.Flags().GetString("transport")
	if transport == "" {
		transport = appConfig.Server.Transport
	}
	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = appConfig.Server.Port
	}
	cacheTTLMs, _ := cmd.Flags().GetInt("cache-ttl")
	if cacheTTLMs < 0 {
		cacheTTLMs = appConfig.Server.CacheTTLMs
	}

	provider, err := openProvider()
	if err != nil {
		return err
	}
	cfg := server.Config{
		Transport: transport,
		Port:      port,
		CacheTTL:  time.Duration(cacheTTLMs) * time.Millisecond,
	}
	srv, err := server.New(provider, cfg)
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	startSimTraffic(ctx, provider, 500*time.Millisecond)

	return srv.Serve()
}
