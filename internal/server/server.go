// Package server exposes HID devices as Model Context Protocol tools.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/mj1618/hidbridge/internal/callback"
	"github.com/mj1618/hidbridge/internal/hid"
	"github.com/mj1618/hidbridge/internal/platform"
	"github.com/mj1618/hidbridge/internal/version"
)

// Config holds MCP server configuration.
type Config struct {
	Transport string
	Port      int
	CacheTTL  time.Duration
	// ReadTimeout bounds read_reports when the caller gives none.
	ReadTimeout time.Duration
}

// Server wraps the MCP server with the HID provider, a standing manager
// and the device cache.
type Server struct {
	provider   *platform.Provider
	providerMu sync.Mutex
	cache      *DeviceCache
	cfg        Config
	log        *slog.Logger

	manager *hid.Manager
	tokens  []*callback.Token
	cancel  context.CancelFunc

	mcp *mcpserver.MCPServer
}

// New creates a server with all hidbridge tools registered. The manager
// watching for arrivals runs until Close.
func New(provider *platform.Provider, cfg Config) (*Server, error) {
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 2 * time.Second
	}
	s := &Server{
		provider: provider,
		cache:    NewDeviceCache(cfg.CacheTTL),
		cfg:      cfg,
		log:      slog.Default().With("component", "server"),
	}
	if err := s.watch(); err != nil {
		return nil, err
	}

	s.mcp = mcpserver.NewMCPServer(
		"hidbridge",
		version.Version,
		mcpserver.WithToolCapabilities(false),
	)
	s.registerTools()
	return s, nil
}

// watch schedules a manager matching every device so that arrivals and
// removals invalidate the cache.
func (s *Server) watch() error {
	m, err := hid.NewManager(s.provider.HID, hid.ManagerOptionNone)
	if err != nil {
		return fmt.Errorf("create manager: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	rl := s.provider.StartRunLoop(ctx, "mcp-manager")
	if err := m.Schedule(rl, hid.DefaultRunLoopMode); err != nil {
		cancel()
		return err
	}
	invalidate := func(d *hid.Device, err error) {
		if err != nil {
			s.log.Debug("device notification failed", "error", err)
		}
		s.cache.InvalidateAll()
	}
	arrived, err := m.RegisterDeviceMatchingCallback(invalidate)
	if err != nil {
		cancel()
		return err
	}
	removed, err := m.RegisterDeviceRemovalCallback(invalidate)
	if err != nil {
		arrived.Release()
		cancel()
		return err
	}
	m.SetDeviceMatching(nil)

	s.manager = m
	s.tokens = []*callback.Token{arrived, removed}
	s.cancel = cancel
	return nil
}

// Close stops the manager and releases its callbacks.
func (s *Server) Close() error {
	for _, t := range s.tokens {
		t.Release()
	}
	s.tokens = nil
	if s.cancel != nil {
		s.cancel()
	}
	if s.manager != nil {
		return s.manager.Release()
	}
	return nil
}

// Serve starts the MCP server with the configured transport.
func (s *Server) Serve() error {
	switch s.cfg.Transport {
	case "stdio", "":
		return mcpserver.ServeStdio(s.mcp)
	case "streamable-http":
		httpServer := mcpserver.NewStreamableHTTPServer(s.mcp)
		return httpServer.Start(fmt.Sprintf(":%d", s.cfg.Port))
	default:
		return fmt.Errorf("unsupported transport: %s (use stdio or streamable-http)", s.cfg.Transport)
	}
}

func (s *Server) registerTools() {
	// list_devices
	s.mcp.AddTool(
		mcp.NewTool("list_devices",
			mcp.WithDescription("List connected HID devices with vendor, product, usage and report sizes"),
			mcp.WithString("name", mcp.Description("Filter by product or manufacturer substring")),
			mcp.WithNumber("vendor", mcp.Description("Vendor ID")),
			mcp.WithNumber("product", mcp.Description("Product ID")),
			mcp.WithNumber("usage-page", mcp.Description("Primary usage page (1 = generic desktop)")),
			mcp.WithNumber("usage", mcp.Description("Primary usage (2 = mouse, 6 = keyboard)")),
		),
		s.handleListDevices,
	)

	// device_properties
	s.mcp.AddTool(
		mcp.NewTool("device_properties",
			mcp.WithDescription("Read the well-known properties of a HID device, or a single property by key"),
			mcp.WithString("device", mcp.Required(), mcp.Description("Device registry ID, e.g. 0x100000a01")),
			mcp.WithString("key", mcp.Description("Property key (e.g. Product, MaxInputReportSize)")),
		),
		s.handleDeviceProperties,
	)

	// get_report
	s.mcp.AddTool(
		mcp.NewTool("get_report",
			mcp.WithDescription("Read a feature, input or output report from a HID device"),
			mcp.WithString("device", mcp.Required(), mcp.Description("Device registry ID")),
			mcp.WithString("type", mcp.Description("Report type: feature (default), input, output")),
			mcp.WithNumber("id", mcp.Description("Report ID (0 if the device does not use report IDs)")),
			mcp.WithNumber("size", mcp.Description("Buffer size in bytes (default: the device's max report size)")),
		),
		s.handleGetReport,
	)

	// set_report
	s.mcp.AddTool(
		mcp.NewTool("set_report",
			mcp.WithDescription("Send a feature or output report to a HID device"),
			mcp.WithString("device", mcp.Required(), mcp.Description("Device registry ID")),
			mcp.WithString("type", mcp.Description("Report type: output (default) or feature")),
			mcp.WithNumber("id", mcp.Description("Report ID")),
			mcp.WithString("data", mcp.Required(), mcp.Description("Payload as hex, e.g. '03 01 02'")),
		),
		s.handleSetReport,
	)

	// read_reports
	s.mcp.AddTool(
		mcp.NewTool("read_reports",
			mcp.WithDescription("Collect input reports from a HID device until count reports arrive or the timeout expires"),
			mcp.WithString("device", mcp.Required(), mcp.Description("Device registry ID")),
			mcp.WithNumber("count", mcp.Description("Reports to collect (default 10)")),
			mcp.WithNumber("timeout-ms", mcp.Description("Stop after this many milliseconds")),
		),
		s.handleReadReports,
	)
}
