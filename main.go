// Command roomcast starts the chat presence server.
//
// It supports two modes:
//  1. "serve" (default) – runs the HTTP server exposing the chat WebSocket, a read-only REST API and an /mcp HTTP endpoint
//  2. "mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Flags control host/port, log level, timestamp layout, per-connection send
// buffering and optional ngrok tunneling for easy external access during development.
// Every flag can also be set from the environment or a .env file.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/mcp-training/roomcast/api"
	"github.com/wricardo/mcp-training/roomcast/chat/broadcast"
	"github.com/wricardo/mcp-training/roomcast/chat/clock"
	"github.com/wricardo/mcp-training/roomcast/chat/lifecycle"
	"github.com/wricardo/mcp-training/roomcast/chat/presence"
	"github.com/wricardo/mcp-training/roomcast/chat/room"
	"github.com/wricardo/mcp-training/roomcast/chat/service"
	"github.com/wricardo/mcp-training/roomcast/chat/session"
	"github.com/wricardo/mcp-training/roomcast/transport/mcp"
	"github.com/wricardo/mcp-training/roomcast/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "roomcast"
)

const defaultAPIURL = "http://localhost:8080"

func main() {
	// Load .env file if it exists (ignore error if not found)
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: error loading .env file: %v\n", err)
	}

	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("roomcast exited", "error", err)
		os.Exit(1)
	}
}

// newApp builds the command tree. Flags live on the root command and are
// visible to every subcommand.
func newApp() *cli.Command {
	serve := &cli.Command{
		Name:    "serve",
		Aliases: []string{"server", "http"},
		Usage:   "Run HTTP server with chat WebSocket, REST API and MCP endpoint",
		Action:  runServe,
	}

	return &cli.Command{
		Name:    AppName,
		Usage:   "Real-time chat rooms with presence tracking",
		Version: Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "host",
				Value:   "localhost",
				Usage:   "HTTP server host",
				Sources: cli.EnvVars("HOST"),
			},
			&cli.IntFlag{
				Name:    "port",
				Value:   8080,
				Usage:   "HTTP server port",
				Sources: cli.EnvVars("PORT"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "time-layout",
				Value:   clock.DefaultLayout,
				Usage:   "Go time layout for message timestamps",
				Sources: cli.EnvVars("TIME_LAYOUT"),
			},
			&cli.IntFlag{
				Name:    "send-buffer",
				Value:   256,
				Usage:   "Outbound frames queued per connection before it is dropped",
				Sources: cli.EnvVars("SEND_BUFFER"),
			},
			&cli.StringFlag{
				Name:    "api-url",
				Value:   defaultAPIURL,
				Usage:   "External API the mcp command proxies to when reachable",
				Sources: cli.EnvVars("ROOMCAST_API_URL"),
			},
			&cli.BoolFlag{
				Name:    "ngrok",
				Usage:   "Enable ngrok tunnel",
				Sources: cli.EnvVars("NGROK_ENABLED"),
			},
			&cli.StringFlag{
				Name:    "ngrok-auth",
				Usage:   "Ngrok auth token",
				Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN"),
			},
			&cli.StringFlag{
				Name:    "ngrok-domain",
				Usage:   "Custom ngrok domain (optional)",
				Sources: cli.EnvVars("NGROK_DOMAIN"),
			},
		},
		Commands: []*cli.Command{
			serve,
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server with internal HTTP server",
				Action:  runStdioMCP,
			},
		},
		Action: runServe,
	}
}

// newLogger returns a text logger at the named level. Unknown names mean info.
func newLogger(w io.Writer, level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

// stack is one fully wired chat server.
type stack struct {
	hub      *websocket.Hub
	store    *session.Store
	presence service.PresenceService
	api      *api.Server
}

// newStack wires the session store, presence logic and WebSocket hub together.
// The hub is not running until Run is called on it.
func newStack(log *slog.Logger, timeLayout string, sendBuffer int) *stack {
	store := session.NewStore()
	view := room.NewView(store)

	hub := websocket.NewHub(log, websocket.WithSendBuffer(sendBuffer))
	stamper := clock.NewFormatter(clock.System{}, timeLayout, nil)

	coordinator := presence.NewCoordinator(store, view, hub, stamper, log)
	router := broadcast.NewRouter(store, hub, stamper)
	hub.SetHandler(lifecycle.NewHandler(hub, coordinator, router, stamper, log))

	presenceService := service.NewPresenceService(store, view)

	return &stack{
		hub:      hub,
		store:    store,
		presence: presenceService,
		api:      api.NewServer(presenceService, hub),
	}
}

// newMainRouter mounts the API at the root and the MCP JSON-RPC endpoint at /mcp.
func newMainRouter(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)

	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})

	return mainRouter
}

// runServe starts the HTTP server with the chat hub, REST API and /mcp endpoint.
// If ngrok is enabled it also provisions a public tunnel.
func runServe(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(os.Stdout, cmd.String("log-level"))
	slog.SetDefault(log)

	addr := fmt.Sprintf("%s:%d", cmd.String("host"), cmd.Int("port"))
	log.Info("starting", "app", AppName, "version", Version, "addr", addr)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	st := newStack(log, cmd.String("time-layout"), cmd.Int("send-buffer"))
	go st.hub.Run(ctx)

	mcpClient := mcp.NewClient(fmt.Sprintf("http://%s", addr))
	mainRouter := newMainRouter(st.api, mcpClient)

	httpServer := &http.Server{
		Addr:        addr,
		Handler:     mainRouter,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	var wg sync.WaitGroup
	serveErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()

		log.Info("HTTP server listening", "addr", addr)
		log.Info("endpoints",
			"websocket", fmt.Sprintf("ws://%s/ws", addr),
			"api", fmt.Sprintf("http://%s/api", addr),
			"mcp", fmt.Sprintf("http://%s/mcp", addr))

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if cmd.Bool("ngrok") {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, log, cmd.String("ngrok-auth"), cmd.String("ngrok-domain"), mainRouter)
		}()
	}

	var err error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err = <-serveErr:
		log.Error("HTTP server failed", "error", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
		log.Error("HTTP server shutdown error", "error", shutdownErr)
	}

	wg.Wait()
	log.Info("server stopped")
	return err
}

// runNgrok serves handler through an ngrok tunnel until ctx is done.
func runNgrok(ctx context.Context, log *slog.Logger, authToken, domain string, handler http.Handler) {
	if authToken == "" {
		log.Warn("ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN or NGROK_AUTH_TOKEN)")
		return
	}

	log.Info("starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(domain))
		log.Info("using custom ngrok domain", "domain", domain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(authToken))
	if err != nil {
		log.Error("failed to start ngrok tunnel", "error", err)
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			log.Error("failed to close ngrok tunnel", "error", err)
		}
	}()

	ngrokURL := tun.URL()
	log.Info("ngrok tunnel established",
		"url", ngrokURL,
		"websocket", strings.Replace(ngrokURL, "https://", "wss://", 1)+"/ws",
		"api", ngrokURL+"/api",
		"mcp", ngrokURL+"/mcp")

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		log.Error("ngrok server error", "error", err)
	}
	log.Info("ngrok tunnel closed")
}

// apiAvailable reports whether a roomcast API answers at baseURL.
func apiAvailable(baseURL string) bool {
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(strings.TrimRight(baseURL, "/") + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCP runs an MCP stdio server. It reuses the API at --api-url when one
// answers; otherwise it starts an internal server on a random loopback port.
// Logs go to stderr so stdout stays reserved for the protocol.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	log := newLogger(os.Stderr, cmd.String("log-level"))
	slog.SetDefault(log)

	baseURL := cmd.String("api-url")
	log.Info("checking for external API server", "url", baseURL)

	if apiAvailable(baseURL) {
		log.Info("external API server found, using it for MCP", "url", baseURL)
	} else {
		log.Info("no external API server found, starting internal HTTP server")

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		st := newStack(log, cmd.String("time-layout"), cmd.Int("send-buffer"))
		go st.hub.Run(ctx)

		httpServer := &http.Server{Handler: st.api}
		defer httpServer.Close()

		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error("internal HTTP server error", "error", err)
			}
		}()

		baseURL = fmt.Sprintf("http://%s", listener.Addr().String())
		log.Info("internal HTTP server started", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	log.Info("MCP stdio server ready", "api", baseURL)

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}
