// Command readme-2048 serves a 2048 board that is played from a GitHub README.
//
// Commands:
//  1. "server" (default) runs the HTTP server: README click links, REST API,
//     WebSocket updates and an /mcp HTTP endpoint
//  2. "mcp" runs an MCP stdio server and spins up an internal HTTP API if none
//     is available
//  3. "play" plays a board in the terminal
//  4. "validate" checks the game configurations in a directory
//
// Every flag can also be set through the environment (see --help) or a .env
// file, with optional ngrok tunneling for easy external access.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"

	"github.com/wricardo/readme-2048/api"
	"github.com/wricardo/readme-2048/game/config"
	"github.com/wricardo/readme-2048/game/publish"
	"github.com/wricardo/readme-2048/game/rounds"
	"github.com/wricardo/readme-2048/game/service"
	"github.com/wricardo/readme-2048/game/session"
	"github.com/wricardo/readme-2048/logging"
	"github.com/wricardo/readme-2048/transport/mcp"
	"github.com/wricardo/readme-2048/transport/websocket"
	"github.com/wricardo/readme-2048/validate"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "README 2048"
)

const (
	sessionMaxAge       = 24 * time.Hour
	sessionCleanupEvery = time.Hour
	filesystemSyncEvery = 5 * time.Second
)

// settings is the resolved configuration shared by every command
type settings struct {
	Host           string
	Port           int
	ConfigDir      string
	SessionsDir    string
	RoundsDSN      string
	ServerURL      string
	GitHubURL      string
	GitHubToken    string
	GitHubRepo     string
	GitHubBranch   string
	ReadmePath     string
	ReadmeFile     string
	ReadmeTemplate string
	LogFile        string
	Debug          bool
	Ngrok          bool
	NgrokAuth      string
	NgrokDomain    string
}

func (s settings) addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// publicURL is the base URL README arrows link to
func (s settings) publicURL() string {
	if s.ServerURL != "" {
		return s.ServerURL
	}
	return "http://" + s.addr()
}

func settingsFrom(cmd *cli.Command) settings {
	return settings{
		Host:           cmd.String("host"),
		Port:           int(cmd.Int("port")),
		ConfigDir:      cmd.String("config-dir"),
		SessionsDir:    cmd.String("sessions-dir"),
		RoundsDSN:      cmd.String("rounds-dsn"),
		ServerURL:      cmd.String("server-url"),
		GitHubURL:      cmd.String("github-url"),
		GitHubToken:    cmd.String("github-token"),
		GitHubRepo:     cmd.String("github-repo"),
		GitHubBranch:   cmd.String("github-branch"),
		ReadmePath:     cmd.String("readme-path"),
		ReadmeFile:     cmd.String("readme-file"),
		ReadmeTemplate: cmd.String("readme-template"),
		LogFile:        cmd.String("log-file"),
		Debug:          cmd.Bool("debug"),
		Ngrok:          cmd.Bool("ngrok"),
		NgrokAuth:      cmd.String("ngrok-auth"),
		NgrokDomain:    cmd.String("ngrok-domain"),
	}
}

func newApp() *cli.Command {
	return &cli.Command{
		Name:    "readme-2048",
		Usage:   "Play 2048 from a GitHub README",
		Version: Version,
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "port", Value: 8080, Usage: "HTTP server port", Sources: cli.EnvVars("PORT")},
			&cli.StringFlag{Name: "host", Value: "localhost", Usage: "HTTP server host", Sources: cli.EnvVars("HOST")},
			&cli.StringFlag{Name: "config-dir", Value: "configs", Usage: "Directory containing game configurations", Sources: cli.EnvVars("CONFIG_DIR")},
			&cli.StringFlag{Name: "sessions-dir", Value: "sessions", Usage: "Directory session files are saved to", Sources: cli.EnvVars("SESSIONS_DIR")},
			&cli.StringFlag{Name: "rounds-dsn", Value: "rounds.db", Usage: "Round store: memory, a SQLite path or a postgres:// URL", Sources: cli.EnvVars("ROUNDS_DSN")},
			&cli.StringFlag{Name: "server-url", Usage: "Public base URL used in README links (defaults to http://host:port)", Sources: cli.EnvVars("SERVER_URL")},
			&cli.StringFlag{Name: "github-url", Usage: "Page players are redirected to after a click", Sources: cli.EnvVars("GITHUB_URL")},
			&cli.StringFlag{Name: "github-token", Usage: "Token used to commit the README", Sources: cli.EnvVars("GITHUB_TOKEN")},
			&cli.StringFlag{Name: "github-repo", Usage: "owner/name of the repository holding the README", Sources: cli.EnvVars("GITHUB_REPO")},
			&cli.StringFlag{Name: "github-branch", Value: "main", Usage: "Branch the README is committed to", Sources: cli.EnvVars("GITHUB_BRANCH")},
			&cli.StringFlag{Name: "readme-path", Value: "README.md", Usage: "Path of the README inside the repository", Sources: cli.EnvVars("README_PATH")},
			&cli.StringFlag{Name: "readme-file", Usage: "Local file the README is also written to", Sources: cli.EnvVars("README_FILE")},
			&cli.StringFlag{Name: "readme-template", Usage: "Custom README template (text/template)", Sources: cli.EnvVars("README_TEMPLATE")},
			&cli.StringFlag{Name: "log-file", Usage: "Also write logs to this rolling file", Sources: cli.EnvVars("LOG_FILE")},
			&cli.BoolFlag{Name: "debug", Usage: "Enable debug logging", Sources: cli.EnvVars("DEBUG")},
			&cli.BoolFlag{Name: "ngrok", Usage: "Enable ngrok tunnel", Sources: cli.EnvVars("NGROK_ENABLED")},
			&cli.StringFlag{Name: "ngrok-auth", Usage: "Ngrok auth token", Sources: cli.EnvVars("NGROK_AUTHTOKEN", "NGROK_AUTH_TOKEN")},
			&cli.StringFlag{Name: "ngrok-domain", Usage: "Custom ngrok domain (optional)", Sources: cli.EnvVars("NGROK_DOMAIN")},
		},
		Action: runServer,
		Commands: []*cli.Command{
			{
				Name:   "server",
				Usage:  "Run HTTP server with README links, API, WebSocket, and MCP endpoint",
				Action: runServer,
			},
			{
				Name:    "mcp",
				Aliases: []string{"stdio-mcp", "mcp-stdio"},
				Usage:   "Run MCP stdio server, with an internal HTTP server if none is running",
				Action:  runStdioMCP,
			},
			{
				Name:  "play",
				Usage: "Play a board in the terminal",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "config", Value: config.DefaultConfigName, Usage: "Configuration name or JSON file to play"},
					&cli.Int64Flag{Name: "seed", Usage: "Random seed (0 uses the clock)"},
				},
				Action: runPlay,
			},
			{
				Name:      "validate",
				Usage:     "Validate the game configurations in a directory",
				ArgsUsage: "[dir]",
				Action:    runValidate,
			},
			{
				Name:  "version",
				Usage: "Show version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Fprintf(cmd.Root().Writer, "%s v%s\n", AppName, Version)
					return nil
				},
			},
		},
	}
}

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if envErr != nil && !os.IsNotExist(envErr) {
		fmt.Fprintf(os.Stderr, "Warning: Error loading .env file: %v\n", envErr)
	}

	if err := newApp().Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// services bundles everything initializeServices wires together
type services struct {
	Game        service.GameService
	Sessions    *session.Manager
	Persistence session.SessionPersistence
	Rounds      rounds.Tracker
}

func (s *services) Close() error {
	var errs []error
	if err := s.Sessions.SaveAllSessions(); err != nil {
		errs = append(errs, err)
	}
	if err := s.Rounds.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// buildPublisher returns the publishers the settings ask for
func buildPublisher(cfg settings) publish.Publisher {
	var publishers publish.MultiPublisher
	if cfg.ReadmeFile != "" {
		publishers = append(publishers, publish.NewFilePublisher(cfg.ReadmeFile))
	}
	if cfg.GitHubRepo != "" && cfg.GitHubToken != "" {
		publishers = append(publishers, publish.NewGitHubPublisher(cfg.GitHubRepo, cfg.ReadmePath, cfg.GitHubBranch, cfg.GitHubToken))
	}
	if len(publishers) == 0 {
		return publish.NopPublisher{}
	}
	return publishers
}

// initializeServices wires configs, sessions, rounds and publishing into the
// game service
func initializeServices(ctx context.Context, cfg settings, logger *zap.SugaredLogger) (*services, error) {
	// Config manager first, persistence needs it
	configManager, err := config.NewManager(cfg.ConfigDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}

	persistence, err := session.NewFilePersistence(cfg.SessionsDir, configManager)
	if err != nil {
		return nil, fmt.Errorf("failed to create session persistence: %w", err)
	}

	sessionManager := session.NewManagerWithPersistence(persistence, logger)
	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Warnw("Failed to load persisted sessions", "error", err)
	}

	tracker, err := rounds.Open(ctx, cfg.RoundsDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open round store: %w", err)
	}

	var renderer service.ReadmeRenderer
	if cfg.ReadmeTemplate != "" {
		custom, err := publish.NewRenderer(cfg.ReadmeTemplate)
		if err != nil {
			tracker.Close()
			return nil, fmt.Errorf("failed to load readme template: %w", err)
		}
		renderer = custom
	}

	gameService, err := service.NewGameService(sessionManager, configManager, tracker, service.Options{
		Renderer:  renderer,
		Publisher: buildPublisher(cfg),
		ServerURL: cfg.publicURL(),
		Logger:    logger,
	})
	if err != nil {
		tracker.Close()
		return nil, err
	}

	return &services{
		Game:        gameService,
		Sessions:    sessionManager,
		Persistence: persistence,
		Rounds:      tracker,
	}, nil
}

// sessionCleanupRoutine periodically drops sessions that have not been
// accessed within maxAge from memory
func sessionCleanupRoutine(ctx context.Context, manager *session.Manager, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(sessionCleanupEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := manager.CleanupExpiredSessions(sessionMaxAge); removed > 0 {
				logger.Infow("Cleaned up expired sessions", "count", removed)
			}
		}
	}
}

// syncWithFilesystem removes sessions from memory whose files were deleted and
// returns how many were pruned
func syncWithFilesystem(manager *session.Manager, persistence session.SessionPersistence, logger *zap.SugaredLogger) int {
	pruned := 0
	for _, s := range manager.List() {
		if persistence.Exists(s.ID) {
			continue
		}
		if err := manager.DeleteFromMemory(s.ID); err == nil {
			pruned++
			logger.Infow("Pruned session from memory (file deleted)", "session", s.ID)
		}
	}
	return pruned
}

func filesystemSyncRoutine(ctx context.Context, manager *session.Manager, persistence session.SessionPersistence, logger *zap.SugaredLogger) {
	ticker := time.NewTicker(filesystemSyncEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			syncWithFilesystem(manager, persistence, logger)
		}
	}
}

func newLogger(cfg settings) (*zap.SugaredLogger, func(), error) {
	return logging.New(logging.Options{FilePath: cfg.LogFile, Debug: cfg.Debug})
}

// newHandler mounts the API server at the root and the MCP endpoint at /mcp
func newHandler(apiServer http.Handler, mcpClient *mcp.Client) http.Handler {
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

// runServer starts the HTTP server with README links, REST API, WebSocket hub
// and the /mcp endpoint. With ngrok enabled the same handler is also served
// through a public tunnel.
func runServer(ctx context.Context, cmd *cli.Command) error {
	cfg := settingsFrom(cmd)

	logger, closeLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLogger()

	logger.Infow("Starting server", "app", AppName, "version", Version)

	svc, err := initializeServices(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.Warnw("Failed to close services", "error", err)
		}
	}()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		sessionCleanupRoutine(ctx, svc.Sessions, logger)
	}()
	go func() {
		defer wg.Done()
		filesystemSyncRoutine(ctx, svc.Sessions, svc.Persistence, logger)
	}()

	hub := websocket.NewHub(logger)
	go func() {
		defer wg.Done()
		hub.Run(ctx)
	}()

	addr := cfg.addr()
	apiServer := api.NewServer(svc.Game, hub, api.Options{GitHubURL: cfg.GitHubURL, Logger: logger})
	handler := newHandler(apiServer, mcp.NewClient("http://"+addr))

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Infow("HTTP server listening", "addr", addr)
		logger.Infof("README click: http://%s/click/{1..4}", addr)
		logger.Infof("REST API: http://%s/api", addr)
		logger.Infof("WebSocket: ws://%s/ws?session=<session_id>", addr)
		logger.Infof("MCP endpoint: http://%s/mcp", addr)

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server failed: %w", err)
		}
	}()

	if cfg.Ngrok {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runNgrok(ctx, cfg, handler, logger)
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutting down...")
	case runErr = <-errCh:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("HTTP server shutdown error", "error", err)
	}

	wg.Wait()
	logger.Info("Server stopped")
	return runErr
}

// runNgrok serves handler through an ngrok tunnel until ctx is done
func runNgrok(ctx context.Context, cfg settings, handler http.Handler, logger *zap.SugaredLogger) {
	if cfg.NgrokAuth == "" {
		logger.Warn("Ngrok enabled but no auth token provided (use --ngrok-auth or NGROK_AUTHTOKEN)")
		return
	}

	logger.Info("Starting ngrok tunnel...")

	var tunnel ngrokConfig.Tunnel
	if cfg.NgrokDomain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(cfg.NgrokDomain))
		logger.Infow("Using custom ngrok domain", "domain", cfg.NgrokDomain)
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(cfg.NgrokAuth))
	if err != nil {
		logger.Errorw("Failed to start ngrok tunnel", "error", err)
		return
	}

	ngrokURL := tun.URL()
	logger.Infow("Ngrok tunnel established", "url", ngrokURL)
	logger.Infof("  README click (ngrok): %s/click/{1..4}", ngrokURL)
	logger.Infof("  MCP endpoint (ngrok): %s/mcp", ngrokURL)
	if cfg.ServerURL == "" {
		logger.Warn("README links still point at the local address; set SERVER_URL to the tunnel URL")
	}

	tunnelServer := &http.Server{Handler: handler}
	go func() {
		<-ctx.Done()
		tunnelServer.Close()
	}()

	if err := tunnelServer.Serve(tun); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Warnw("Ngrok server error", "error", err)
	}
	logger.Info("Ngrok tunnel closed")
}

// externalAPIAvailable reports whether a server already answers at baseURL
func externalAPIAvailable(ctx context.Context, baseURL string) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/healthz", nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// runStdioMCP runs an MCP stdio server. It reuses a server on the configured
// port when one answers; otherwise it starts an internal HTTP API bound to a
// random loopback port and targets that.
func runStdioMCP(ctx context.Context, cmd *cli.Command) error {
	cfg := settingsFrom(cmd)

	// stdout carries the protocol, logs go to stderr and the log file
	logger, closeLogger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLogger()

	baseURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	logger.Infow("Checking for external API server", "url", baseURL)

	if externalAPIAvailable(ctx, baseURL) {
		logger.Infow("External API server found, using it for MCP", "url", baseURL)
	} else {
		logger.Info("No external API server found, starting internal HTTP server")

		svc, err := initializeServices(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize services: %w", err)
		}
		defer svc.Close()

		listener, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}

		hub := websocket.NewHub(logger)
		go hub.Run(ctx)

		httpServer := &http.Server{
			Handler: api.NewServer(svc.Game, hub, api.Options{GitHubURL: cfg.GitHubURL, Logger: logger}),
		}
		go func() {
			if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorw("Internal HTTP server error", "error", err)
			}
		}()
		defer httpServer.Close()

		baseURL = "http://" + listener.Addr().String()
		logger.Infow("Internal HTTP server started", "url", baseURL)
	}

	mcpClient := mcp.NewClient(baseURL)
	logger.Info("MCP stdio server ready")

	if err := server.ServeStdio(mcpClient.GetMCPServer()); err != nil {
		return fmt.Errorf("MCP stdio server error: %w", err)
	}
	return nil
}

func runValidate(ctx context.Context, cmd *cli.Command) error {
	dir := cmd.Args().First()
	if dir == "" {
		dir = cmd.String("config-dir")
	}

	results, err := validate.Dir(dir)
	if err != nil {
		return err
	}
	if !validate.Report(cmd.Root().Writer, results) {
		return errors.New("some configurations have errors")
	}
	return nil
}
