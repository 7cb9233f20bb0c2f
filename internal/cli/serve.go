package cli

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"careline/internal/audit"
	"careline/internal/chat"
	"careline/internal/config"
	"careline/internal/llm"
	"careline/internal/mcp"
	"careline/internal/normalize"
	"careline/internal/session"
	"careline/internal/upstream"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat API and MCP server",
	RunE:  runServe,
}

var (
	serveListen  string
	serveMCPPath string
)

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "host:port to listen on (overrides config)")
	serveCmd.Flags().StringVar(&serveMCPPath, "mcp-path", "", "HTTP path for the MCP endpoint (overrides config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	logger := newLogger(os.Stderr, globalFlags.JSON, globalFlags.Quiet)

	cfg, err := config.Load(globalFlags.ConfigPath)
	if err != nil {
		exitWith(ExitConfigInvalid, "ERROR: "+err.Error())
	}
	if serveListen != "" {
		cfg.Server.ListenAddr = serveListen
	}
	if serveMCPPath != "" {
		cfg.Server.MCPPath = serveMCPPath
	}

	aliases := normalize.DefaultAliasTable()
	for field, extra := range cfg.Fields {
		aliases = aliases.Extend(normalize.FieldByName(field), extra)
	}

	var auditLog audit.Log = audit.NopLog{}
	if cfg.Audit.Path != "" {
		sqliteLog := audit.NewSQLiteLog(cfg.Audit.Path)
		if err := sqliteLog.Init(cmd.Context()); err != nil {
			exitWith(ExitConfigInvalid, "ERROR: audit database: "+err.Error())
		}
		defer sqliteLog.Close()
		auditLog = sqliteLog
	}

	fetcher := upstream.NewClient(cfg.Upstream)
	sessions := session.NewStore(cfg.Chat.HistoryMax)
	llmClient := llm.New(cfg.LLM, cfg.Chat.ContextTurns)
	svc := chat.NewService(fetcher, sessions, llmClient, aliases, auditLog, logger)

	mux := http.NewServeMux()
	chat.NewAPI(svc).Register(mux)
	mcpServer := mcp.NewServer(cfg.Server, svc, auditLog, logger)
	mux.Handle(cfg.Server.MCPPath, mcpServer.Handler())

	listener, err := net.Listen("tcp", cfg.Server.ListenAddr)
	if err != nil {
		exitWith(ExitBindFailure, "ERROR: server bind failure: "+err.Error())
	}

	logger.Info().
		Str("listen", listener.Addr().String()).
		Str("mcp_path", cfg.Server.MCPPath).
		Str("upstream", cfg.Upstream.BaseURL).
		Bool("llm", llmClient != nil).
		Msg("careline serving")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(listener) }()

	select {
	case <-ctx.Done():
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
