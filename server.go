package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"room-visualizer/common"
	"room-visualizer/internal/api"
	"room-visualizer/internal/history"
	"room-visualizer/internal/tools"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:   "room-visualizer",
	Short: "Replace the floor of a room photo with a chosen material",
	Long: `room-visualizer accepts a room photo and a flooring material, describes the
room with a vision model, segments the floor and inpaints the new material.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server (default)",
	RunE:  runServe,
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve generate_room and list_history as MCP tools over stdio",
	RunE:  runMCP,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the most recent generations",
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntP("limit", "n", history.MaxRecent, "number of records to print")
	historyCmd.Flags().Bool("json", false, "print records as JSON")
	rootCmd.AddCommand(serveCmd, mcpCmd, historyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	config, err := common.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logStartup(config)

	a, err := newApp(config)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := api.NewServer(a.pipeline, a.historyStore(), a.recorder, api.Options{
		ResponseMode:   config.ResponseMode,
		MaxUploadBytes: config.MaxUploadBytes(),
		AllowedOrigins: config.CORSAllowedOrigins,
	})

	httpServer := &http.Server{
		Addr:              config.GetServerAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		common.Infof("Server running on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	common.Info("Shutting down, draining in-flight requests")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		common.WithError(err).Warn("Graceful shutdown did not complete")
	}
	// a.Close 会等待历史记录写入完成
	return nil
}

func runMCP(cmd *cobra.Command, args []string) error {
	config, err := common.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	// stdout 用于 MCP 协议，日志不能写到 stdout
	if config.LogOutput == "stdout" {
		common.GetLogger().SetOutput(os.Stderr)
	}
	logStartup(config)

	a, err := newApp(config)
	if err != nil {
		return err
	}
	defer a.Close()

	s := server.NewMCPServer(
		"Room Visualizer MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	if err := tools.RegisterRoomTools(s, a.pipeline, a.historyStore(), a.recorder, config.MaxUploadBytes()); err != nil {
		return fmt.Errorf("failed to register room tools: %w", err)
	}

	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp server error: %w", err)
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	config, err := common.LoadConfigWithoutValidation()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !config.HistoryEnabled() {
		return fmt.Errorf("history is disabled: set DATABASE_URL")
	}

	store, err := history.OpenSQLite(config.DatabaseURL)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	records, err := store.FindRecent(cmd.Context(), history.ClampLimit(limit))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No history yet")
		return nil
	}
	for _, rec := range records {
		fmt.Fprintf(out, "[%d] %s  %s\n", rec.ID, rec.CreatedAt.Local().Format("2006-01-02 15:04:05"), rec.Material)
		fmt.Fprintf(out, "    Prompt: %s\n", common.TruncateForLog(rec.OptimizedPrompt, 120))
		if rec.ImageURL != "" {
			fmt.Fprintf(out, "    Image: %s\n", rec.ImageURL)
		}
	}
	return nil
}
