package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"debatebet/internal/auth"
	"debatebet/internal/bot"
	"debatebet/internal/handlers"
	"debatebet/internal/service"

	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, refund worker and Telegram integration",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, store, engine, err := openEngine()
	if err != nil {
		return err
	}
	defer store.Close()
	log.Printf("Database opened at: %s", cfg.Database.Path)

	hub := service.NewHub(0)
	emitters := service.MultiEmitter{hub}

	if cfg.Telegram.Token != "" && cfg.Telegram.ChannelID != "" {
		sender, err := service.NewTelegramSender(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		emitters = append(emitters, service.NewNotificationService(sender, cfg.Telegram.ChannelID, engine))
		log.Printf("Broadcasting events to channel %s", cfg.Telegram.ChannelID)
	}
	engine.SetEmitter(emitters)

	if cfg.Worker.Enabled {
		worker := service.NewRefundWorker(engine, cfg.Worker.Interval)
		worker.Start()
		defer worker.Stop()
	}

	if cfg.Telegram.Token != "" {
		b, err := bot.New(cfg.Telegram.Token, engine, cfg.Telegram.WebAppURL)
		if err != nil {
			return err
		}
		go b.Start()
		defer b.Stop()
	}

	if cfg.Auth.Secret == "" {
		log.Printf("Warning: auth.secret is not set, every signed request will be rejected")
	}
	validator := auth.NewValidator(cfg.Auth.Secret, cfg.Auth.MaxAge)

	h, err := handlers.NewHandler(engine, hub, cfg.Cache.Size, cfg.Engine.DefaultFeeBps)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:           h.Router(validator),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-quit:
	}

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
