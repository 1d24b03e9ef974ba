package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"vestnik/internal/api"
	"vestnik/internal/config"
	"vestnik/internal/engine"
	"vestnik/internal/prefs"
)

// slogToaster routes transient notices to the structured log when no
// rendering layer is attached.
type slogToaster struct {
	log *slog.Logger
}

func (t slogToaster) Toast(text string) {
	t.log.Info("notice", "text", text)
}

func run(ctx context.Context) error {
	configPath := flag.String("config", "", "Path to the TOML config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	client, err := api.NewClient(cfg.ServerURL, cfg.RequestTimeout)
	if err != nil {
		return err
	}

	prefStore, err := prefs.Open(cfg.PrefsDB)
	if err != nil {
		return err
	}
	defer func() { _ = prefStore.Close() }()

	logger := slog.Default()

	eng := engine.New(engine.Config{
		Client:             client,
		Prefs:              prefStore,
		Toaster:            slogToaster{log: logger},
		Logger:             logger,
		ForegroundInterval: cfg.ForegroundInterval,
		BackgroundInterval: cfg.BackgroundInterval,
		MaxUploadBytes:     cfg.MaxUploadBytes,
	})

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return eng.RunForeground(gCtx)
	})

	g.Go(func() error {
		return eng.RunBackground(gCtx)
	})

	g.Go(func() error {
		<-gCtx.Done()
		log.Println("Shutting down sync loops...")
		return nil
	})

	return g.Wait()
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("Application error: %v", err)
	}
}
