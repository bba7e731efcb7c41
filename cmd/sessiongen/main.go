package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/backfield/gridiron/internal/auth"
	"github.com/backfield/gridiron/internal/blaze"
	config "github.com/backfield/gridiron/internal/config/sessiongen"
	"github.com/backfield/gridiron/internal/obs"
	"github.com/backfield/gridiron/internal/repository/ea"

	"go.uber.org/zap"
)

// sessiongen mints one fresh session ticket and merges it into the shared
// session context file, refreshing the access token on the way if needed.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfgPath := flag.String("config", "", "path to the sessiongen yaml config")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal(err)
	}
	l, err := obs.NewLogger(cfg.Log.AsLoggerConfig())
	if err != nil {
		log.Fatal(err)
	}
	zap.ReplaceGlobals(l)

	if err := run(ctx, cfg, l); err != nil {
		l.Fatal("session generation failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, l *zap.Logger) error {
	tokenStore := auth.TokenFileStore{Path: cfg.Auth.TokensPath}
	rec, err := tokenStore.Load()
	if err != nil {
		return fmt.Errorf("load token record: %w", err)
	}
	oauth := ea.NewOAuthClient(ea.OAuthConfig{Timeout: cfg.EA.Timeout}, l)
	tokens := auth.NewTokenLifecycle(auth.TokenConfig{SafetyMargin: cfg.Auth.SafetyMargin}, rec, oauth, tokenStore, l)

	ids := blaze.NewIdentifiers(cfg.Madden.Year, cfg.Madden.Platform)
	wal := ea.NewWALClient(ea.WALConfig{
		BaseURL:     cfg.EA.WALBase,
		BlazeHeader: ids.BlazeHeader(),
		ProductName: ids.ProductName(),
		Timeout:     cfg.EA.Timeout,
		InsecureTLS: cfg.EA.InsecureTLS,
	}, l)

	ticketStore := auth.SessionContextFile{Path: cfg.Auth.SessionContextPath}
	pool := auth.NewTicketPool(auth.PoolConfig{}, tokens, wal, ticketStore, l)

	t, err := pool.Mint(ctx, true)
	if err != nil {
		return err
	}

	fmt.Println("session ticket minted")
	fmt.Printf("  blaze service: %s\n", ids.BlazeHeader())
	fmt.Printf("  blaze id:      %d\n", t.BlazeID)
	fmt.Printf("  persona:       %s (%d)\n", t.DisplayName, t.PersonaID)
	fmt.Printf("  context file:  %s\n", cfg.Auth.SessionContextPath)
	return nil
}
