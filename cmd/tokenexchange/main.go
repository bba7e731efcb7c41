package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/backfield/gridiron/internal/auth"
	"github.com/backfield/gridiron/internal/obs"
	"github.com/backfield/gridiron/internal/repository/ea"

	"go.uber.org/zap"
)

// tokenexchange bootstraps the token file from a browser-flow authorization
// code. Open the printed login URL, authenticate, and paste the code query
// parameter from the final redirect.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		code     = flag.String("code", "", "authorization code from the redirect URL")
		out      = flag.String("out", "tokens.json", "token file to write")
		platform = flag.String("platform", "xbsx", "platform for persona selection")
		persona  = flag.String("persona", "", "persona display name or numeric id, overrides automatic selection")
		showURL  = flag.Bool("login-url", false, "print the login URL and exit")
		timeout  = flag.Duration("timeout", 15*time.Second, "request timeout")
	)
	flag.Parse()

	if *showURL {
		fmt.Println(ea.LoginURL())
		return
	}
	if *code == "" {
		fmt.Fprintln(os.Stderr, "usage: tokenexchange -code <authorization code> [-out tokens.json]")
		fmt.Fprintln(os.Stderr, "obtain a code via: tokenexchange -login-url")
		os.Exit(2)
	}

	l, err := obs.NewLogger(obs.LogConfig{Level: "info", Pretty: true, App: "gridiron/tokenexchange", Env: "dev", Ver: "dev"})
	if err != nil {
		log.Fatal(err)
	}
	zap.ReplaceGlobals(l)

	if err := run(ctx, l, *code, *out, *platform, *persona, *timeout); err != nil {
		l.Fatal("token exchange failed", zap.Error(err))
	}
}

func run(ctx context.Context, l *zap.Logger, code, out, platform, personaPick string, timeout time.Duration) error {
	oauth := ea.NewOAuthClient(ea.OAuthConfig{Timeout: timeout}, l)

	grant, err := oauth.ExchangeCode(ctx, code, ea.ExchangeOptions{})
	if err != nil {
		return err
	}
	rec := auth.RecordFromGrant(grant, time.Now())
	if err := (auth.TokenFileStore{Path: out}).Save(rec); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}

	info, err := oauth.Introspect(ctx, grant.AccessToken)
	if err != nil {
		return fmt.Errorf("introspect: %w", err)
	}
	personas, err := oauth.Personas(ctx, info.PidID, grant.AccessToken)
	if err != nil {
		return fmt.Errorf("personas: %w", err)
	}
	var (
		persona ea.Persona
		reason  string
	)
	if personaPick != "" {
		persona, err = findPersona(personas, personaPick)
		reason = "picked by flag"
	} else {
		persona, reason, err = ea.SelectPersona(personas, platform)
	}
	if err != nil {
		return err
	}

	fmt.Println("token file written")
	fmt.Printf("  path:       %s\n", out)
	fmt.Printf("  expires at: %s\n", rec.ExpiresAt.Format(time.RFC3339))
	fmt.Printf("  pid:        %s\n", info.PidID)
	fmt.Printf("  persona:    %s (%d) in %s namespace, %s\n",
		persona.DisplayName, persona.PersonaID, persona.NamespaceName, reason)
	return nil
}

// findPersona matches the -persona flag against display names first, then
// numeric persona ids.
func findPersona(personas []ea.Persona, pick string) (ea.Persona, error) {
	for _, p := range personas {
		if strings.EqualFold(p.DisplayName, pick) {
			return p, nil
		}
	}
	if id, err := strconv.ParseInt(pick, 10, 64); err == nil {
		for _, p := range personas {
			if p.PersonaID == id {
				return p, nil
			}
		}
	}
	names := make([]string, 0, len(personas))
	for _, p := range personas {
		names = append(names, fmt.Sprintf("%s (%d)", p.DisplayName, p.PersonaID))
	}
	return ea.Persona{}, fmt.Errorf("persona %q not found, have: %s", pick, strings.Join(names, ", "))
}
