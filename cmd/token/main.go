// Command token mints a bearer token for a member address using the
// server's AJO_JWT_SECRET and AJO_TOKEN_TTL.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mmynk/ajo/internal/auth"
	"github.com/mmynk/ajo/internal/config"
)

func main() {
	member := flag.String("member", "", "member address to issue the token for")
	flag.Parse()

	if *member == "" {
		fmt.Fprintln(os.Stderr, "usage: token -member <address>")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	token, err := auth.NewJWTManager(cfg.JWTSecret, cfg.TokenTTL).Generate(*member)
	if err != nil {
		slog.Error("Failed to generate token", "error", err)
		os.Exit(1)
	}
	fmt.Println(token)
}
