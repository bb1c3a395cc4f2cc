package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/finkeeper/internal/server"
	"github.com/dmitrijs2005/finkeeper/internal/server/auth"
	"github.com/dmitrijs2005/finkeeper/internal/server/config"
)

func main() {

	cfg := config.LoadConfig()

	if cfg.IssueToken != "" {
		if cfg.SecretKey == "" {
			log.Fatal("a secret key (-s) is required to issue tokens")
		}
		tok, err := auth.GenerateToken(cfg.IssueToken, []byte(cfg.SecretKey), cfg.TokenValidityDuration)
		if err != nil {
			log.Fatalf("%v", err)
		}
		fmt.Fprintln(os.Stdout, tok)
		return
	}

	app, err := server.NewApp(cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(context.Background()); err != nil {
		os.Exit(1)
	}
}
