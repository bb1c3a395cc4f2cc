package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/finkeeper/internal/buildinfo"
	"github.com/dmitrijs2005/finkeeper/internal/client/cli"
	"github.com/dmitrijs2005/finkeeper/internal/client/config"
)

func main() {

	fmt.Fprintln(os.Stdout, "finkeeper", buildinfo.String())

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(ctx, cfg)

	if err != nil {
		log.Fatalf("%v", err)
	}

	if err := app.Run(ctx); err != nil {
		log.Fatalf("%v", err)
	}
}
