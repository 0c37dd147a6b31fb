package main

import (
	"context"
	"log"
	"os"

	"github.com/reviewly/authsession/internal/buildinfo"
	"github.com/reviewly/authsession/internal/client/cli"
	"github.com/reviewly/authsession/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	app, err := cli.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}

	app.Run(ctx)
}
