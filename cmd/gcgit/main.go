// Package main is the entry point for the gcgit CLI.
package main

import (
	"context"
	"os"

	"github.com/gocortexio/gcgit/cmd/gcgit/app"
	"github.com/gocortexio/gcgit/internal/logger"
)

func main() {
	logger.Initialize(false)

	if err := app.NewRootCmd().ExecuteContext(context.Background()); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}
