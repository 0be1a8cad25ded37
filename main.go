package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/brainatlas/atlasfetch/pkg/commands"
)

func init() {
	// set global logger
	slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, nil)))
}

func main() {
	if err := commands.Execute(context.Background()); err != nil {
		slog.Error("Fatal error")
		fmt.Printf("%+v\n", err)
		os.Exit(1)
	}
}
