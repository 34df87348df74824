// Package main runs the inventory dashboard command line.
package main

import (
	"context"
	"os"

	"github.com/fairyhunter13/inventory-dashboard/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
