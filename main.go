package main

import (
	"context"
	"os"

	"github.com/treefix50/estate/internal/cli"
)

var version = "dev"

func main() {
	if err := cli.NewRootCommand(version).ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
