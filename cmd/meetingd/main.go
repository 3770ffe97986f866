package main

import (
	"fmt"
	"os"

	"github.com/devbydaniel/meetingd/config"
	"github.com/devbydaniel/meetingd/internal/cli"
	"github.com/devbydaniel/meetingd/internal/output"
)

func main() {
	if err := run(); err != nil {
		formatter := output.NewFormatter(os.Stderr)
		formatter.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	deps := &cli.Dependencies{
		Config: cfg,
	}

	return cli.NewRootCmd(deps).Execute()
}
