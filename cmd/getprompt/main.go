package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joseph-ayodele/elsai-console/internal/app"
	"github.com/joseph-ayodele/elsai-console/internal/common"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		name    = flag.String("name", "", "prompt name (default sample)")
		env     = flag.String("env", "", "environment: Production or Development (default from PEZZO_ENVIRONMENT)")
		server  = flag.String("server", "", "prompt server URL (default from PEZZO_SERVER_URL)")
		project = flag.String("project", "", "project id (default from PEZZO_PROJECT_ID)")
	)
	flag.Parse()

	cfg, err := app.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		return 2
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		return 1
	}
	defer func() { _ = a.Close() }()

	req := a.Prompts.Defaults()
	if *name != "" {
		req.Name = *name
	}
	if *env != "" {
		req.Environment = *env
	}
	if *server != "" {
		req.ServerURL = *server
	}
	if *project != "" {
		req.ProjectID = *project
	}

	p, err := a.Prompts.Fetch(ctx, req)
	if err != nil {
		if common.SeverityOf(err) == common.SeverityWarning {
			fmt.Fprintln(os.Stderr, common.UserMessage(err))
			return 3
		}
		fmt.Fprintf(os.Stderr, "Error fetching prompt: %s\n", common.UserMessage(err))
		return 1
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, p.Raw, "", "  "); err != nil {
		buf.Reset()
		buf.Write(p.Raw)
	}
	fmt.Println(buf.String())
	return 0
}
