package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/elsai-console/constants"
	"github.com/joseph-ayodele/elsai-console/internal/app"
	"github.com/joseph-ayodele/elsai-console/internal/common"
	"github.com/joseph-ayodele/elsai-console/internal/extract"
	"github.com/joseph-ayodele/elsai-console/internal/ingest"
)

const (
	exitOK      = 0
	exitFailed  = 1
	exitUsage   = 2
	exitWarning = 3
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

type options struct {
	backend    constants.Backend
	skipHidden bool
	xlsxDir    string
	asJSON     bool
	watch      bool
	debounce   time.Duration
}

// tally aggregates outcomes into the process exit code.
type tally struct {
	ok, warned, failed int
}

func (t *tally) add(err error) {
	switch common.SeverityOf(err) {
	case common.SeverityNone:
		t.ok++
	case common.SeverityWarning:
		t.warned++
	default:
		t.failed++
	}
}

func (t tally) exitCode() int {
	switch {
	case t.failed > 0:
		return exitFailed
	case t.warned > 0:
		return exitWarning
	default:
		return exitOK
	}
}

func main() {
	var (
		backendFlag = flag.String("backend", "", "extractor id or label, e.g. aws-textract or \"Llama Parser\" (required)")
		skipHidden  = flag.Bool("skip-hidden", true, "skip hidden files and directories")
		xlsxDir     = flag.String("xlsx", "", "also write each result as <name>.xlsx into this directory")
		asJSON      = flag.Bool("json", false, "print results as JSON lines")
		watch       = flag.Bool("watch", false, "watch the given directories and extract new files until interrupted")
		debounce    = flag.Duration("debounce", 500*time.Millisecond, "with -watch, wait this long after the last change")
	)
	flag.Usage = func() {
		printError("usage: extract -backend <id|label> [flags] <file|dir>...\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	b, err := constants.ParseBackend(*backendFlag)
	if err != nil || flag.NArg() == 0 {
		if err != nil {
			printError("%v\n", err)
		}
		flag.Usage()
		os.Exit(exitUsage)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		printError("invalid configuration: %v\n", err)
		os.Exit(exitUsage)
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		printError("startup failed: %v\n", err)
		os.Exit(exitFailed)
	}

	opts := options{
		backend:    b,
		skipHidden: *skipHidden,
		xlsxDir:    *xlsxDir,
		asJSON:     *asJSON,
		watch:      *watch,
		debounce:   *debounce,
	}
	var code int
	if opts.watch {
		code = watchDirs(ctx, a, opts, flag.Args())
	} else {
		code = runOnce(ctx, a, opts, flag.Args())
	}
	if err := a.Close(); err != nil {
		logger.Warn("close", "error", err)
	}
	stop()
	os.Exit(code)
}

func runOnce(ctx context.Context, a *app.App, opts options, args []string) int {
	files, stats, err := ingest.CollectFiles(args, opts.skipHidden)
	if err != nil {
		printError("collect: %v\n", err)
	}
	a.Logger.Info("extract.collected", "matched", stats.Matched, "skipped", stats.Skipped, "failed", stats.Failed)
	if len(files) == 0 {
		printError("no PDF or CSV files found\n")
		return exitFailed
	}

	var t tally
	for _, path := range files {
		if ctx.Err() != nil {
			break
		}
		t.add(processFile(ctx, a, opts, path, os.Stdout))
	}
	if stats.Failed > 0 {
		t.failed += stats.Failed
	}
	a.Logger.Info("extract.done", "ok", t.ok, "warnings", t.warned, "failed", t.failed)
	return t.exitCode()
}

func watchDirs(ctx context.Context, a *app.App, opts options, roots []string) int {
	events, errs, err := ingest.Watch(ctx, ingest.WatchConfig{
		Roots:      roots,
		SkipHidden: opts.skipHidden,
		Debounce:   opts.debounce,
	}, a.Logger)
	if err != nil {
		printError("watch: %v\n", err)
		return exitFailed
	}
	a.Logger.Info("extract.watching", "roots", roots, "backend", opts.backend.Label())

	var t tally
	for {
		select {
		case path, ok := <-events:
			if !ok {
				return t.exitCode()
			}
			t.add(processFile(ctx, a, opts, path, os.Stdout))
		case err, ok := <-errs:
			if ok {
				printError("watch: %v\n", err)
			}
		case <-ctx.Done():
			a.Logger.Info("extract.watch_stopped", "ok", t.ok, "warnings", t.warned, "failed", t.failed)
			return t.exitCode()
		}
	}
}

// processFile stages, dispatches and prints one file. The dispatcher removes the staged copy.
func processFile(ctx context.Context, a *app.App, opts options, path string, out io.Writer) error {
	file, err := a.Stager.StagePath(ctx, path)
	if err == nil {
		var res extract.Result
		res, err = a.Dispatcher.Dispatch(ctx, opts.backend, file)
		if err == nil {
			printResult(out, opts, path, res)
			if opts.xlsxDir != "" {
				if werr := writeWorkbook(a, opts.xlsxDir, path, res); werr != nil {
					printError("%s: write xlsx: %v\n", path, werr)
				}
			}
			return nil
		}
	}

	switch common.SeverityOf(err) {
	case common.SeverityWarning:
		printError("%s: warning: %s\n", path, common.UserMessage(err))
	default:
		printError("%s: Error during extraction: %s\n", path, common.UserMessage(err))
	}
	if opts.asJSON {
		_ = json.NewEncoder(out).Encode(map[string]any{
			"file":    path,
			"status":  common.SeverityOf(err).String(),
			"code":    common.CodeOf(err),
			"message": common.UserMessage(err),
		})
	}
	return err
}

func printResult(out io.Writer, opts options, path string, res extract.Result) {
	if opts.asJSON {
		_ = json.NewEncoder(out).Encode(map[string]any{"file": path, "status": "ok", "result": res})
		return
	}
	heading := "Extracted Text:"
	if res.Kind == extract.KindTable {
		heading = "CSV Data:"
	}
	_, _ = fmt.Fprintf(out, "== %s (%s)\n%s\n%s\n\n", path, res.Backend.Label(), heading, strings.TrimRight(res.Display(), "\n"))
}

func writeWorkbook(a *app.App, dir, path string, res extract.Result) error {
	b, err := a.Export.ResultXLSX(res)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return os.WriteFile(filepath.Join(dir, base+".xlsx"), b, 0o644)
}
