// cmd/qcdesk/main.go
//
// This is the entry point for the qcdesk CLI.
// When you run `qcdesk` from any directory, this is what executes.
//
// Commands:
//   qcdesk [tui]       open the inspection record list (default)
//   qcdesk export      fetch every record and write an .xlsx or .csv file
//   qcdesk stub        serve an in-memory copy of the items API
//   qcdesk init        create .qcdesk/ with the default config

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/qc-desk/internal/api"
	"github.com/kingrea/qc-desk/internal/config"
	"github.com/kingrea/qc-desk/internal/export"
	"github.com/kingrea/qc-desk/internal/inspection"
	"github.com/kingrea/qc-desk/internal/logging"
	"github.com/kingrea/qc-desk/internal/stubapi"
	"github.com/kingrea/qc-desk/internal/tui"
)

func main() {
	args := os.Args[1:]
	command := "tui"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command = args[0]
		args = args[1:]
	}
	switch command {
	case "tui":
		runTUI(args)
	case "export":
		runExport(args)
	case "stub":
		runStub(args)
	case "init":
		runInit(args)
	case "help":
		usage()
	default:
		usage()
		die("unknown command %q", command)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: qcdesk [command] [flags]

commands:
  tui      open the inspection record list (default)
  export   write every record to .xlsx or .csv
  stub     serve an in-memory items API for development
  init     create .qcdesk/ with the default config

run "qcdesk <command> -h" for command flags`)
}

func runTUI(args []string) {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	_ = fs.Parse(args)

	project, _ := prepare(*projectDir)
	app, err := tui.NewApp(project)
	if err != nil {
		die("start tui: %v", err)
	}
	// tea.NewProgram creates a new bubbletea application
	p := tea.NewProgram(
		app,
		tea.WithAltScreen(), // Use alternate screen buffer (like vim does)
	)
	// Run blocks until the user quits
	if _, err := p.Run(); err != nil {
		die("run tui: %v", err)
	}
}

func runExport(args []string) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	formatFlag := fs.String("format", "xlsx", "output format: xlsx or csv")
	encodingFlag := fs.String("encoding", "", "csv encoding: utf-8 or big5 (defaults to export.csv_encoding)")
	output := fs.String("o", "", "output file (defaults to a timestamped file in the export dir)")
	_ = fs.Parse(args)

	project, cfg := prepare(*projectDir)
	format, err := export.ParseFormat(*formatFlag)
	if err != nil {
		die("%v", err)
	}
	encodingName := *encodingFlag
	if strings.TrimSpace(encodingName) == "" {
		encodingName = cfg.Project.Export.CSVEncoding
	}
	encoding, err := export.ParseEncoding(encodingName)
	if err != nil {
		die("%v", err)
	}

	logger := openLogger(project)
	defer logger.Close()
	client, err := api.NewClient(cfg.Project.API.BaseURL,
		api.WithItemsPath(cfg.Project.API.ItemsPath),
		api.WithTimeout(cfg.Project.API.Timeout),
		api.WithLogger(logger),
	)
	if err != nil {
		die("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	records, err := client.List(ctx)
	if err != nil {
		die("fetch records: %v", err)
	}

	path := *output
	if strings.TrimSpace(path) == "" {
		path = filepath.Join(cfg.ExportDir(), export.FileName(format, time.Now()))
	}
	opts := export.Options{Format: format, Encoding: encoding, Location: cfg.Location()}
	if err := export.WriteFile(path, records, opts); err != nil {
		die("%v", err)
	}
	logger.Printf("export: %d record(s) -> %s", len(records), path)
	fmt.Println(path)
}

func runStub(args []string) {
	fs := flag.NewFlagSet("stub", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	host := fs.String("host", "", "bind host (defaults to stub.host)")
	port := fs.Int("port", 0, "bind port (defaults to stub.port)")
	seed := fs.String("seed", "", "JSON file with records to preload")
	_ = fs.Parse(args)

	project, cfg := prepare(*projectDir)
	settings := stubapi.Settings{
		Host:       cfg.Project.Stub.Host,
		Port:       cfg.Project.Stub.Port,
		ItemsPath:  cfg.Project.API.ItemsPath,
		Department: cfg.Project.Stub.Department,
	}
	if strings.TrimSpace(*host) != "" {
		settings.Host = *host
	}
	if *port > 0 {
		settings.Port = *port
	}

	logger := openLogger(project)
	defer logger.Close()
	opts := []stubapi.Option{stubapi.WithLogger(logger)}
	if strings.TrimSpace(*seed) != "" {
		records, err := stubapi.LoadSeed(*seed)
		if err != nil {
			die("%v", err)
		}
		opts = append(opts, stubapi.WithRecords(records...))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	srv := stubapi.NewServer(settings, opts...)
	if err := srv.Start(ctx); err != nil {
		die("%v", err)
	}
	fmt.Printf("Serving %s%s (ctrl+c to stop)\n", srv.BaseURL(), cfg.Project.API.ItemsPath)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		die("shutdown: %v", err)
	}
	logger.Printf("stubapi: stopped with %d record(s)", len(srv.Records()))
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	projectDir := fs.String("project", "", "path to the project directory (defaults to cwd)")
	_ = fs.Parse(args)

	project, cfg := prepare(*projectDir)
	fmt.Printf("Initialized %s\n", filepath.Join(project, config.QCDir))
	fmt.Printf("Service: %s%s\n", cfg.Project.API.BaseURL, cfg.Project.API.ItemsPath)
	fmt.Printf("Order numbers must be %d characters.\n", inspection.OrderNumberLength)
}

// prepare resolves the project directory, loads .env, creates .qcdesk/ and
// reads the config.
func prepare(projectDir string) (string, *config.Config) {
	project := projectDir
	if project == "" {
		var err error
		project, err = os.Getwd()
		if err != nil {
			die("determine working directory: %v", err)
		}
	}
	absoluteProject, err := filepath.Abs(project)
	if err != nil {
		die("resolve project dir: %v", err)
	}
	if err := config.LoadDotEnv(absoluteProject); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using environment variables\n", err)
	}
	if err := config.InitDir(absoluteProject); err != nil {
		die("init %s: %v", config.QCDir, err)
	}
	cfg, err := config.NewConfig(absoluteProject)
	if err != nil {
		die("load config: %v", err)
	}
	return absoluteProject, cfg
}

func openLogger(project string) *logging.Logger {
	logger, err := logging.New(project)
	if err != nil {
		die("%v", err)
	}
	return logger.Mirror(os.Stderr)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
