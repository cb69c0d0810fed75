// CLAUDE:SUMMARY CLI entry point for chapterkb: MCP stdio server, HTTP API and one-shot chapter commands.
// Command chapterkb serves retrieval over a directory of PDF chapters.
//
// Usage:
//
//	chapterkb serve -d chapters/climbing_anchors            # MCP over stdio
//	chapterkb http -d chapters/climbing_anchors -a :8080    # JSON API
//	chapterkb list -d chapters/climbing_anchors
//	chapterkb extract -d chapters/climbing_anchors --id anchors.pdf --force
//	chapterkb search -d chapters/climbing_anchors -q "equalize an anchor"
//	chapterkb section -d ... --id anchors.pdf -t belay -l detailed
//	chapterkb text -d ... --id anchors.pdf -s 0 -n 2000
//	chapterkb refresh -d chapters/climbing_anchors           # extract new and modified PDFs
//
// serve and http take -w to keep extracting chapters as PDFs are added.
//
// Every flag has an environment default (CHAPTERKB_CONFIG, CHAPTERS_DIR,
// CACHE_DIR, CACHE_BACKEND, HTTP_ADDR, LOG_LEVEL, CHAPTERKB_WATCH). A config file, when
// given, is read first; flags and variables that are set override it.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/abiiranathan/goflag"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/chapterkb/idgen"
	"github.com/hazyhaar/chapterkb/kit"
	"github.com/hazyhaar/chapterkb/library"
)

const version = "0.3.0"

type options struct {
	configPath  string
	chaptersDir string
	cacheDir    string
	backend     string
	httpAddr    string
	logLevel    string
	noImages    bool
	watch       bool

	chapterID  string
	force      bool
	query      string
	maxResults int
	images     bool
	topic      string
	level      string
	start      int
	length     int
}

// command is what the selected subcommand runs once the library is open.
type command func(ctx context.Context, logger *slog.Logger, lib *library.Library, o *options) error

func main() {
	o := &options{
		configPath:  env("CHAPTERKB_CONFIG", ""),
		chaptersDir: env("CHAPTERS_DIR", ""),
		cacheDir:    env("CACHE_DIR", ""),
		backend:     env("CACHE_BACKEND", ""),
		httpAddr:    env("HTTP_ADDR", ""),
		logLevel:    env("LOG_LEVEL", "info"),
		watch:       env("CHAPTERKB_WATCH", "") == "1",
		maxResults:  3,
		level:       library.LevelBrief,
		length:      library.DefaultTextLength,
	}

	var cmd command
	fctx := defineFlags(o, &cmd)
	subcmd, err := fctx.Parse(os.Args)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if subcmd == nil {
		fctx.PrintUsage(os.Stdout)
		os.Exit(1)
	}
	subcmd.Handler()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(o.logLevel)}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o, cmd); err != nil {
		logger.Error("chapterkb: fatal", "error", err)
		os.Exit(1)
	}
}

func defineFlags(o *options, cmd *command) *goflag.Context {
	ctx := goflag.NewContext()

	ctx.AddFlag(goflag.FlagString, "config", "c", &o.configPath, "Path to chapterkb.yaml", false)
	ctx.AddFlag(goflag.FlagString, "log-level", "v", &o.logLevel, "Log level: debug, info, warn, error", false)

	dirFlag := goflag.Flag{
		FlagType:  goflag.FlagString,
		Name:      "chapters",
		ShortName: "d",
		Value:     &o.chaptersDir,
		Usage:     "Directory of chapter PDFs; its name selects the book",
		Required:  false,
	}
	cacheFlag := goflag.Flag{
		FlagType:  goflag.FlagString,
		Name:      "cache-dir",
		ShortName: "k",
		Value:     &o.cacheDir,
		Usage:     "Directory for cached extractions and page images",
		Required:  false,
	}
	backendFlag := goflag.Flag{
		FlagType:  goflag.FlagString,
		Name:      "backend",
		ShortName: "b",
		Value:     &o.backend,
		Usage:     "Cache backend: file or sqlite",
		Required:  false,
	}
	idFlag := goflag.Flag{
		FlagType:  goflag.FlagString,
		Name:      "id",
		ShortName: "i",
		Value:     &o.chapterID,
		Usage:     "Chapter file name, e.g. anchors.pdf",
		Required:  true,
	}
	noImagesFlag := goflag.Flag{
		FlagType:  goflag.FlagBool,
		Name:      "no-images",
		ShortName: "x",
		Value:     &o.noImages,
		Usage:     "Disable page rendering",
		Required:  false,
	}

	watchFlag := goflag.Flag{
		FlagType:  goflag.FlagBool,
		Name:      "watch",
		ShortName: "w",
		Value:     &o.watch,
		Usage:     "Extract new and modified chapters in the background",
		Required:  false,
	}

	ctx.AddSubCommand("serve", "Serve the chapter tools over MCP stdio", func() {
		*cmd = serveMCP
	}).AddFlagPtr(&dirFlag).AddFlagPtr(&cacheFlag).AddFlagPtr(&backendFlag).AddFlagPtr(&noImagesFlag).
		AddFlagPtr(&watchFlag)

	ctx.AddSubCommand("http", "Serve the JSON HTTP API", func() {
		*cmd = serveHTTP
	}).AddFlag(goflag.FlagString, "addr", "a", &o.httpAddr, "Listen address (default :8080)", false).
		AddFlagPtr(&dirFlag).AddFlagPtr(&cacheFlag).AddFlagPtr(&backendFlag).AddFlagPtr(&noImagesFlag).
		AddFlagPtr(&watchFlag)

	ctx.AddSubCommand("refresh", "Extract every new or modified chapter", func() {
		*cmd = func(ctx context.Context, _ *slog.Logger, lib *library.Library, _ *options) error {
			return printResult(lib.Refresh(ctx))
		}
	}).AddFlagPtr(&dirFlag).AddFlagPtr(&cacheFlag).AddFlagPtr(&backendFlag).AddFlagPtr(&noImagesFlag)

	ctx.AddSubCommand("list", "List chapters and their extraction status", func() {
		*cmd = func(ctx context.Context, _ *slog.Logger, lib *library.Library, _ *options) error {
			return printResult(lib.ListChapters(ctx))
		}
	}).AddFlagPtr(&dirFlag).AddFlagPtr(&cacheFlag).AddFlagPtr(&backendFlag)

	ctx.AddSubCommand("extract", "Extract and cache a chapter", func() {
		*cmd = func(ctx context.Context, _ *slog.Logger, lib *library.Library, o *options) error {
			return printResult(lib.ExtractChapter(ctx, o.chapterID, o.force))
		}
	}).AddFlagPtr(&idFlag).
		AddFlag(goflag.FlagBool, "force", "f", &o.force, "Re-extract even if cached", false).
		AddFlagPtr(&dirFlag).AddFlagPtr(&cacheFlag).AddFlagPtr(&backendFlag).AddFlagPtr(&noImagesFlag)

	ctx.AddSubCommand("search", "Search extracted chapters", func() {
		*cmd = func(ctx context.Context, _ *slog.Logger, lib *library.Library, o *options) error {
			return printResult(lib.SearchContent(ctx, o.query, o.maxResults, o.images && lib.ImagesEnabled()))
		}
	}).AddFlag(goflag.FlagString, "query", "q", &o.query, "Search terms", true).
		AddFlag(goflag.FlagInt, "max", "m", &o.maxResults, "Max chapters", false).
		AddFlag(goflag.FlagBool, "images", "g", &o.images, "Include page images", false).
		AddFlagPtr(&dirFlag).AddFlagPtr(&cacheFlag).AddFlagPtr(&backendFlag)

	ctx.AddSubCommand("section", "Print the passages of a chapter about a topic", func() {
		*cmd = func(ctx context.Context, _ *slog.Logger, lib *library.Library, o *options) error {
			return printResult(lib.GetChapterSection(ctx, o.chapterID, o.topic, o.level))
		}
	}).AddFlagPtr(&idFlag).
		AddFlag(goflag.FlagString, "topic", "t", &o.topic, "Topic to look for", true).
		AddFlag(goflag.FlagString, "level", "l", &o.level, "brief, detailed or comprehensive", false).
		AddFlagPtr(&dirFlag).AddFlagPtr(&cacheFlag).AddFlagPtr(&backendFlag)

	ctx.AddSubCommand("text", "Print a window of a chapter's text", func() {
		*cmd = func(ctx context.Context, _ *slog.Logger, lib *library.Library, o *options) error {
			return printResult(lib.GetChapterText(ctx, o.chapterID, o.start, o.length))
		}
	}).AddFlagPtr(&idFlag).
		AddFlag(goflag.FlagInt, "start", "s", &o.start, "Start offset", false).
		AddFlag(goflag.FlagInt, "length", "n", &o.length, "Bytes to print", false).
		AddFlagPtr(&dirFlag).AddFlagPtr(&cacheFlag).AddFlagPtr(&backendFlag).AddFlagPtr(&noImagesFlag)

	return ctx
}

func run(ctx context.Context, logger *slog.Logger, o *options, cmd command) error {
	cfg, err := resolveConfig(o)
	if err != nil {
		return err
	}
	cfg.Logger = logger

	lib, err := library.Open(*cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer lib.Close()

	o.httpAddr = cfg.HTTP.Addr
	o.watch = cfg.Watch.Enabled
	ctx = kit.WithRequestID(kit.WithTransport(ctx, "cli"), idgen.RequestID())
	return cmd(ctx, logger, lib, o)
}

func resolveConfig(o *options) (*library.Config, error) {
	var cfg *library.Config
	if o.configPath != "" {
		c, err := library.LoadConfigFile(o.configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	} else {
		c := library.DefaultConfig()
		c.BookID = ""
		cfg = &c
	}
	if o.chaptersDir != "" {
		cfg.ChaptersDir = o.chaptersDir
		cfg.BookID = ""
	}
	if o.cacheDir != "" {
		cfg.Cache.Dir = o.cacheDir
		cfg.Cache.DBPath = ""
	}
	if o.backend != "" {
		cfg.Cache.Backend = o.backend
	}
	if o.httpAddr != "" {
		cfg.HTTP.Addr = o.httpAddr
	}
	if o.noImages {
		cfg.Render.Enabled = false
	}
	if o.watch {
		cfg.Watch.Enabled = true
	}
	return cfg, nil
}

// startWatch runs lib.Watch in the background when enabled. The returned
// func cancels it and waits for it to finish.
func startWatch(ctx context.Context, logger *slog.Logger, lib *library.Library, o *options) func() {
	if !o.watch {
		return func() {}
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := lib.Watch(ctx); err != nil {
			logger.Error("chapterkb: watch stopped", "error", err)
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func serveMCP(ctx context.Context, logger *slog.Logger, lib *library.Library, o *options) error {
	defer startWatch(ctx, logger, lib, o)()

	srv := mcp.NewServer(&mcp.Implementation{Name: "chapterkb", Version: version}, nil)
	lib.RegisterMCP(srv)
	logger.Info("chapterkb: mcp stdio server running", "images", lib.ImagesEnabled())
	err := srv.Run(ctx, &mcp.StdioTransport{})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func serveHTTP(ctx context.Context, logger *slog.Logger, lib *library.Library, o *options) error {
	defer startWatch(ctx, logger, lib, o)()

	addr := o.httpAddr
	srv := &http.Server{
		Addr:              addr,
		Handler:           lib.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()
	logger.Info("chapterkb: http server running", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("chapterkb: http server stopped")
	return nil
}

func printResult(v any, err error) error {
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
