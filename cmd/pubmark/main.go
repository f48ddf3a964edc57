package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/eringen/pubmark"
	"github.com/eringen/pubmark/markdown"
)

// version is set at build time via ldflags.
var version = "dev"

var CLI struct {
	Config  string `short:"c" help:"Configuration file path" default:"pubmark.yaml" env:"PUBMARK_CONFIG"`
	Verbose bool   `short:"v" help:"Enable verbose logging"`

	ReadFiles struct {
		Force         bool     `help:"Recompile posts whose source is unchanged"`
		IncludeDrafts bool     `help:"Import posts without a pubdate"`
		KeepGoing     bool     `short:"k" help:"Log failing documents and continue with the rest"`
		PublishImages bool     `help:"Make non public images public on the image server"`
		Paths         []string `arg:"" type:"path" help:"Markdown files or directories"`
	} `cmd:"" help:"Compile markdown files into the database"`

	List struct {
		Tag      string `short:"t" help:"Only posts with this tag"`
		Absolute bool   `help:"Print absolute URLs"`
	} `cmd:"" help:"List stored posts"`

	Render struct {
		File string `arg:"" type:"existingfile" help:"Markdown file to compile"`
	} `cmd:"" help:"Compile one file and print the result as JSON, storing nothing"`

	Comment struct{} `cmd:"" help:"Render a comment read from stdin as HTML"`

	CSS struct {
		Style string `arg:"" optional:"" help:"Highlighting style (default from config)"`
	} `cmd:"" name:"css" help:"Print the stylesheet of a highlighting style"`

	Serve struct {
		Addr string `short:"a" help:"Listen address (default from config)"`
	} `cmd:"" help:"Serve a preview of the stored site"`

	Version struct{} `cmd:"" help:"Print the version"`
}

func main() {
	kctx := kong.Parse(&CLI,
		kong.Name("pubmark"),
		kong.Description("Compile a markdown blog into HTML stored in SQLite."),
		kong.UsageOnError(),
	)

	logLevel := slog.LevelInfo
	if CLI.Verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch kctx.Command() {
	case "read-files <paths>":
		err = runReadFiles(ctx, logger)
	case "list":
		err = runList(ctx, logger)
	case "render <file>":
		err = runRender(ctx, logger, os.Stdout)
	case "comment":
		err = runComment(os.Stdin, os.Stdout)
	case "css", "css <style>":
		err = runCSS(os.Stdout)
	case "serve":
		err = runServe(ctx, logger)
	case "version":
		fmt.Printf("pubmark %s\n", version)
	}
	if err != nil {
		slog.Error("Command failed", "command", kctx.Command(), "error", err)
		os.Exit(1)
	}
}

func newApp(logger *slog.Logger) (*pubmark.App, error) {
	cfg, err := pubmark.LoadConfig(CLI.Config)
	if err != nil {
		return nil, err
	}
	return pubmark.New(cfg, pubmark.WithLogger(logger)), nil
}

func runReadFiles(ctx context.Context, logger *slog.Logger) error {
	app, err := newApp(logger)
	if err != nil {
		return err
	}
	defer app.Close()
	if CLI.ReadFiles.PublishImages {
		app.Config.PublishImages = true
	}
	im, err := app.NewImporter(pubmark.ImportOptions{
		Force:         CLI.ReadFiles.Force,
		IncludeDrafts: CLI.ReadFiles.IncludeDrafts,
		KeepGoing:     CLI.ReadFiles.KeepGoing,
	})
	if err != nil {
		return err
	}
	stats, err := im.Run(ctx, CLI.ReadFiles.Paths)
	logger.Info("Import done",
		"created", stats.Created,
		"updated", stats.Updated,
		"unchanged", stats.Unchanged,
		"skipped", stats.Skipped,
		"failed", stats.Failed)
	return err
}

func runList(ctx context.Context, logger *slog.Logger) error {
	app, err := newApp(logger)
	if err != nil {
		return err
	}
	defer app.Close()
	if err := app.Open(); err != nil {
		return err
	}
	posts, err := app.Cache.ListPosts(ctx, CLI.List.Tag)
	if err != nil {
		return err
	}
	for _, p := range posts {
		date := "draft     "
		if p.PostedAt != nil {
			date = p.PostedAt.Format("2006-01-02")
		}
		url := p.URL()
		if CLI.List.Absolute {
			url = pubmark.BuildURL(app.Config.URL, url)
		}
		line := fmt.Sprintf("%s  %s  %s", date, url, p.Title)
		if len(p.Tags) > 0 {
			line += "  [" + strings.Join(p.Tags, ", ") + "]"
		}
		fmt.Println(line)
	}
	return nil
}

type renderResult struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Teaser      string `json:"teaser"`
	Description string `json:"description"`
	FrontImage  string `json:"front_image,omitempty"`
	UsesMap     bool   `json:"uses_map"`
}

func runRender(ctx context.Context, logger *slog.Logger, w io.Writer) error {
	app, err := newApp(logger)
	if err != nil {
		return err
	}
	out, err := app.CompileFile(ctx, CLI.Render.File)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(renderResult{
		Title:       out.Title,
		Body:        out.Body,
		Teaser:      out.Teaser,
		Description: out.Description,
		FrontImage:  out.FrontImage,
		UsesMap:     out.UsesMap,
	})
}

func runComment(r io.Reader, w io.Writer) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := markdown.RenderComment(&buf, string(raw)); err != nil {
		return err
	}
	_, err = buf.WriteTo(w)
	return err
}

func runCSS(w io.Writer) error {
	style := CLI.CSS.Style
	if style == "" {
		cfg, err := pubmark.LoadConfig(CLI.Config)
		if err != nil {
			return err
		}
		style = cfg.HighlightStyle
	}
	css, err := markdown.StyleCSS(style)
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, css)
	return err
}

func runServe(ctx context.Context, logger *slog.Logger) error {
	app, err := newApp(logger)
	if err != nil {
		return err
	}
	defer app.Close()
	if CLI.Serve.Addr != "" {
		app.Config.Addr = CLI.Serve.Addr
	}
	return app.Serve(ctx)
}
