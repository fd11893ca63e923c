// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/poiesic/scriptorium"
	"github.com/poiesic/scriptorium/config"
	"github.com/poiesic/scriptorium/core"
	"github.com/poiesic/scriptorium/ingestion"
	"github.com/poiesic/scriptorium/search"
	"github.com/poiesic/scriptorium/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "scriptorium",
		Usage: "OCR, index and query scanned medical literature",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to YAML config (default ./scriptorium.yaml, then ~/.config/scriptorium/config.yaml)",
			},
			&cli.StringFlag{
				Name:    "db",
				Aliases: []string{"d"},
				Usage:   "Path to BadgerDB database directory (overrides config)",
			},
		},
		Before: before,
		Commands: []*cli.Command{
			{
				Name:      "upload",
				Usage:     "Upload PDF or image files",
				ArgsUsage: "FILE...",
				Action:    uploadCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "title", Usage: "Document title (single file only)"},
					&cli.IntFlag{Name: "chunk-size", Usage: "Chunk size in tokens"},
					&cli.IntFlag{Name: "overlap", Usage: "Chunk overlap in tokens"},
					&cli.StringFlag{Name: "enhancement", Usage: "OCR enhancement level (light, medium, aggressive)"},
					&cli.IntFlag{Name: "dpi", Usage: "Page resolution hint (200 or 300)"},
					&cli.StringFlag{Name: "domain-hint", Usage: "Subject hint passed to the vision model"},
					&cli.BoolFlag{Name: "process", Aliases: []string{"p"}, Usage: "Process each document after upload"},
				},
			},
			{
				Name:      "process",
				Usage:     "Run documents through the pipeline",
				ArgsUsage: "ID...",
				Action:    processCommand,
			},
			{
				Name:   "resume",
				Usage:  "Resume every unfinished document and interrupted delete",
				Action: resumeCommand,
			},
			{
				Name:      "status",
				Usage:     "Show a document",
				ArgsUsage: "ID",
				Action:    statusCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "pages", Usage: "Show per-page OCR results"},
				},
			},
			{
				Name:   "list",
				Usage:  "List documents",
				Action: listCommand,
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "status", Aliases: []string{"s"}, Usage: "Only documents in these statuses"},
				},
			},
			{
				Name:      "retry",
				Usage:     "Retry a failed document from its failed stage",
				ArgsUsage: "ID",
				Action:    retryCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a document and everything derived from it",
				ArgsUsage: "ID",
				Action:    deleteCommand,
			},
			{
				Name:      "query",
				Usage:     "Ask a question of the indexed documents",
				ArgsUsage: "QUESTION",
				Action:    queryCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "top-k", Aliases: []string{"k"}, Usage: "Number of passages to cite", Value: 5},
					&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Trace each query step"},
					&cli.BoolFlag{Name: "search-only", Usage: "Print citations without generating an answer"},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed every vector index entry with the configured embedding model",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "batch-size", Usage: "Number of entries to process in each batch"},
					&cli.IntFlag{Name: "report-interval", Usage: "Report progress every N entries"},
					&cli.IntFlag{Name: "concurrency", Usage: "Number of batches embedded at once"},
				},
			},
			{
				Name:  "config",
				Usage: "Manage configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "init",
						Usage:  "Write the default configuration",
						Action: configInitCommand,
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "path", Usage: "Destination file", Value: config.FileName},
							&cli.BoolFlag{Name: "force", Usage: "Overwrite an existing file"},
						},
					},
				},
			},
		},
	}
}

func before(c *cli.Context) error {
	// A missing .env is normal.
	_ = godotenv.Load()
	return setupLogger(c)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return nil
}

// loadConfig resolves the config file and applies the --db override.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if db := c.String("db"); db != "" {
		cfg.Database.Path = db
	}
	return cfg, nil
}

// session is an opened database plus the pipeline built from config.
type session struct {
	cfg      *config.Config
	db       *scriptorium.Database
	pipeline *ingestion.Pipeline
}

func openSession(ctx context.Context, c *cli.Context) (*session, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	db, err := scriptorium.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	pipeline, err := db.NewPipeline(cfg.PipelineOptions()...)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}
	return &session{cfg: cfg, db: db, pipeline: pipeline}, nil
}

func (s *session) Close() {
	s.pipeline.Release()
	if err := s.db.Close(); err != nil {
		slog.Error("error closing database", "err", err)
	}
}

// signalContext cancels on interrupt so in-flight documents park in a
// resumable state.
func signalContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(c.Context, os.Interrupt)
}

func parseIDs(args []string) ([]core.ID, error) {
	if len(args) == 0 {
		return nil, errors.New("at least one document id is required")
	}
	ids := make([]core.ID, 0, len(args))
	for _, arg := range args {
		id, err := core.ParseID(arg)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseID(c *cli.Context) (core.ID, error) {
	if c.NArg() != 1 {
		return 0, errors.New("exactly one document id is required")
	}
	return core.ParseID(c.Args().First())
}

func uploadCommand(c *cli.Context) error {
	files := c.Args().Slice()
	if len(files) == 0 {
		return errors.New("at least one file is required")
	}
	if c.String("title") != "" && len(files) > 1 {
		return errors.New("--title applies to a single file")
	}

	ctx, cancel := signalContext(c)
	defer cancel()
	s, err := openSession(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	overrides := core.Settings{
		ChunkSize:   c.Int("chunk-size"),
		Overlap:     c.Int("overlap"),
		Enhancement: core.EnhancementLevel(c.String("enhancement")),
		DPI:         c.Int("dpi"),
		DomainHint:  c.String("domain-hint"),
	}

	out := c.App.Writer
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		doc, err := s.pipeline.Upload(ctx, ingestion.UploadRequest{
			FileName:  filepath.Base(file),
			Title:     c.String("title"),
			Data:      data,
			Overrides: overrides,
		})
		if err != nil {
			return fmt.Errorf("upload %s: %w", file, err)
		}
		fmt.Fprintf(out, "%s\t%s\t%d pages\t%s\n", doc.Id, doc.FileName, len(doc.Pages), doc.Status)

		if c.Bool("process") {
			doc, err = s.pipeline.Process(ctx, doc.Id)
			if err != nil {
				return err
			}
			printOutcome(out, doc)
		}
	}
	return nil
}

func processCommand(c *cli.Context) error {
	ids, err := parseIDs(c.Args().Slice())
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()
	s, err := openSession(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	for _, id := range ids {
		if err := s.pipeline.Submit(id); err != nil {
			return err
		}
	}
	for _, id := range ids {
		doc, err := s.pipeline.Wait(ctx, id)
		if err != nil {
			return err
		}
		printOutcome(c.App.Writer, doc)
	}
	return nil
}

func resumeCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()
	s, err := openSession(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	n, err := s.pipeline.Resume(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Resumed %d documents\n", n)
	return nil
}

func statusCommand(c *cli.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	s, err := openSession(c.Context, c)
	if err != nil {
		return err
	}
	defer s.Close()

	doc, err := s.pipeline.Get(c.Context, id)
	if err != nil {
		return err
	}
	printDocument(c.App.Writer, doc, c.Bool("pages"))
	return nil
}

func listCommand(c *cli.Context) error {
	var filter storage.DocumentFilter
	for _, name := range c.StringSlice("status") {
		for part := range strings.SplitSeq(name, ",") {
			status, err := core.ParseStatus(part)
			if err != nil {
				return err
			}
			filter.Statuses = append(filter.Statuses, status)
		}
	}

	s, err := openSession(c.Context, c)
	if err != nil {
		return err
	}
	defer s.Close()

	docs, err := s.pipeline.List(c.Context, filter)
	if err != nil {
		return err
	}
	printList(c.App.Writer, docs)
	return nil
}

func retryCommand(c *cli.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	ctx, cancel := signalContext(c)
	defer cancel()
	s, err := openSession(ctx, c)
	if err != nil {
		return err
	}
	defer s.Close()

	doc, err := s.pipeline.Retry(ctx, id)
	if err != nil {
		return err
	}
	printOutcome(c.App.Writer, doc)
	return nil
}

func deleteCommand(c *cli.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	s, err := openSession(c.Context, c)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.pipeline.Delete(c.Context, id); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", id)
	return nil
}

func queryCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}
	s, err := openSession(c.Context, c)
	if err != nil {
		return err
	}
	defer s.Close()

	searcher, err := s.db.NewSearcher(search.WithRetryPolicy(s.cfg.ToRetryPolicy()))
	if err != nil {
		return err
	}

	var monitor search.QueryMonitor
	if c.Bool("verbose") {
		monitor = newVerboseMonitor(c.App.ErrWriter)
	}

	out := c.App.Writer
	if c.Bool("search-only") {
		citations, err := searcher.SearchWithMonitor(c.Context, question, c.Int("top-k"), monitor)
		if err != nil {
			return err
		}
		printCitations(out, citations)
		return nil
	}

	answer, err := searcher.AskWithMonitor(c.Context, question, c.Int("top-k"), monitor)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, answer.Text)
	if len(answer.Citations) > 0 {
		fmt.Fprintln(out)
		printCitations(out, answer.Citations)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx, cancel := signalContext(c)
	defer cancel()

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if v := c.Int("batch-size"); v > 0 {
		cfg.Reembed.BatchSize = v
	}
	if v := c.Int("report-interval"); v > 0 {
		cfg.Reembed.ReportInterval = v
	}
	if v := c.Int("concurrency"); v > 0 {
		cfg.Reembed.Concurrency = v
	}

	db, err := scriptorium.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	reembedder, err := db.NewReembedder(cfg.ToReembedConfig(), c.App.ErrWriter)
	if err != nil {
		return err
	}

	fmt.Fprintf(c.App.ErrWriter, "Database: %s\n", cfg.Database.Path)
	fmt.Fprintf(c.App.ErrWriter, "Embedding host: %s\n", cfg.AI.EmbeddingHost)
	fmt.Fprintf(c.App.ErrWriter, "Embedding model: %s\n", cfg.AI.EmbeddingModel)
	fmt.Fprintln(c.App.ErrWriter)

	if _, err := reembedder.Run(ctx); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}
	return nil
}

func configInitCommand(c *cli.Context) error {
	path := c.String("path")
	if _, err := os.Stat(path); err == nil && !c.Bool("force") {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err := config.Save(path, config.Default()); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Wrote %s\n", path)
	return nil
}

func printOutcome(w io.Writer, doc *core.Document) {
	fmt.Fprintf(w, "%s\t%s", doc.Id, doc.Status)
	if doc.Failure != nil {
		fmt.Fprintf(w, "\t%s %s: %s", doc.Failure.Stage, doc.Failure.Class, doc.Failure.Detail)
	}
	if n := len(doc.Warnings); n > 0 {
		fmt.Fprintf(w, "\t%d warnings", n)
	}
	fmt.Fprintln(w)
}

func printDocument(w io.Writer, doc *core.Document, pages bool) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", doc.Id)
	fmt.Fprintf(tw, "Title:\t%s\n", doc.Title)
	fmt.Fprintf(tw, "File:\t%s\n", doc.FileName)
	fmt.Fprintf(tw, "Status:\t%s\n", doc.Status)
	fmt.Fprintf(tw, "Uploaded:\t%s\n", doc.UploadedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "Updated:\t%s\n", doc.UpdatedAt.Format(time.RFC3339))
	fmt.Fprintf(tw, "Pages:\t%d\n", len(doc.Pages))
	fmt.Fprintf(tw, "Settings:\tchunk %d/%d, %s enhancement, %d dpi\n",
		doc.Settings.ChunkSize, doc.Settings.Overlap, doc.Settings.Enhancement, doc.Settings.DPI)
	fmt.Fprintf(tw, "Retries:\tocr %d, indexing %d, graph %d\n",
		doc.Retries.OCR, doc.Retries.Indexing, doc.Retries.Graph)
	if doc.Failure != nil {
		fmt.Fprintf(tw, "Failure:\t%s stage, %s: %s\n", doc.Failure.Stage, doc.Failure.Class, doc.Failure.Detail)
	}
	for _, a := range doc.Artifacts {
		fmt.Fprintf(tw, "Artifact:\t%s %s\n", a.Kind, a.Ref)
	}
	for _, warn := range doc.Warnings {
		where := ""
		if warn.Page >= 0 {
			where = fmt.Sprintf(" page %d", warn.Page+1)
		}
		fmt.Fprintf(tw, "Warning:\t%s%s %s: %s\n", warn.Stage, where, warn.Code, warn.Message)
	}
	tw.Flush()

	if !pages {
		return
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PAGE\tSTATUS\tCONFIDENCE\tCHARS")
	for _, p := range doc.Pages {
		fmt.Fprintf(tw, "%d\t%s\t%.2f\t%d\n", p.Index+1, p.Status, p.Confidence, len(p.Text))
	}
	tw.Flush()
}

func printList(w io.Writer, docs []*core.Document) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPAGES\tUPDATED\tTITLE")
	for _, doc := range docs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			doc.Id, doc.Status, len(doc.Pages), doc.UpdatedAt.Format(time.DateTime), doc.Title)
	}
	tw.Flush()
}

func printCitations(w io.Writer, citations []*search.Citation) {
	if len(citations) == 0 {
		fmt.Fprintln(w, "No matching passages")
		return
	}
	for i, c := range citations {
		pages := fmt.Sprintf("p. %d", c.PageStart+1)
		if c.PageEnd != c.PageStart {
			pages = fmt.Sprintf("pp. %d-%d", c.PageStart+1, c.PageEnd+1)
		}
		fmt.Fprintf(w, "[%d] %s (%s), %s [%0.3f]\n", i+1, c.Title, c.FileName, pages, c.Score)
		fmt.Fprintf(w, "    %s\n", c.Excerpt)
	}
}
