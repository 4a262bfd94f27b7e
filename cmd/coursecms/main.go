package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pavelanni/coursecms/internal/client"
	"github.com/pavelanni/coursecms/internal/document"
	"github.com/pavelanni/coursecms/internal/handler"
	appI18n "github.com/pavelanni/coursecms/internal/i18n"
	"github.com/pavelanni/coursecms/internal/model"
	"github.com/pavelanni/coursecms/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coursecms",
		Short: "Course page documents: local backend and editor tree tools",
	}

	serve := serveCmd()
	root.AddCommand(serve, normalizeCmd(), denormalizeCmd(), validateCmd(), pullCmd(), pushCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `coursecms --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the page API server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "coursecms.db", "SQLite database path")
	f.StringP("lang", "l", "en", "Default language for API messages (en, fi)")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /cms)")
	f.Int64("max-body-size", 8<<20, "Maximum request body size in bytes (0 = unlimited)")
	addLogFlags(cmd)
	return cmd
}

func normalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Convert an editor page tree into the normalized page document",
		RunE:  runNormalize,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "-", "Editor page JSON file (- for stdin)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Bool("assign-ids", false, "Give exercise, slide and task blocks without an id a random one")
	addLogFlags(cmd)
	return cmd
}

func denormalizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "denormalize",
		Short: "Rebuild the editor page tree from a normalized page document",
		RunE:  runDenormalize,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "-", "Normalized page JSON file (- for stdin)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.Bool("strict", false, "Fail when records cannot be placed in the tree")
	addLogFlags(cmd)
	return cmd
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check that an editor page tree can be saved",
		RunE:  runValidate,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "-", "Editor page JSON file (- for stdin)")
	addLogFlags(cmd)
	return cmd
}

func addRemoteFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("server", "s", "http://localhost:8080", "Page API base URL, including any base path")
	f.StringP("page", "p", "", "Page ID (required)")
	f.StringP("lang", "l", "", "Preferred language for server messages")
	_ = cmd.MarkFlagRequired("page")
}

func pullCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Download a page as an editor tree",
		RunE:  runPull,
	}
	addRemoteFlags(cmd)
	cmd.Flags().StringP("output", "o", "-", "Output file path (- for stdout)")
	addLogFlags(cmd)
	return cmd
}

func pushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Normalize an editor tree and save it to a page",
		RunE:  runPush,
	}
	addRemoteFlags(cmd)
	f := cmd.Flags()
	f.StringP("input", "i", "-", "Editor page JSON file (- for stdin)")
	f.Bool("assign-ids", false, "Give exercise, slide and task blocks without an id a random one")
	addLogFlags(cmd)
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("COURSECMS")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("coursecms")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/coursecms")
	v.AddConfigPath("/etc/coursecms")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.ServerConfig{
		Addr:        v.GetString("addr"),
		DBPath:      v.GetString("db"),
		DefaultLang: v.GetString("lang"),
		BasePath:    basePath,
		MaxBodySize: v.GetInt64("max-body-size"),
	}

	db, err := store.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := appI18n.Init(cfg.DefaultLang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	h := handler.New(db, cfg)
	r := h.Router(middleware.RequestID, middleware.Logger, middleware.Recoverer)

	slog.Info("starting server",
		"addr", cfg.Addr,
		"db", cfg.DBPath,
		"lang", cfg.DefaultLang,
		"languages", appI18n.Languages(),
		"base_path", cfg.BasePath,
		"max_body_size", cfg.MaxBodySize,
	)
	return http.ListenAndServe(cfg.Addr, r)
}

func runNormalize(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	var doc model.EditorPage
	if err := readJSON(v.GetString("input"), &doc); err != nil {
		return err
	}
	if v.GetBool("assign-ids") {
		doc.Content = document.AssignIDs(doc.Content)
	}
	update, err := document.Normalize(doc)
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	slog.Info("normalized page",
		"exercises", len(update.Exercises),
		"slides", len(update.ExerciseSlides),
		"tasks", len(update.ExerciseTasks),
	)
	return writeJSON(v.GetString("output"), update)
}

func runDenormalize(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	var page model.PageUpdate
	if err := readJSON(v.GetString("input"), &page); err != nil {
		return err
	}
	tree, orphans := document.Denormalize(page)
	if len(orphans) > 0 && v.GetBool("strict") {
		return fmt.Errorf("denormalize: %d records could not be placed in the tree", len(orphans))
	}
	return writeJSON(v.GetString("output"), tree)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	var doc model.EditorPage
	if err := readJSON(v.GetString("input"), &doc); err != nil {
		return err
	}
	if err := document.Validate(doc.Content); err != nil {
		return fmt.Errorf("validate: %w", err)
	}
	slog.Info("page tree is valid", "blocks", len(doc.Content))
	return nil
}

func newClient(v *viper.Viper) *client.Client {
	var opts []client.Option
	if lang := v.GetString("lang"); lang != "" {
		opts = append(opts, client.WithLanguage(lang))
	}
	return client.New(v.GetString("server"), opts...)
}

func runPull(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	id := v.GetString("page")
	tree, orphans, err := newClient(v).FetchEditorPage(context.Background(), id)
	if err != nil {
		return fmt.Errorf("fetch page %s: %w", id, err)
	}
	if len(orphans) > 0 {
		slog.Warn("page has records outside the tree", "page_id", id, "count", len(orphans))
	}
	return writeJSON(v.GetString("output"), tree)
}

func runPush(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	var doc model.EditorPage
	if err := readJSON(v.GetString("input"), &doc); err != nil {
		return err
	}
	if v.GetBool("assign-ids") {
		doc.Content = document.AssignIDs(doc.Content)
	}

	id := v.GetString("page")
	page, err := newClient(v).SaveEditorPage(context.Background(), id, doc)
	if err != nil {
		return fmt.Errorf("save page %s: %w", id, err)
	}
	slog.Info("saved page",
		"page_id", page.ID,
		"exercises", len(page.Exercises),
		"slides", len(page.ExerciseSlides),
		"tasks", len(page.ExerciseTasks),
		"updated_at", page.UpdatedAt,
	)
	return nil
}

func readJSON(path string, v any) error {
	var r io.Reader
	if path == "" || path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input file: %w", err)
		}
		defer f.Close()
		r = f
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	var w io.Writer
	if path == "" || path == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)
	return nil
}
