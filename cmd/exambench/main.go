package main

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/exambench/exambench/internal/examdoc"
	"github.com/exambench/exambench/internal/extract"
	"github.com/exambench/exambench/internal/handler"
	"github.com/exambench/exambench/internal/llm"
	"github.com/exambench/exambench/internal/llm/prompts"
	"github.com/exambench/exambench/internal/model"
	"github.com/exambench/exambench/internal/store"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "exambench",
		Short: "Turn raw exam documents into benchmark-formatted datasets",
	}

	validate := validateCmd()
	root.AddCommand(validate, formatCmd(), serveCmd(), exportCmd())

	// Make "validate" the default when no subcommand is given.
	root.RunE = validate.RunE

	// Register validate flags on root so bare `exambench -i exam.md` still works.
	root.Flags().AddFlagSet(validate.Flags())

	return root
}

func validateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate and normalize a benchmark exam document",
		RunE:  runValidate,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "-", "Input document path (- for stdin)")
	f.StringP("output", "o", "-", "Output path (- for stdout)")
	f.Bool("check", false, "Fail instead of writing when the document needs changes")
	addLoggingFlags(cmd)
	return cmd
}

func formatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "format",
		Short: "Format a raw exam file into a benchmark document via the LLM",
		RunE:  runFormat,
	}
	f := cmd.Flags()
	f.StringP("input", "i", "", "Source exam file (PDF or UTF-8 text, required)")
	f.StringP("output", "o", "-", "Output path (- for stdout)")
	f.String("db", "exambench.db", "SQLite database path (tracks imported files)")
	f.Bool("force", false, "Re-format even if the source file is unchanged")
	addLLMFlags(cmd)
	addLoggingFlags(cmd)
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the contribution submission server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "exambench.db", "SQLite database path")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /contrib)")
	f.String("submit-token", "", "Initial submit token (or set EXAMBENCH_SUBMIT_TOKEN)")
	f.Int64("max-upload", 4<<20, "Maximum request body size in bytes")
	addLLMFlags(cmd)
	addLoggingFlags(cmd)
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export validated submissions as a dataset JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "exambench.db", "SQLite database path")
	f.String("dataset", "", "Dataset name for output (required)")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	addLoggingFlags(cmd)

	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func addLLMFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.String("judge-variant", string(prompts.VariantStandard), "Judge prompt variant (strict, standard, lenient)")
}

func addLoggingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
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

	v.SetEnvPrefix("EXAMBENCH")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("exambench")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/exambench")
	v.AddConfigPath("/etc/exambench")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runValidate(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	input, err := readInput(v.GetString("input"))
	if err != nil {
		return err
	}

	normalized, err := examdoc.Normalize(input)
	if err != nil {
		return fmt.Errorf("validate document: %w", err)
	}

	if v.GetBool("check") && normalized != input {
		return fmt.Errorf("document needs normalization")
	}

	if normalized == input {
		slog.Info("document already normalized")
	} else {
		slog.Info("document normalized")
	}
	return writeOutput(v.GetString("output"), normalized)
}

func runFormat(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	inputPath := v.GetString("input")
	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	raw, err := extract.Text(inputPath)
	if err != nil {
		return fmt.Errorf("extract source text: %w", err)
	}
	if raw == "" {
		return fmt.Errorf("no text extracted from %s (scanned PDF without a text layer?)", inputPath)
	}

	// Skip sources that were already formatted, unless forced.
	hash := sha256sum([]byte(raw))
	storedHash, err := db.GetImportedFileHash(inputPath)
	if err != nil {
		return fmt.Errorf("check import status for %s: %w", inputPath, err)
	}
	if storedHash == hash && !v.GetBool("force") {
		slog.Info("source file unchanged, skipping", "path", inputPath)
		return nil
	}

	llmClient, err := newLLMClient(v)
	if err != nil {
		return err
	}

	ctx := context.Background()
	slog.Info("formatting exam", "path", inputPath, "model", v.GetString("llm-model"))
	doc, err := llmClient.FormatExam(ctx, raw)
	if err != nil {
		return fmt.Errorf("format exam: %w", err)
	}

	// The model's output is never trusted: it goes through the same
	// gate as hand-written documents.
	normalized, err := examdoc.Normalize(doc)
	if err != nil {
		return fmt.Errorf("formatted document failed validation: %w", err)
	}

	if err := writeOutput(v.GetString("output"), normalized); err != nil {
		return err
	}
	if err := db.SetImportedFileHash(inputPath, hash); err != nil {
		return fmt.Errorf("record import for %s: %w", inputPath, err)
	}
	slog.Info("formatted exam written", "path", inputPath, "bytes", len(normalized))
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	// Seed the submit token if none is stored yet.
	if err := seedSubmitToken(db, v.GetString("submit-token")); err != nil {
		return fmt.Errorf("seed submit token: %w", err)
	}

	llmClient, err := newLLMClient(v)
	if err != nil {
		return err
	}
	if err := llmClient.Ping(context.Background()); err != nil {
		slog.Warn("LLM endpoint unreachable, judge endpoint disabled", "error", err)
		llmClient = nil
	} else {
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	cfg := model.ServerConfig{
		BasePath:      basePath,
		JudgeVariant:  v.GetString("judge-variant"),
		MaxUploadSize: v.GetInt64("max-upload"),
	}

	h, err := handler.New(db, llmClient, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"model", v.GetString("llm-model"),
		"llm_url", v.GetString("llm-url"),
		"judge_variant", cfg.JudgeVariant,
		"base_path", basePath,
	)
	return http.ListenAndServe(addr, r)
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	records, err := db.ExportValidated()
	if err != nil {
		return fmt.Errorf("export submissions: %w", err)
	}

	export := model.DatasetExport{
		Dataset:     v.GetString("dataset"),
		GeneratedAt: time.Now().UTC(),
		NumExams:    len(records),
		Exams:       records,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	return writeOutput(v.GetString("output"), string(data)+"\n")
}

func newLLMClient(v *viper.Viper) (*llm.Client, error) {
	variant := strings.ToLower(strings.TrimSpace(v.GetString("judge-variant")))
	if !prompts.IsValidVariant(variant) {
		slog.Warn("invalid judge-variant, using standard", "variant", variant)
		variant = string(prompts.VariantStandard)
	}
	client, err := llm.New(
		v.GetString("llm-url"),
		v.GetString("llm-key"),
		v.GetString("llm-model"),
		variant,
	)
	if err != nil {
		return nil, fmt.Errorf("create LLM client: %w", err)
	}
	return client, nil
}

func readInput(path string) (string, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

func writeOutput(path, content string) error {
	if path == "" || path == "-" {
		_, err := io.WriteString(os.Stdout, content)
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func seedSubmitToken(db *store.Store, token string) error {
	existing, err := db.GetSubmitTokenHash()
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}

	if token == "" {
		return fmt.Errorf("submit token is required: set --submit-token flag or EXAMBENCH_SUBMIT_TOKEN env var")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash submit token: %w", err)
	}
	if err := db.SetSubmitTokenHash(string(hash)); err != nil {
		return fmt.Errorf("store submit token: %w", err)
	}

	slog.Info("seeded submit token")
	return nil
}
