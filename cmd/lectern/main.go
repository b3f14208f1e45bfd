package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/edspace/lectern/internal/console"
	"github.com/edspace/lectern/internal/deck"
	"github.com/edspace/lectern/internal/handler"
	"github.com/edspace/lectern/internal/oracle"
	"github.com/edspace/lectern/internal/store"
	"github.com/edspace/lectern/internal/tutor"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lectern",
		Short: "Interactive AI professor for slide decks",
	}

	serve := serveCmd()
	root.AddCommand(serve, teachCmd(), exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `lectern --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func addOracleFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("oracle-provider", "openai", "Reasoning oracle provider (openai, anthropic, gemini, mock)")
	f.String("openai-api-key", "", "OpenAI API key (or set LECTERN_OPENAI_API_KEY)")
	f.String("openai-model", "gpt-4o-mini", "OpenAI model name")
	f.String("openai-base-url", "", "OpenAI-compatible API base URL (e.g. for Ollama)")
	f.String("anthropic-api-key", "", "Anthropic API key (or set LECTERN_ANTHROPIC_API_KEY)")
	f.String("anthropic-model", "claude-haiku", "Anthropic model name")
	f.String("gemini-api-key", "", "Gemini API key (or set LECTERN_GEMINI_API_KEY)")
	f.String("gemini-model", "gemini-flash", "Gemini model name")
	f.Float64("temperature", 0.7, "Oracle sampling temperature")
}

func addSessionFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Int("context-window", 0, "Conversation turns included in prompt context (0 = default)")
	f.Float64("similarity-threshold", 0, "Repetition guard similarity threshold (0 = default 0.8)")
	f.Int("similarity-window", 0, "Prior explanations compared by the guard (0 = all)")
}

func addLogFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP tutoring server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "lectern.db", "SQLite database path")
	addOracleFlags(cmd)
	addSessionFlags(cmd)
	addLogFlags(cmd)
	return cmd
}

func teachCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "teach",
		Short: "Run an interactive tutoring session in the terminal",
		RunE:  runTeach,
	}
	f := cmd.Flags()
	f.StringP("deck", "f", "", "Path to the slide deck text file (required)")
	f.StringP("professor", "p", "Andrew NG", "Professor persona (Andrew NG, David Malan, John Guttag)")
	f.Int("start-page", 1, "Page number to start from")
	addOracleFlags(cmd)
	addSessionFlags(cmd)
	addLogFlags(cmd)

	_ = cmd.MarkFlagRequired("deck")

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export stored session reports as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "lectern.db", "SQLite database path")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
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

	v.SetEnvPrefix("LECTERN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("lectern")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/lectern")
	v.AddConfigPath("/etc/lectern")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

// oracleConfig is the only place that turns flags and environment into
// oracle credentials.
func oracleConfig(v *viper.Viper) oracle.Config {
	cfg := oracle.DefaultConfig()
	cfg.Provider = v.GetString("oracle-provider")
	cfg.OpenAI.APIKey = v.GetString("openai-api-key")
	cfg.OpenAI.Model = v.GetString("openai-model")
	cfg.OpenAI.BaseURL = v.GetString("openai-base-url")
	cfg.Anthropic.APIKey = v.GetString("anthropic-api-key")
	cfg.Anthropic.Model = v.GetString("anthropic-model")
	cfg.Gemini.APIKey = v.GetString("gemini-api-key")
	cfg.Gemini.Model = v.GetString("gemini-model")
	return cfg
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	cfg := oracleConfig(v)
	if err := cfg.Validate(); err != nil {
		return err
	}
	provider, err := oracle.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("create oracle provider: %w", err)
	}
	slog.Info("oracle configured", "provider", cfg.Provider, "model", provider.ModelID())

	h := handler.New(provider, db, nil, handler.SessionDefaults{
		Temperature:         v.GetFloat64("temperature"),
		ContextWindow:       v.GetInt("context-window"),
		SimilarityThreshold: v.GetFloat64("similarity-threshold"),
		SimilarityWindow:    v.GetInt("similarity-window"),
	})

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	h.Routes(r)

	addr := v.GetString("addr")
	slog.Info("starting server", "addr", addr, "provider", cfg.Provider)
	return http.ListenAndServe(addr, r)
}

func runTeach(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	data, err := os.ReadFile(v.GetString("deck"))
	if err != nil {
		return fmt.Errorf("read deck: %w", err)
	}
	slides, err := deck.Parse(string(data))
	if err != nil {
		return fmt.Errorf("parse deck: %w", err)
	}

	cfg := oracleConfig(v)
	if err := cfg.Validate(); err != nil {
		return err
	}
	provider, err := oracle.New(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("create oracle provider: %w", err)
	}

	c := console.New(os.Stdin, os.Stdout)
	return c.Run(cmd.Context(), tutor.Config{
		Professor:           v.GetString("professor"),
		Slides:              slides,
		StartPage:           v.GetInt("start-page"),
		Provider:            provider,
		Temperature:         v.GetFloat64("temperature"),
		ContextWindow:       v.GetInt("context-window"),
		SimilarityThreshold: v.GetFloat64("similarity-threshold"),
		SimilarityWindow:    v.GetInt("similarity-window"),
	})
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	reports, err := db.ListReports()
	if err != nil {
		return fmt.Errorf("list reports: %w", err)
	}

	data, err := json.MarshalIndent(reports, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	_, _ = fmt.Fprintln(w)

	return nil
}
