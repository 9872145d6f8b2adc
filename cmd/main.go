package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"linksummary/internal/bot"
	"linksummary/internal/config"
	"linksummary/internal/fetcher"
	"linksummary/internal/pipeline"
	"linksummary/internal/summarizer"
	"linksummary/internal/web"

	"github.com/spf13/cobra"
)

const spinnerInterval = 120 * time.Millisecond

var errSummaryFailed = errors.New("summary failed")

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err = newRootCommand(&cfg).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

type app struct {
	cfg   *config.Config
	level slog.LevelVar
	log   *slog.Logger
}

func newRootCommand(cfg *config.Config) *cobra.Command {
	a := &app{cfg: cfg}

	root := &cobra.Command{
		Use:           "linksummary",
		Short:         "Summarize YouTube videos and web pages with an LLM",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var out io.Writer = os.Stdout
			if cmd.Name() == "summarize" {
				out = os.Stderr
			}
			return a.init(out)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&cfg.Provider, "provider", cfg.Provider, "model provider (openai or ollama)")
	flags.StringVar(&cfg.Model, "model", cfg.Model, "model name")
	flags.StringVar(&cfg.BaseURL, "base-url", cfg.BaseURL, "inference base URL (default Groq for openai, OLLAMA_HOST for ollama)")
	flags.StringVar(&cfg.ChainStrategy, "strategy", cfg.ChainStrategy, "chain strategy (stuff or map-reduce)")
	flags.StringVar(&cfg.LanguagePrimary, "lang", cfg.LanguagePrimary, "primary transcript language")
	flags.StringVar(&cfg.LanguageSecondary, "lang-fallback", cfg.LanguageSecondary, "secondary transcript language")
	flags.StringVar(&cfg.UserAgent, "user-agent", cfg.UserAgent, "User-Agent for fetch requests")
	flags.Int64Var(&cfg.MaxPageBytes, "max-page-bytes", cfg.MaxPageBytes, "maximum web page body size in bytes")
	flags.BoolVar(&cfg.TLSVerify, "tls-verify", cfg.TLSVerify, "verify TLS certificates of web pages")
	flags.IntVar(&cfg.SummaryWords, "words", cfg.SummaryWords, "advisory summary length in words")
	flags.StringVar(&cfg.Prompt, "prompt", cfg.Prompt, "custom prompt with a {text} placeholder")
	flags.DurationVar(&cfg.FetchTimeout, "fetch-timeout", cfg.FetchTimeout, "timeout per fetch call")
	flags.DurationVar(&cfg.InferenceTimeout, "inference-timeout", cfg.InferenceTimeout, "timeout per model call")
	flags.IntVar(&cfg.MapConcurrency, "map-concurrency", cfg.MapConcurrency, "parallel map calls")
	flags.Float64Var(&cfg.ModelRPS, "model-rps", cfg.ModelRPS, "model calls per second, 0 means unlimited")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	root.AddCommand(
		a.summarizeCommand(),
		a.serveCommand(),
		a.botCommand(),
	)

	return root
}

func (a *app) init(out io.Writer) error {
	a.cfg.Normalize()

	a.level.Set(a.cfg.SlogLevel())
	a.log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: &a.level}))
	slog.SetDefault(a.log)

	if err := a.cfg.Validate(); err != nil {
		a.log.Error("Invalid configuration",
			"error", err)

		return fmt.Errorf("validate config: %w", err)
	}

	return nil
}

func (a *app) newPipeline() (*pipeline.Pipeline, error) {
	tmpl, err := summarizer.ParseTemplate(a.cfg.Prompt, a.cfg.SummaryWords)
	if err != nil {
		return nil, fmt.Errorf("parse prompt: %w", err)
	}

	f := fetcher.New(fetcher.Options{
		UserAgent:         a.cfg.UserAgent,
		TLSVerify:         a.cfg.TLSVerify,
		Timeout:           a.cfg.FetchTimeout,
		MaxPageBytes:      a.cfg.MaxPageBytes,
		LanguagePrimary:   a.cfg.LanguagePrimary,
		LanguageSecondary: a.cfg.LanguageSecondary,
	}, a.log)

	modelCfg := summarizer.ModelConfig{
		Provider: a.cfg.Provider,
		Model:    a.cfg.Model,
		BaseURL:  a.cfg.BaseURL,
		RPS:      a.cfg.ModelRPS,
	}

	newModel := func(credential string) (summarizer.Model, error) {
		c := modelCfg
		c.Credential = credential
		return summarizer.NewModel(c)
	}

	return pipeline.New(f, newModel, pipeline.Options{
		Strategy:         a.cfg.ChainStrategy,
		MapConcurrency:   a.cfg.MapConcurrency,
		Template:         tmpl,
		InferenceTimeout: a.cfg.InferenceTimeout,
	}, a.log), nil
}

func (a *app) summarizeCommand() *cobra.Command {
	var apiKey string

	cmd := &cobra.Command{
		Use:   "summarize <url>",
		Short: "Summarize a single URL and print the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiKey == "" {
				apiKey = a.cfg.APIKey
			}

			p, err := a.newPipeline()
			if err != nil {
				return err
			}

			stopSpinner := startSpinner(cmd.ErrOrStderr(), "Fetching and summarizing...")
			res := p.Run(cmd.Context(), pipeline.Request{URL: args[0], Credential: apiKey})
			stopSpinner()

			if !res.OK() {
				fmt.Fprintln(cmd.ErrOrStderr(), res.Message())
				return errSummaryFailed
			}

			fmt.Fprintln(cmd.OutOrStdout(), res.Summary)

			return nil
		},
	}

	cmd.Flags().StringVar(&apiKey, "api-key", "", "model API key (default LINKSUMMARY_API_KEY)")

	return cmd
}

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the web form and JSON API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := a.newPipeline()
			if err != nil {
				return err
			}

			srv := web.NewServer(p, a.cfg.ChainStrategy, a.cfg.RequestTimeout, a.log)
			if err = srv.ListenAndServe(cmd.Context(), a.cfg.HTTPAddr); err != nil {
				a.log.ErrorContext(cmd.Context(), "Web server failed",
					"error", err,
					"addr", a.cfg.HTTPAddr)

				return err
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&a.cfg.HTTPAddr, "addr", a.cfg.HTTPAddr, "listen address")

	return cmd
}

func (a *app) botCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bot",
		Short: "Run the Telegram bot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			start := time.Now()

			if a.cfg.TelegramToken == "" {
				a.log.ErrorContext(ctx, "TELEGRAM_TOKEN is required",
					"envVar", "TELEGRAM_TOKEN")

				return errors.New("TELEGRAM_TOKEN is required")
			}

			p, err := a.newPipeline()
			if err != nil {
				return err
			}

			botInst, err := bot.New(a.cfg.TelegramToken, p, bot.Options{
				AllowedUsers:      a.cfg.AllowedUsers,
				DefaultCredential: a.cfg.APIKey,
				DefaultStrategy:   a.cfg.ChainStrategy,
				RequestTimeout:    a.cfg.RequestTimeout,
			}, a.log)
			if err != nil {
				a.log.ErrorContext(ctx, "Failed to initialize bot",
					"error", err,
					"allowedUsersCount", len(a.cfg.AllowedUsers))

				return err
			}
			defer botInst.Stop()

			a.log.InfoContext(ctx, "Bot is started",
				"allowedUsersCount", len(a.cfg.AllowedUsers),
				"updateTimeoutSeconds", bot.BotUpdateTimeout)

			botInst.Start(ctx)

			a.log.InfoContext(ctx, "Bot is stopped",
				"uptimeSeconds", time.Since(start).Seconds())

			return nil
		},
	}
}

// startSpinner draws a spinner line on w until the returned func is called.
func startSpinner(w io.Writer, label string) func() {
	frames := []rune("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")
	done := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		t := time.NewTicker(spinnerInterval)
		defer t.Stop()

		for i := 0; ; i++ {
			fmt.Fprintf(w, "\r%c %s", frames[i%len(frames)], label)

			select {
			case <-done:
				fmt.Fprint(w, "\r\033[K")
				return
			case <-t.C:
			}
		}
	}()

	return func() {
		close(done)
		<-stopped
	}
}
