package main

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"
	_ "modernc.org/sqlite"

	"github.com/tabletalk-labs/tabletalk/agentcore/config"
	"github.com/tabletalk-labs/tabletalk/agentcore/executor"
	"github.com/tabletalk-labs/tabletalk/agentcore/llm"
	"github.com/tabletalk-labs/tabletalk/agentcore/nlsql"
	"github.com/tabletalk-labs/tabletalk/agentcore/observability"
	"github.com/tabletalk-labs/tabletalk/agentcore/pipeline"
	"github.com/tabletalk-labs/tabletalk/agentcore/refine"
	"github.com/tabletalk-labs/tabletalk/agentcore/safety"
	"github.com/tabletalk-labs/tabletalk/agentcore/schema"
	"github.com/tabletalk-labs/tabletalk/agentcore/summary"
)

func newAskCommand() *cobra.Command {
	var (
		maxIterations int
		showSQL       bool
		format        string
	)

	cmd := &cobra.Command{
		Use:   "ask \"question\"",
		Short: "Ask a natural-language question against the database",
		Long: `Convert a natural-language question into a validated read-only SQL
query, execute it, and answer in plain English.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			question := strings.TrimSpace(args[0])
			if question == "" {
				return fmt.Errorf("question must not be empty")
			}

			cfgPath, _ := cmd.Flags().GetString("config")
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("max-iterations") {
				cfg.MaxIterations = maxIterations
				if err := cfg.Validate(); err != nil {
					return err
				}
			}

			logger := newStdLogger(cfg.LogLevel)

			if cfg.OTLPEndpoint != "" {
				shutdown, err := observability.InitTracer("tabletalk", cfg.OTLPEndpoint)
				if err != nil {
					logger.Warn("tracing_disabled", "error", err.Error())
				} else {
					defer shutdown(cmd.Context())
				}
			}

			db, err := openDatabase(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = db.Close() }()

			p, err := buildPipeline(cfg, db, logger)
			if err != nil {
				return err
			}

			answer, err := p.Answer(cmd.Context(), question)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if format == "json" {
				return renderAnswerJSON(out, answer, showSQL)
			}

			_, _ = fmt.Fprintln(out, answer.Text)
			if showSQL && answer.Statement != "" {
				_, _ = fmt.Fprintf(out, "\nSQL: %s\n", answer.Statement)
			}
			if showSQL && answer.Rows != nil {
				_, _ = fmt.Fprintln(out)
				if err := renderRowSet(out, answer.Rows, format); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&maxIterations, "max-iterations", 3, "refinement retry budget")
	cmd.Flags().BoolVar(&showSQL, "show-sql", false, "print the approved SQL and raw rows")
	cmd.Flags().StringVar(&format, "format", "table", "output format for rows: table, json, csv, markdown")

	return cmd
}

// openDatabase opens the configured data store read path.
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	var driverName string
	switch strings.ToLower(cfg.Database.Driver) {
	case "sqlite":
		driverName = "sqlite"
	case "postgres":
		driverName = "pgx"
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Database.Driver)
	}

	db, err := sql.Open(driverName, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return db, nil
}

// buildPipeline assembles the full question-answering pipeline from config.
func buildPipeline(cfg *config.Config, db *sql.DB, logger refine.Logger) (*pipeline.Pipeline, error) {
	apiKey := cfg.ResolveAPIKey()
	if apiKey == "" {
		return nil, fmt.Errorf("no API key: set llm.api_key in the config file or the GEMINI_API_KEY environment variable")
	}

	var providerOpts []llm.GeminiOption
	if cfg.LLM.BaseURL != "" {
		providerOpts = append(providerOpts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	provider := llm.NewGeminiClient(apiKey, providerOpts...)

	generator := nlsql.NewLLMGenerator(provider, cfg.LLM.GeneratorModel)
	lexical := safety.NewLexicalValidator()
	judge := safety.NewLLMJudge(provider, cfg.LLM.JudgeModel)

	orch, err := refine.New(generator, lexical, judge, refine.Options{
		MaxIterations: cfg.MaxIterations,
		CallTimeout:   cfg.LLMTimeout(),
		Logger:        logger,
	})
	if err != nil {
		return nil, err
	}

	dialect, err := schema.DialectFromString(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		schema.NewIntrospector(db, dialect),
		orch,
		executor.NewSQLExecutor(db, cfg.QueryTimeout()),
		summary.NewLLMSummarizer(provider, cfg.LLM.SummaryModel),
		logger,
	)
}
