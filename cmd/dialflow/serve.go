package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/dialflow/dialflow"
	httpAdapter "github.com/dialflow/dialflow/internal/adapters/http"
	"github.com/dialflow/dialflow/internal/compiler"
	"github.com/dialflow/dialflow/internal/logging"
	anthropicAdapter "github.com/dialflow/dialflow/pkg/adapters/anthropic"
	"github.com/dialflow/dialflow/pkg/adapters/memory"
	openaiAdapter "github.com/dialflow/dialflow/pkg/adapters/openai"
	redisAdapter "github.com/dialflow/dialflow/pkg/adapters/redis"
	"github.com/dialflow/dialflow/pkg/flow"
	"github.com/dialflow/dialflow/pkg/ports"
)

type serveConfig struct {
	Addr           string        `validate:"required,hostname_port"`
	Graphs         []string      `validate:"required,min=1,dive,file"`
	Phrases        []string      `validate:"-"`
	RedisAddr      string        `validate:"omitempty,hostname_port"`
	FallbackMode   string        `validate:"required,oneof=reprompt route"`
	FallbackTarget string        `validate:"required_if=FallbackMode route"`
	MaxReprompts   int           `validate:"gte=0"`
	MaxSessions    int           `validate:"gte=0"`
	SessionTimeout time.Duration `validate:"gt=0"`
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP call server",
	Long: `Compiles the given graph files, publishes them, and serves the call
API. With --redis, session state, call records, and the interruption phrase
list live in Redis; otherwise everything is in-memory.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg := serveConfig{}
		cfg.Addr, _ = cmd.Flags().GetString("addr")
		cfg.Graphs, _ = cmd.Flags().GetStringSlice("graph")
		cfg.Phrases, _ = cmd.Flags().GetStringSlice("phrase")
		cfg.RedisAddr, _ = cmd.Flags().GetString("redis")
		cfg.FallbackMode, _ = cmd.Flags().GetString("fallback-mode")
		cfg.FallbackTarget, _ = cmd.Flags().GetString("fallback-target")
		cfg.MaxReprompts, _ = cmd.Flags().GetInt("max-reprompts")
		cfg.MaxSessions, _ = cmd.Flags().GetInt("max-sessions")
		cfg.SessionTimeout, _ = cmd.Flags().GetDuration("session-timeout")

		if err := validator.New().Struct(cfg); err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}

		level, err := logging.ParseLevel(mustString(cmd, "log-level"))
		if err != nil {
			return err
		}
		logger := logging.New(level)

		source := memory.NewGraphSource()
		for _, path := range cfg.Graphs {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read graph %s: %w", path, err)
			}
			def, err := compiler.Parse(data)
			if err != nil {
				return fmt.Errorf("parse graph %s: %w", path, err)
			}
			graph, warnings, err := compiler.Compile(def)
			if err != nil {
				return fmt.Errorf("compile graph %s: %w", path, err)
			}
			for _, w := range warnings {
				logger.Warn("graph warning", "graph", graph.Name(), "node", w.NodeID, "msg", w.Message)
			}
			source.Publish(graph)
			logger.Info("graph published", "name", graph.Name(), "version", graph.Version(), "nodes", graph.Len())
		}

		policy := flow.FallbackPolicy{
			Mode:         flow.FallbackMode(cfg.FallbackMode),
			MaxReprompts: cfg.MaxReprompts,
			Target:       cfg.FallbackTarget,
		}

		hub := memory.NewInputHub()
		opts := []dialflow.Option{
			dialflow.WithLogger(logger),
			dialflow.WithGraphSource(source),
			dialflow.WithTranscriber(hub),
			dialflow.WithDTMF(hub),
			dialflow.WithFallbackPolicy(policy),
			dialflow.WithMaxSessions(cfg.MaxSessions),
			dialflow.WithSessionTimeout(cfg.SessionTimeout),
			dialflow.WithJudge(pickJudge(logger)),
			dialflow.WithSpeaker(memory.NewLogCapabilities(logger)),
		}

		if cfg.RedisAddr != "" {
			rdb := goredis.NewClient(&goredis.Options{Addr: cfg.RedisAddr})
			if err := rdb.Ping(cmd.Context()).Err(); err != nil {
				return fmt.Errorf("redis ping: %w", err)
			}
			phrases := redisAdapter.NewPhraseSource(rdb, "dialflow:interrupt_phrases")
			if len(cfg.Phrases) > 0 {
				if err := phrases.Update(cmd.Context(), cfg.Phrases); err != nil {
					return fmt.Errorf("seed interrupt phrases: %w", err)
				}
			}
			opts = append(opts,
				dialflow.WithStore(redisAdapter.NewFromClient(rdb)),
				dialflow.WithLocker(redisAdapter.NewLocker(rdb, "dialflow:lock:")),
				dialflow.WithRecorder(redisAdapter.NewRecorder(rdb, "dialflow:call_records")),
				dialflow.WithPhraseSource(phrases),
			)
			logger.Info("redis backend enabled", "addr", cfg.RedisAddr)
		} else {
			opts = append(opts,
				dialflow.WithRecorder(memory.NewRecorder()),
				dialflow.WithPhraseSource(memory.NewPhraseSource(cfg.Phrases...)),
			)
		}

		engine, err := dialflow.New(opts...)
		if err != nil {
			return fmt.Errorf("initialize engine: %w", err)
		}
		defer engine.Close()

		srv := &http.Server{
			Addr:    cfg.Addr,
			Handler: httpAdapter.NewHandler(engine, hub, logger),
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("server listening", "addr", cfg.Addr)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case sig := <-shutdown:
			logger.Info("shutting down", "signal", sig.String())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Error("graceful shutdown incomplete", "err", err)
				return srv.Close()
			}
		}
		return nil
	},
}

// pickJudge selects the judgment backend from the environment: OpenAI,
// then Anthropic, then the built-in keyword heuristic for offline use.
func pickJudge(logger *slog.Logger) ports.Judge {
	switch {
	case os.Getenv("OPENAI_API_KEY") != "":
		logger.Info("judge backend", "provider", "openai")
		return openaiAdapter.NewJudge()
	case os.Getenv("ANTHROPIC_API_KEY") != "":
		logger.Info("judge backend", "provider", "anthropic")
		return anthropicAdapter.NewJudge()
	default:
		logger.Info("judge backend", "provider", "keyword")
		return memory.KeywordJudge{}
	}
}

func mustString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "localhost:8080", "Address to listen on")
	serveCmd.Flags().StringSliceP("graph", "g", nil, "Graph definition file (repeatable)")
	serveCmd.Flags().StringSlice("phrase", []string{"stop", "wait", "hold on"}, "Interruption phrase (repeatable)")
	serveCmd.Flags().String("redis", "", "Redis address for sessions, records, and phrases")
	serveCmd.Flags().String("fallback-mode", "reprompt", "Fallback policy mode (reprompt, route)")
	serveCmd.Flags().String("fallback-target", "", "Fallback target node id")
	serveCmd.Flags().Int("max-reprompts", 2, "Reprompt ceiling for the reprompt fallback mode")
	serveCmd.Flags().Int("max-sessions", 0, "Maximum concurrent calls (0 = unbounded)")
	serveCmd.Flags().Duration("session-timeout", 30*time.Second, "Wait for caller input before ending the call")
}
