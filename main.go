package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mozo-virtual-core/server/internal/agent/catalog"
	"github.com/mozo-virtual-core/server/internal/agent/graph/nodes"
	"github.com/mozo-virtual-core/server/internal/agent/knowledge"
	"github.com/mozo-virtual-core/server/internal/agent/metrics"
	"github.com/mozo-virtual-core/server/internal/agent/persist"
	"github.com/mozo-virtual-core/server/internal/agent/session"
	"github.com/mozo-virtual-core/server/internal/agent/tracing"
	"github.com/mozo-virtual-core/server/internal/core"
	"github.com/mozo-virtual-core/server/internal/presentation/console"
	logx "github.com/mozo-virtual-core/server/pkg/logger"
)

const replyWidth = 80

var rootCmd = &cobra.Command{
	Use:   "robino",
	Short: "Robino is the virtual waiter of the restaurant",
	Long: `Robino takes orders, answers menu questions and builds recommendations
in an interactive terminal conversation. Type 'salir' to leave.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		return run(cmd.Context(), envFile)
	},
}

func init() {
	rootCmd.Flags().String("env-file", ".env", "Environment file loaded before reading configuration")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, envFile string) error {
	cfg, err := core.LoadConfig(envFile)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to load configuration")
	}
	logx.Init(logx.LoggerOpts{Environment: cfg.Env(), Level: cfg.LogLevel})

	ttl, _ := cfg.ConversationTTL()
	var remote persist.Sink
	if cfg.Redis.Enabled() {
		rdb, err := cfg.Redis.New(ctx)
		if err != nil {
			logx.Warn().Err(err).Msg("Redis unavailable - conversation log goes to the local file")
		} else {
			defer rdb.Close()
			remote = persist.NewRedisSink(rdb, ttl)
			logx.Info().Msg("Connected to Redis successfully")
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	if cfg.Metrics.Addr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Addr, reg); err != nil {
				logx.Error().Err(err).Str("addr", cfg.Metrics.Addr).Msg("Metrics server stopped")
			}
		}()
	}

	recorder := persist.NewRecorder(remote, persist.NewFileLog(cfg.Persistence.LocalLog), m)

	tracer := tracing.New(nil)
	if cfg.Tracing.File != "" {
		tp, shutdown, err := tracing.NewFileProvider(cfg.Tracing.File, cfg.Tracing.ServiceName)
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				logx.Warn().Err(err).Msg("Failed to flush traces")
			}
		}()
		tracer = tracing.New(tp)
	}

	chatModel, err := nodes.NewChatModel(ctx, nodes.ChatModelConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Agent:   &cfg.Agent,
	})
	if err != nil {
		return err
	}

	menu := catalog.Default()
	s, err := session.Start(ctx, session.Deps{
		Model:        chatModel,
		ModelName:    cfg.Agent.Model,
		Catalog:      menu,
		Retriever:    knowledge.NewMenuIndex(menu, cfg.Knowledge.MenuSearchTopK),
		Conversation: cfg.Conversation,
		Prompt:       cfg.Prompt,
		Pipeline:     cfg.Pipeline,
		Knowledge:    cfg.Knowledge,
		Recorder:     recorder,
		Metrics:      m,
		Tracer:       tracer,
	})
	if err != nil {
		return err
	}

	interactive := term.IsTerminal(int(os.Stdout.Fd()))
	render := console.Plain
	if interactive {
		render = console.NewMarkdownRenderer(replyWidth)
	}

	err = session.RunCLI(ctx, s, os.Stdin, os.Stdout,
		session.WithBanner(cfg.Prompt.RestaurantName, interactive),
		session.WithRenderer(render),
	)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
