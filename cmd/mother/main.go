package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/mother/pkg/config"
	"github.com/go-go-golems/mother/pkg/orchestrator"
	"github.com/go-go-golems/mother/pkg/persistence/workerstore"
	"github.com/go-go-golems/mother/pkg/queryqueue"
	"github.com/go-go-golems/mother/pkg/registry"
	"github.com/go-go-golems/mother/pkg/speech"
	"github.com/go-go-golems/mother/pkg/transport"
	"github.com/go-go-golems/mother/pkg/workerclient"
)

var (
	configPath string
	logLevel   string
)

func main() {
	root := &cobra.Command{
		Use:   "mother",
		Short: "MOTHER chat orchestrator",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (trace|debug|info|warn|error)")
	root.AddCommand(newServeCmd())

	if err := root.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "parse log level %q", level)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).Level(lvl)
	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the websocket orchestrator",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

// workerLookup defers registry resolution until the orchestrator exists, so
// the worker client can be constructed first.
type workerLookup struct {
	reg *registry.Registry
}

func (l *workerLookup) Worker(name string) (registry.Worker, bool) {
	if l.reg == nil {
		return registry.Worker{}, false
	}
	return l.reg.Worker(name)
}

func serve(parent context.Context, cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := workerstore.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	bus, err := queryqueue.NewBackend(cfg.Redis)
	if err != nil {
		return errors.Wrap(err, "build queue backend")
	}

	lookup := &workerLookup{}
	client, err := workerclient.New(lookup, time.Duration(cfg.WorkerTimeoutSec)*time.Second)
	if err != nil {
		return err
	}

	synth, transcriber, err := buildSpeech(cfg.Speech, cfg.MaxPrimaryWords)
	if err != nil {
		return err
	}

	orch, err := orchestrator.New(orchestrator.Config{
		Process:          client.Process,
		Bus:              bus,
		Store:            store,
		Synthesizer:      synth,
		ContextWindow:    cfg.ContextWindow,
		MaxConversations: cfg.MaxConversations,
	})
	if err != nil {
		return err
	}
	lookup.reg = orch.Registry()

	if err := orch.Start(ctx); err != nil {
		return err
	}
	defer orch.Stop()

	if cfg.RosterPath != "" {
		workers, err := config.LoadRoster(cfg.RosterPath)
		if err != nil {
			return err
		}
		for _, w := range workers {
			orch.RegisterWorker(ctx, w)
		}
		log.Info().Int("count", len(workers)).Str("path", cfg.RosterPath).Msg("registered roster workers")
	}

	mux := http.NewServeMux()
	mux.Handle("/ws", transport.NewHandler(orch, transcriber, websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
	}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	srv := &http.Server{Addr: cfg.Addr, Handler: mux}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		log.Info().Str("addr", cfg.Addr).Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return eg.Wait()
}

func buildSpeech(cfg config.SpeechConfig, maxPrimaryWords int) (speech.Synthesizer, speech.Transcriber, error) {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second

	var transcriber speech.Transcriber
	if cfg.TranscribeURL != "" {
		codec, err := speech.NewHTTPCodec(cfg.TranscribeURL, timeout)
		if err != nil {
			return nil, nil, err
		}
		transcriber = codec
	}

	if cfg.PrimaryURL == "" {
		return nil, transcriber, nil
	}
	primary, err := speech.NewHTTPCodec(cfg.PrimaryURL, timeout)
	if err != nil {
		return nil, nil, err
	}
	var fast speech.Synthesizer
	if cfg.FastURL != "" {
		f, err := speech.NewHTTPCodec(cfg.FastURL, timeout)
		if err != nil {
			return nil, nil, err
		}
		fast = f
	}
	return speech.NewFallbackSynthesizer(primary, fast, maxPrimaryWords), transcriber, nil
}
