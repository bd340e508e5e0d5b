package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"nubi/internal/ai"
	"nubi/internal/api"
	"nubi/internal/config"
	"nubi/internal/discord"
	"nubi/internal/identity"
	"nubi/internal/logging"
	"nubi/internal/mutation"
	"nubi/internal/persona"
	"nubi/internal/pipeline"
	"nubi/internal/runner"
	"nubi/internal/security"
	"nubi/internal/staleness"
	"nubi/internal/storage"
	"nubi/internal/workflow"
)

func main() {
	cfg := config.New()
	logging.Setup(cfg.LogPath)
	log.Info().Msg("starting nubi")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.New(cfg.StoragePath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open storage")
	}
	defer store.Close()

	state := persona.NewState(persona.WithPersistence(cfg.EmotionPersistence))
	detector := staleness.NewDetector(staleness.Config{
		MemberPatience:   cfg.MemberPatience,
		StrangerPatience: cfg.StrangerPatience,
		WarningThreshold: cfg.WarningThreshold,
		RepetitionLimit:  cfg.RepetitionLimit,
		SweepIdle:        cfg.TrackerSweepIdle,
		SweepAbove:       staleness.DefaultConfig().SweepAbove,
	})

	screener := security.NewScreener()
	provider := ai.NewProvider(cfg.AIProvider)
	workflows := workflow.NewEngine()
	if err := registerWorkflows(workflows, store, provider, state); err != nil {
		log.Fatal().Err(err).Msg("failed to register workflows")
	}

	processor := pipeline.NewProcessor(
		pipeline.Config{
			VulnerabilityRate: cfg.VulnerabilityRate,
			HotTakeRate:       cfg.HotTakeRate,
		},
		pipeline.Deps{
			State: state,
			Mutator: mutation.NewEngine(mutation.Config{
				TypoRate:          cfg.TypoRate,
				ColloquialismRate: cfg.ColloquialismRate,
				ContradictionRate: cfg.ContradictionRate,
				DoubleMessageRate: cfg.DoubleMessageRate,
			}),
			Detector: detector,
			Resolver: identity.NewResolver(store),
			Screener: screener,
			Store:    store,
			Provider: provider,
		},
	)

	bg := runner.New(state, detector, screener, runner.Intervals{
		EmotionDecay: cfg.EmotionDecayEvery,
		TraitDrift:   cfg.DriftEvery,
		TrackerSweep: cfg.TrackerSweepIdle,
	})
	if err := bg.Start(); err != nil {
		log.Fatal().Err(err).Msg("failed to start background runner")
	}
	defer bg.Stop()

	errCh := make(chan error, 2)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: api.NewServer(processor, state, workflows).Router(),
	}
	go func() {
		log.Info().Str("addr", cfg.ListenAddr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if cfg.DiscordToken != "" {
		go func() {
			if err := discord.StartBot(ctx, cfg.DiscordToken, processor); err != nil {
				errCh <- err
			}
		}()
	} else {
		log.Warn().Msg("DISCORD_TOKEN not set, running HTTP-only")
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		log.Info().Str("signal", s.String()).Msg("shutting down")
	case err := <-errCh:
		log.Error().Err(err).Msg("fatal runtime error")
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
}
