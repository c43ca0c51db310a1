package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog/log"

	"ladder-bot/internal/pkg/lease"
	"ladder-bot/internal/service"
)

// Scheduler drives the sweeper and the signup tick on fixed intervals.
type Scheduler struct {
	cron    gocron.Scheduler
	sweeper *Sweeper
	signups *service.SignupService
	locker  lease.Locker

	ctx    context.Context
	cancel context.CancelFunc
}

// New registers the sweep and signup jobs. Nothing runs until Start.
func New(sweeper *Sweeper, signups *service.SignupService, locker lease.Locker, sweepEvery, tickEvery time.Duration) (*Scheduler, error) {
	cron, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron,
		sweeper: sweeper,
		signups: signups,
		locker:  locker,
		ctx:     ctx,
		cancel:  cancel,
	}

	if _, err := cron.NewJob(
		gocron.DurationJob(sweepEvery),
		gocron.NewTask(s.runSweep),
		gocron.WithName("sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to register sweep job: %w", err)
	}

	if signups != nil {
		if _, err := cron.NewJob(
			gocron.DurationJob(tickEvery),
			gocron.NewTask(s.runSignupTick),
			gocron.WithName("signup-tick"),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to register signup job: %w", err)
		}
	}

	return s, nil
}

// Start begins running jobs.
func (s *Scheduler) Start() {
	s.cron.Start()
	log.Info().Int("jobs", len(s.cron.Jobs())).Msg("Scheduler started")
}

// Shutdown stops the jobs and waits for running ones to finish.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.cron.Shutdown()
}

func (s *Scheduler) runSweep() {
	if _, err := s.sweeper.RunOnce(s.ctx); err != nil {
		log.Error().Err(err).Msg("Sweep failed")
	}
}

func (s *Scheduler) runSignupTick() {
	_, err := lease.Run(s.ctx, s.locker, signupTickLease, time.Minute, func(ctx context.Context) error {
		res, err := s.signups.Tick(ctx)
		if err != nil {
			return err
		}
		if res.Closed != nil {
			log.Info().Int64("window_id", res.Closed.ID).Msg("Signup window closed by schedule")
		}
		if res.Opened != nil {
			log.Info().Int64("window_id", res.Opened.ID).Msg("Signup window opened by schedule")
		}
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("Signup tick failed")
	}
}
