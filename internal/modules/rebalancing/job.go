package rebalancing

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// jobTimeout bounds a scheduled run. Interactive runs inherit the request
// context instead.
const jobTimeout = 15 * time.Minute

// Job runs a scheduled rebalance over the configured universe with the
// default engine.
type Job struct {
	service *Service
	log     zerolog.Logger
}

// NewJob creates the scheduled rebalance job.
func NewJob(service *Service, log zerolog.Logger) *Job {
	return &Job{
		service: service,
		log:     log.With().Str("job", "rebalance").Logger(),
	}
}

// Run executes one rebalance over the configured universe.
func (j *Job) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	result, err := j.service.Run(ctx, Request{})
	if err != nil {
		j.log.Error().Err(err).Msg("Scheduled rebalance failed")
		return err
	}

	j.log.Info().
		Str("run_id", result.RunID).
		Str("engine", result.Engine).
		Int("scored", result.Scored).
		Int("positions", result.Positions).
		Msg("Scheduled rebalance completed")

	return nil
}

// Name returns the job name for scheduling and logging.
func (j *Job) Name() string {
	return "rebalance"
}
