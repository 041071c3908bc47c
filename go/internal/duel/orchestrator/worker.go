package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog/log"
)

// Run runs the event-driven orchestrator as a JetStream consumer.
// Recovery happens automatically through JetStream event replay with
// DeliverAllPolicy.
func (o *Orchestrator) Run(ctx context.Context) error {
	log.Info().
		Str("instance", o.instanceID).
		Int("workers", o.numWorkers).
		Msg("event-driven orchestrator started as JetStream consumer")

	eventCh := make(chan jetstream.Msg, eventChannelBufferSize)

	consumeCtx, err := o.consumer.Consume(func(msg jetstream.Msg) {
		select {
		case eventCh <- msg:
		case <-ctx.Done():
			msg.Nak()
		}
	})
	if err != nil {
		return fmt.Errorf("start JetStream consumer: %w", err)
	}
	defer consumeCtx.Stop()

	var wg sync.WaitGroup
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()
	o.startWorkers(workerCtx, &wg)

	defer func() {
		log.Info().Str("instance", o.instanceID).Msg("shutting down workers")
		cancelWorkers()
		wg.Wait()
		log.Info().Str("instance", o.instanceID).Msg("all workers shut down")
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("instance", o.instanceID).Msg("orchestrator shutdown requested")
			goto shutdown
		case msg := <-eventCh:
			if err := o.processEvent(ctx, msg); err != nil {
				log.Error().Err(err).Msg("failed to process event")
				msg.Nak()
			} else {
				msg.Ack()
			}
		}
	}

shutdown:

	o.activeTimersMu.Lock()
	for sessionID, timer := range o.activeTimers {
		stopAndDrainTimer(timer)
		log.Debug().Str("session_id", sessionID.String()).Msg("cancelled timer on shutdown")
	}
	o.activeTimers = make(map[uuid.UUID]clockwork.Timer)
	o.activeTimersMu.Unlock()

	return nil
}

func (o *Orchestrator) startWorkers(ctx context.Context, wg *sync.WaitGroup) {
	for i := 0; i < o.numWorkers; i++ {
		wg.Add(1)
		go o.worker(ctx, wg, i)
	}
}

// worker executes fired timers from the work channel.
func (o *Orchestrator) worker(ctx context.Context, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	log.Info().
		Str("instance", o.instanceID).
		Int("worker_id", workerID).
		Msg("worker started")

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker shutting down")
			return
		case task := <-o.workCh:
			log.Info().
				Str("session_id", task.sessionID.String()).
				Str("question_id", task.questionID.String()).
				Str("kind", task.kind.String()).
				Str("instance", o.instanceID).
				Int("worker_id", workerID).
				Msg("worker handling task")

			if err := o.handleTask(ctx, task); err != nil {
				log.Error().
					Err(err).
					Str("session_id", task.sessionID.String()).
					Str("kind", task.kind.String()).
					Str("instance", o.instanceID).
					Int("worker_id", workerID).
					Msg("worker task handling failed")
			}
		}
	}
}

// handleTask executes one fired timer. All three branches call session
// operations that are safe against stale timers: a question that moved on
// makes them no-ops.
func (o *Orchestrator) handleTask(ctx context.Context, task timerTask) error {
	switch task.kind {
	case taskOpenBuzzer:
		opened, err := o.sessions.OpenBuzzer(ctx, task.sessionID, task.questionID)
		if err != nil {
			return fmt.Errorf("open buzzer: %w", err)
		}
		if !opened {
			log.Debug().
				Str("session_id", task.sessionID.String()).
				Str("question_id", task.questionID.String()).
				Msg("buzzer open skipped, question moved on")
		}
		return nil

	case taskBuzzTimeout, taskAnswerTimeout:
		if err := o.sessions.ScoreTimeout(ctx, task.sessionID, task.questionID); err != nil {
			return fmt.Errorf("score timeout: %w", err)
		}
		return nil
	}
	return fmt.Errorf("unknown task kind %d", task.kind)
}
