package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adirsaban8-oss/ADIRS/internal/metrics"
	"github.com/adirsaban8-oss/ADIRS/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	TaskBookingConfirmed = "booking_confirmed"
	TaskBookingCancelled = "booking_cancelled"
)

// Task is a queued notification job.
type Task struct {
	Kind        string              `json:"kind"`
	Appointment *models.Appointment `json:"appointment"`
	Attempt     int                 `json:"attempt"`
	LastError   string              `json:"last_error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
}

// Sender delivers appointment notifications.
type Sender interface {
	BookingConfirmed(ctx context.Context, appt *models.Appointment) error
	BookingCancelled(ctx context.Context, appt *models.Appointment) error
}

type Options struct {
	Workers   int
	QueueSize int
	Retry     RetryPolicy
	// Redis, when set, carries the queue so pending jobs survive a restart.
	Redis *redis.Client
	// EnqueueTimeout bounds the redis push made on the caller's path.
	EnqueueTimeout time.Duration
}

// NotificationWorker sends booking notifications off the request path.
type NotificationWorker struct {
	sender        Sender
	redis         *redis.Client
	retryPolicy   RetryPolicy
	workers       int
	queue         chan Task
	redisQueueKey string
	deadLetterKey string
	sendTimeout   time.Duration
	pushTimeout   time.Duration
	logger        *zerolog.Logger
	wg            sync.WaitGroup
}

func NewNotificationWorker(sender Sender, opts Options, logger *zerolog.Logger) *NotificationWorker {
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 128
	}
	if opts.Retry.InitialDelay == 0 {
		opts.Retry.InitialDelay = 5 * time.Second
	}
	if opts.Retry.MaxDelay == 0 {
		opts.Retry.MaxDelay = time.Minute
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = 250 * time.Millisecond
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &NotificationWorker{
		sender:        sender,
		redis:         opts.Redis,
		retryPolicy:   opts.Retry,
		workers:       opts.Workers,
		queue:         make(chan Task, opts.QueueSize),
		redisQueueKey: "notifications:queue",
		deadLetterKey: "notifications:deadletter",
		sendTimeout:   30 * time.Second,
		pushTimeout:   opts.EnqueueTimeout,
		logger:        logger,
	}
}

// Enqueue schedules a notification and never blocks. It fails only when the
// job cannot be queued anywhere.
func (w *NotificationWorker) Enqueue(ctx context.Context, kind string, appt *models.Appointment) error {
	if kind != TaskBookingConfirmed && kind != TaskBookingCancelled {
		return fmt.Errorf("unknown notification kind: %s", kind)
	}
	if appt == nil {
		return errors.New("appointment is required")
	}
	return w.enqueue(ctx, Task{Kind: kind, Appointment: appt, CreatedAt: time.Now()})
}

func (w *NotificationWorker) enqueue(ctx context.Context, task Task) error {
	if w.redis != nil {
		pushCtx, cancel := context.WithTimeout(ctx, w.pushTimeout)
		err := w.pushRedis(pushCtx, w.redisQueueKey, task)
		cancel()
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Msg("redis push failed, using memory queue")
	}

	select {
	case w.queue <- task:
		return nil
	default:
		metrics.IncNotification("queue", "dropped")
		w.logger.Error().Str("kind", task.Kind).Str("appointment_id", task.Appointment.ID).Msg("notification queue full, job dropped")
		return errors.New("notification queue full")
	}
}

// Start runs the workers until ctx is done, then waits for in-flight sends.
func (w *NotificationWorker) Start(ctx context.Context) {
	w.logger.Info().Int("workers", w.workers).Msg("notification worker started")
	defer w.logger.Info().Msg("notification worker stopped")

	if w.redis != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.pumpRedis(ctx)
		}()
	}
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case task := <-w.queue:
					w.process(ctx, &task)
				}
			}
		}()
	}
	w.wg.Wait()
}

// pumpRedis moves jobs from the redis list into the local channel.
func (w *NotificationWorker) pumpRedis(ctx context.Context) {
	for ctx.Err() == nil {
		task, ok := w.popRedis(ctx)
		if !ok {
			continue
		}
		select {
		case w.queue <- task:
		case <-ctx.Done():
			// put it back for the next process
			_ = w.pushRedis(context.Background(), w.redisQueueKey, task)
			return
		}
	}
}

func (w *NotificationWorker) popRedis(ctx context.Context) (Task, bool) {
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Task{}, false
		}
		w.logger.Warn().Err(err).Msg("redis BRPOP failed")
		select {
		case <-ctx.Done():
		case <-time.After(time.Second):
		}
		return Task{}, false
	}
	if len(res) != 2 {
		return Task{}, false
	}
	var task Task
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil || task.Appointment == nil {
		w.logger.Error().Err(err).Msg("undecodable notification job discarded")
		return Task{}, false
	}
	return task, true
}

func (w *NotificationWorker) process(ctx context.Context, task *Task) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.sendTimeout)
	defer cancel()

	var err error
	switch task.Kind {
	case TaskBookingConfirmed:
		err = w.sender.BookingConfirmed(sendCtx, task.Appointment)
	case TaskBookingCancelled:
		err = w.sender.BookingCancelled(sendCtx, task.Appointment)
	default:
		err = fmt.Errorf("unknown notification kind: %s", task.Kind)
	}
	if err != nil {
		w.retryOrFail(ctx, task, err)
		return
	}
	w.logger.Debug().Str("kind", task.Kind).Str("appointment_id", task.Appointment.ID).Msg("notification sent")
}

func (w *NotificationWorker) retryOrFail(ctx context.Context, task *Task, cause error) {
	task.Attempt++
	task.LastError = cause.Error()

	if w.retryPolicy.Exhausted(task.Attempt) {
		w.logger.Error().Err(cause).
			Str("kind", task.Kind).
			Str("appointment_id", task.Appointment.ID).
			Int("attempts", task.Attempt).
			Msg("notification failed")
		w.pushDeadLetter(ctx, task)
		return
	}

	delay := w.retryPolicy.NextDelay(task.Attempt)
	w.logger.Warn().Err(cause).Str("kind", task.Kind).Dur("retry_in", delay).Msg("notification failed, will retry")
	retry := *task
	time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		_ = w.enqueue(ctx, retry)
	})
}

func (w *NotificationWorker) pushRedis(ctx context.Context, key string, task Task) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}

func (w *NotificationWorker) pushDeadLetter(ctx context.Context, task *Task) {
	if w.redis == nil {
		return
	}
	if err := w.pushRedis(context.WithoutCancel(ctx), w.deadLetterKey, *task); err != nil {
		w.logger.Warn().Err(err).Msg("dead-letter push failed")
	}
}
