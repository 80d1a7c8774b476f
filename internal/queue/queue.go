// Driftline - Offline Mutation Queue and Local Cache Sync Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/driftline

package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/tomtom215/driftline/internal/logging"
	"github.com/tomtom215/driftline/internal/store"
	"github.com/tomtom215/driftline/internal/validation"
)

// Key layout inside the store namespaces.
const (
	prefixJob     = store.PrefixQueue + "job:"
	prefixJobIdx  = store.PrefixQueue + "idx:"
	prefixDead    = store.PrefixDead + "job:"
	prefixDeadIdx = store.PrefixDead + "idx:"
)

// Dead-letter reasons.
const (
	ReasonMaxAttempts = "max_attempts"
	ReasonPermanent   = "permanent"
	ReasonManual      = "manual"
)

var (
	// ErrEmptyJobID is returned when an operation is given an empty job ID.
	ErrEmptyJobID = errors.New("job ID cannot be empty")

	// ErrJobNotFound is returned when a job (or dead letter) does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidJob is returned by Enqueue when the request cannot be replayed.
	ErrInvalidJob = errors.New("invalid job")

	// ErrInvalidPatch is returned by Touch for a negative attempt count.
	ErrInvalidPatch = errors.New("invalid job patch")
)

// Job is one deferred write: the exact HTTP request to replay plus retry
// bookkeeping. CreatedAt is the ordering key and never changes.
type Job struct {
	ID            string            `json:"id"`
	Endpoint      string            `json:"endpoint"`
	Method        string            `json:"method"`
	Body          json.RawMessage   `json:"body,omitempty"`
	Headers       map[string]string `json:"headers,omitempty"`
	Kind          string            `json:"kind,omitempty"`
	Attempts      int               `json:"attempts"`
	LastError     string            `json:"last_error,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	LastAttemptAt *time.Time        `json:"last_attempt_at,omitempty"`
}

// NewJob is a job before enqueue: everything but ID, Attempts and CreatedAt.
// Body must carry every identifier the request needs; nothing from the
// enqueuing session is added at replay time.
type NewJob struct {
	Endpoint string            `json:"endpoint" validate:"required,api_path,max=2048"`
	Method   string            `json:"method" validate:"required,mutating_method"`
	Body     json.RawMessage   `json:"body,omitempty"`
	Headers  map[string]string `json:"headers,omitempty" validate:"max=32"`
	Kind     string            `json:"kind,omitempty" validate:"max=64"`
}

// Patch sets retry bookkeeping on a queued job.
type Patch struct {
	Attempts      int       `json:"attempts"`
	LastError     string    `json:"last_error"`
	LastAttemptAt time.Time `json:"last_attempt_at,omitempty"`
}

// DeadLetter is a job that was taken out of replay.
type DeadLetter struct {
	Job
	DeadAt     time.Time `json:"dead_at"`
	Reason     string    `json:"reason"`
	StatusCode int       `json:"status_code,omitempty"`
}

// Stats describes the queue at one point in time.
type Stats struct {
	Depth           int        `json:"depth"`
	Dead            int        `json:"dead"`
	MaxAttempts     int        `json:"max_attempts"`
	OldestCreatedAt *time.Time `json:"oldest_created_at,omitempty"`
	OldestAge       float64    `json:"oldest_age_seconds"`
}

// Queue is the durable FIFO of mutation jobs. Jobs are listed in CreatedAt
// order, which is also their key order in the store.
type Queue struct {
	store   *store.Store
	clock   *Clock
	newID   func() string
	deadTTL time.Duration

	// serializes enqueue so key order matches call order
	mu sync.Mutex
}

// Option configures a Queue.
type Option func(*Queue)

// WithClock replaces the wall clock used for CreatedAt.
func WithClock(c *Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithIDGenerator replaces the UUIDv7 job ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(q *Queue) { q.newID = fn }
}

// WithDeadLetterTTL sets how long dead letters are kept. Zero keeps them forever.
func WithDeadLetterTTL(ttl time.Duration) Option {
	return func(q *Queue) { q.deadTTL = ttl }
}

// New opens the queue on s. The clock resumes after the newest persisted job
// so jobs enqueued after a restart sort after the ones already stored.
func New(ctx context.Context, s *store.Store, opts ...Option) (*Queue, error) {
	q := &Queue{
		store:   s,
		clock:   NewClock(nil),
		newID:   newJobID,
		deadTTL: s.Config().DeadLetterTTL,
	}
	for _, opt := range opts {
		opt(q)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := s.View("queue_open", func(tx *store.Tx) error {
		for _, prefix := range []string{prefixJob, prefixDead} {
			key, err := tx.Last([]byte(prefix))
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			if t, ok := createdFromKey(string(key), prefix); ok {
				q.clock.AdvanceTo(t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("open queue: %w", err)
	}

	if _, err := q.RefreshGauges(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

func newJobID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

func jobKey(prefix string, created time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefix, created.UnixNano(), id))
}

func createdFromKey(key, prefix string) (time.Time, bool) {
	rest := strings.TrimPrefix(key, prefix)
	nanos, _, ok := strings.Cut(rest, ":")
	if !ok {
		return time.Time{}, false
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	return time.Unix(0, n).UTC(), true
}

// Enqueue validates nj, assigns ID, Attempts = 0 and CreatedAt, and persists
// the job. The returned job is exactly what List will return.
func (q *Queue) Enqueue(ctx context.Context, nj NewJob) (Job, error) {
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}

	nj.Method = strings.ToUpper(strings.TrimSpace(nj.Method))
	if verr := validation.ValidateStruct(&nj); verr != nil {
		return Job{}, fmt.Errorf("%w: %w", ErrInvalidJob, verr)
	}
	if len(nj.Body) > 0 && !json.Valid(nj.Body) {
		return Job{}, fmt.Errorf("%w: body is not valid JSON", ErrInvalidJob)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	job := Job{
		ID:        q.newID(),
		Endpoint:  nj.Endpoint,
		Method:    nj.Method,
		Body:      nj.Body,
		Headers:   nj.Headers,
		Kind:      nj.Kind,
		Attempts:  0,
		CreatedAt: q.clock.Next(),
	}

	data, err := json.Marshal(&job)
	if err != nil {
		return Job{}, fmt.Errorf("marshal job: %w", err)
	}
	key := jobKey(prefixJob, job.CreatedAt, job.ID)

	err = q.store.Update("queue_enqueue", func(tx *store.Tx) error {
		if err := tx.Set(key, data); err != nil {
			return err
		}
		return tx.Set([]byte(prefixJobIdx+job.ID), key)
	})
	if err != nil {
		return Job{}, err
	}

	queueEnqueued.Inc()
	queueDepth.Inc()
	logging.Debug().
		Str("job_id", job.ID).
		Str("method", job.Method).
		Str("endpoint", job.Endpoint).
		Str("kind", job.Kind).
		Msg("Mutation enqueued")
	return job, nil
}

// List returns up to limit jobs in ascending CreatedAt order. A limit of zero
// or less returns every job. Undecodable entries are logged and skipped.
func (q *Queue) List(ctx context.Context, limit int) ([]Job, error) {
	jobs := []Job{}
	err := q.store.View("queue_list", func(tx *store.Tx) error {
		return tx.Scan([]byte(prefixJob), func(key, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var job Job
			if err := json.Unmarshal(val, &job); err != nil {
				logging.Warn().Err(err).Str("key", string(key)).Msg("Queue failed to unmarshal job")
				return nil
			}
			jobs = append(jobs, job)
			if limit > 0 && len(jobs) >= limit {
				return store.ErrStopScan
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// Get returns one queued job.
func (q *Queue) Get(ctx context.Context, id string) (Job, error) {
	if id == "" {
		return Job{}, ErrEmptyJobID
	}
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}
	var job Job
	err := q.store.View("queue_get", func(tx *store.Tx) error {
		var err error
		job, _, err = readJob(tx, prefixJobIdx, id)
		return err
	})
	return job, err
}

// readJob resolves id through an index namespace and decodes the record.
func readJob(tx *store.Tx, idxPrefix, id string) (Job, []byte, error) {
	key, err := tx.Get([]byte(idxPrefix + id))
	if errors.Is(err, store.ErrNotFound) {
		return Job{}, nil, ErrJobNotFound
	}
	if err != nil {
		return Job{}, nil, err
	}
	val, err := tx.Get(key)
	if errors.Is(err, store.ErrNotFound) {
		return Job{}, nil, ErrJobNotFound
	}
	if err != nil {
		return Job{}, nil, err
	}
	var job Job
	if err := json.Unmarshal(val, &job); err != nil {
		return Job{}, nil, &store.StorageError{Op: "queue_decode", Namespace: "queue", Key: string(key), Err: err}
	}
	return job, key, nil
}

// Remove deletes a job. Removing a job that does not exist is a no-op.
func (q *Queue) Remove(ctx context.Context, id string) error {
	if id == "" {
		return ErrEmptyJobID
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	removed := false
	err := q.store.Update("queue_remove", func(tx *store.Tx) error {
		idx := []byte(prefixJobIdx + id)
		key, err := tx.Get(idx)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		removed = true
		return tx.Delete(idx)
	})
	if err != nil {
		return err
	}
	if removed {
		queueRemoved.Inc()
		queueDepth.Dec()
		logging.Debug().Str("job_id", id).Msg("Mutation removed")
	}
	return nil
}

// Touch sets the retry bookkeeping of a job. The job keeps its position.
func (q *Queue) Touch(ctx context.Context, id string, p Patch) error {
	if id == "" {
		return ErrEmptyJobID
	}
	if p.Attempts < 0 {
		return fmt.Errorf("%w: attempts %d", ErrInvalidPatch, p.Attempts)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	err := q.store.Update("queue_touch", func(tx *store.Tx) error {
		job, key, err := readJob(tx, prefixJobIdx, id)
		if err != nil {
			return err
		}
		job.Attempts = p.Attempts
		job.LastError = p.LastError
		if !p.LastAttemptAt.IsZero() {
			at := p.LastAttemptAt.UTC()
			job.LastAttemptAt = &at
		}
		data, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		return tx.Set(key, data)
	})
	if err != nil {
		return err
	}
	queueTouched.Inc()
	return nil
}

// Bury moves a job from the queue to the dead-letter list in one transaction.
func (q *Queue) Bury(ctx context.Context, id, reason string, status int) (DeadLetter, error) {
	if id == "" {
		return DeadLetter{}, ErrEmptyJobID
	}
	if err := ctx.Err(); err != nil {
		return DeadLetter{}, err
	}
	if reason == "" {
		reason = ReasonManual
	}

	var dl DeadLetter
	err := q.store.Update("queue_bury", func(tx *store.Tx) error {
		job, key, err := readJob(tx, prefixJobIdx, id)
		if err != nil {
			return err
		}
		dl = DeadLetter{Job: job, DeadAt: time.Now().UTC(), Reason: reason, StatusCode: status}
		data, err := json.Marshal(&dl)
		if err != nil {
			return fmt.Errorf("marshal dead letter: %w", err)
		}

		deadKey := jobKey(prefixDead, job.CreatedAt, job.ID)
		if err := tx.SetWithTTL(deadKey, data, q.deadTTL); err != nil {
			return err
		}
		if err := tx.SetWithTTL([]byte(prefixDeadIdx+job.ID), deadKey, q.deadTTL); err != nil {
			return err
		}
		if err := tx.Delete(key); err != nil {
			return err
		}
		return tx.Delete([]byte(prefixJobIdx + job.ID))
	})
	if err != nil {
		return DeadLetter{}, err
	}

	queueBuried.WithLabelValues(reason).Inc()
	queueDepth.Dec()
	queueDeadDepth.Inc()
	logging.Warn().
		Str("job_id", id).
		Str("reason", reason).
		Int("status", status).
		Int("attempts", dl.Attempts).
		Str("last_error", dl.LastError).
		Msg("Mutation dead-lettered")
	return dl, nil
}

// ListDead returns up to limit dead letters in CreatedAt order.
func (q *Queue) ListDead(ctx context.Context, limit int) ([]DeadLetter, error) {
	dead := []DeadLetter{}
	err := q.store.View("queue_list_dead", func(tx *store.Tx) error {
		return tx.Scan([]byte(prefixDead), func(key, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var dl DeadLetter
			if err := json.Unmarshal(val, &dl); err != nil {
				logging.Warn().Err(err).Str("key", string(key)).Msg("Queue failed to unmarshal dead letter")
				return nil
			}
			dead = append(dead, dl)
			if limit > 0 && len(dead) >= limit {
				return store.ErrStopScan
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return dead, nil
}

// Requeue restores a dead letter at its original position with attempts reset.
func (q *Queue) Requeue(ctx context.Context, id string) (Job, error) {
	if id == "" {
		return Job{}, ErrEmptyJobID
	}
	if err := ctx.Err(); err != nil {
		return Job{}, err
	}

	var job Job
	err := q.store.Update("queue_requeue", func(tx *store.Tx) error {
		idx := []byte(prefixDeadIdx + id)
		deadKey, err := tx.Get(idx)
		if errors.Is(err, store.ErrNotFound) {
			return ErrJobNotFound
		}
		if err != nil {
			return err
		}
		val, err := tx.Get(deadKey)
		if errors.Is(err, store.ErrNotFound) {
			return ErrJobNotFound
		}
		if err != nil {
			return err
		}
		var dl DeadLetter
		if err := json.Unmarshal(val, &dl); err != nil {
			return &store.StorageError{Op: "queue_decode", Namespace: "dead", Key: string(deadKey), Err: err}
		}

		job = dl.Job
		job.Attempts = 0
		job.LastError = ""
		job.LastAttemptAt = nil

		data, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("marshal job: %w", err)
		}
		key := jobKey(prefixJob, job.CreatedAt, job.ID)
		if err := tx.Set(key, data); err != nil {
			return err
		}
		if err := tx.Set([]byte(prefixJobIdx+job.ID), key); err != nil {
			return err
		}
		if err := tx.Delete(deadKey); err != nil {
			return err
		}
		return tx.Delete(idx)
	})
	if err != nil {
		return Job{}, err
	}

	queueRequeued.Inc()
	queueDepth.Inc()
	queueDeadDepth.Dec()
	logging.Info().Str("job_id", id).Msg("Dead letter requeued")
	return job, nil
}

// PurgeDead deletes dead letters that died more than olderThan ago.
// A zero olderThan purges every dead letter.
func (q *Queue) PurgeDead(ctx context.Context, olderThan time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-olderThan)

	purged := 0
	err := q.store.Update("queue_purge_dead", func(tx *store.Tx) error {
		var victims []DeadLetter
		var keys [][]byte
		err := tx.Scan([]byte(prefixDead), func(key, val []byte) error {
			var dl DeadLetter
			if err := json.Unmarshal(val, &dl); err != nil {
				// undecodable dead letters are garbage either way
				keys = append(keys, key)
				return nil
			}
			if olderThan == 0 || dl.DeadAt.Before(cutoff) {
				victims = append(victims, dl)
				keys = append(keys, key)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		for _, dl := range victims {
			if err := tx.Delete([]byte(prefixDeadIdx + dl.ID)); err != nil {
				return err
			}
		}
		purged = len(keys)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if purged > 0 {
		queuePurged.Add(float64(purged))
		queueDeadDepth.Sub(float64(purged))
		logging.Info().Int("purged", purged).Dur("older_than", olderThan).Msg("Dead letters purged")
	}
	return purged, nil
}

// ExpireDead removes dead letters past the dead-letter TTL. Badger drops
// them on its own once the TTL passes; this keeps the index and gauges honest
// in between.
func (q *Queue) ExpireDead(ctx context.Context) (int, error) {
	if q.deadTTL <= 0 {
		return 0, nil
	}
	return q.PurgeDead(ctx, q.deadTTL)
}

// Stats scans the queue and the dead-letter list.
func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := q.store.View("queue_stats", func(tx *store.Tx) error {
		err := tx.Scan([]byte(prefixJob), func(key, val []byte) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			var job Job
			if err := json.Unmarshal(val, &job); err != nil {
				return nil
			}
			st.Depth++
			if st.OldestCreatedAt == nil {
				created := job.CreatedAt
				st.OldestCreatedAt = &created
			}
			if job.Attempts > st.MaxAttempts {
				st.MaxAttempts = job.Attempts
			}
			return nil
		})
		if err != nil {
			return err
		}
		return tx.ScanKeys([]byte(prefixDead), func([]byte) error {
			st.Dead++
			return nil
		})
	})
	if err != nil {
		return Stats{}, err
	}
	if st.OldestCreatedAt != nil {
		st.OldestAge = time.Since(*st.OldestCreatedAt).Seconds()
	}
	return st, nil
}

// RefreshGauges recomputes the depth gauges from the store.
func (q *Queue) RefreshGauges(ctx context.Context) (int, error) {
	st, err := q.Stats(ctx)
	if err != nil {
		return 0, err
	}
	queueDepth.Set(float64(st.Depth))
	queueDeadDepth.Set(float64(st.Dead))
	queueOldestAge.Set(st.OldestAge)
	return 0, nil
}

// MaintenanceTasks returns the queue's periodic store maintenance.
func (q *Queue) MaintenanceTasks() []store.MaintenanceTask {
	return []store.MaintenanceTask{
		{Name: "expire_dead_letters", Run: q.ExpireDead},
		{Name: "refresh_queue_gauges", Run: q.RefreshGauges},
	}
}
