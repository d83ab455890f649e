package jobs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"anisync/internal/events"
	"anisync/internal/jikan"
	"anisync/pkg/models"
)

type Kind string

const (
	KindItem Kind = "item"
	KindBulk Kind = "bulk"
)

// Job is the queue message. Ownership transfers to a worker on enqueue.
type Job struct {
	ID    string
	Kind  Kind
	MALID int64 // item jobs
	Limit int   // bulk jobs
}

var (
	ErrQueueFull = errors.New("jobs: queue full")
	ErrStopped   = errors.New("jobs: dispatcher stopped")
)

// Syncer runs one item synchronization to completion.
type Syncer interface {
	EnsureSynced(ctx context.Context, malID int64) (*models.Anime, error)
}

// Ranking fetches the upstream top listing for bulk fan-out.
type Ranking interface {
	GetTopAnime(ctx context.Context, limit int) ([]jikan.Anime, error)
}

// Broadcaster receives job lifecycle events; may be nil.
type Broadcaster interface {
	BroadcastJSON(v any)
}

// Dispatcher schedules sync jobs on a worker pool, decoupled from the
// request path. Enqueue calls only ever mean "accepted for later execution";
// outcomes are visible through the status store and the event feed.
type Dispatcher struct {
	syncer   Syncer
	ranking  Ranking
	statuses *StatusStore
	hub      Broadcaster
	workers  int

	queue  chan Job
	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
	closed bool
}

func NewDispatcher(syncer Syncer, ranking Ranking, hub Broadcaster, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 4
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Dispatcher{
		syncer:   syncer,
		ranking:  ranking,
		statuses: NewStatusStore(),
		hub:      hub,
		workers:  workers,
		queue:    make(chan Job, queueSize),
	}
}

func (d *Dispatcher) Statuses() *StatusStore { return d.statuses }

// Start launches the worker pool. Workers run until Stop or ctx cancellation;
// a job picked up before shutdown always runs to completion.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)

	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go func(n int) {
			defer d.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case job := <-d.queue:
					d.run(ctx, job)
				}
			}
		}(i)
	}
	log.Printf("[jobs] dispatcher started with %d workers", d.workers)
}

// Stop shuts the pool down: no new jobs are accepted, in-flight jobs finish,
// and anything still queued is marked failed.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	cancel := d.cancel
	d.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	d.wg.Wait()

	for {
		select {
		case job := <-d.queue:
			d.statuses.finished(job.ID, ErrStopped)
		default:
			log.Printf("[jobs] dispatcher stopped")
			return
		}
	}
}

// EnqueueItemSync schedules one EnsureSynced run and returns the job id.
func (d *Dispatcher) EnqueueItemSync(malID int64) (string, error) {
	return d.enqueue(Job{ID: uuid.NewString(), Kind: KindItem, MALID: malID})
}

// EnqueueBulkSync schedules a "top N" fan-out. The ranking fetch happens on a
// worker; if it fails, the bulk job fails and no item jobs are enqueued.
func (d *Dispatcher) EnqueueBulkSync(limit int) (string, error) {
	return d.enqueue(Job{ID: uuid.NewString(), Kind: KindBulk, Limit: limit})
}

func (d *Dispatcher) enqueue(job Job) (string, error) {
	// The record must exist before a worker can pick the job up, and the
	// closed-check must cover the send so nothing slips past Stop's drain.
	d.statuses.enqueued(job)

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		d.statuses.remove(job.ID)
		return "", ErrStopped
	}
	select {
	case d.queue <- job:
		d.mu.Unlock()
	default:
		d.mu.Unlock()
		d.statuses.remove(job.ID)
		return "", ErrQueueFull
	}

	d.broadcast(events.TypeSyncQueued, job, nil)
	return job.ID, nil
}

func (d *Dispatcher) run(ctx context.Context, job Job) {
	d.statuses.running(job.ID)

	var err error
	switch job.Kind {
	case KindItem:
		_, err = d.syncer.EnsureSynced(ctx, job.MALID)
	case KindBulk:
		err = d.runBulk(ctx, job)
	default:
		err = fmt.Errorf("unknown job kind %q", job.Kind)
	}

	d.statuses.finished(job.ID, err)
	if err != nil {
		log.Printf("[jobs] %s job %s failed: %v", job.Kind, job.ID, err)
		d.broadcast(events.TypeSyncFailed, job, err)
		return
	}
	d.broadcast(events.TypeSyncDone, job, nil)
}

// runBulk expands one bulk job into independent item jobs. Item failures are
// isolated from each other; they surface on the item jobs, not here.
func (d *Dispatcher) runBulk(ctx context.Context, job Job) error {
	top, err := d.ranking.GetTopAnime(ctx, job.Limit)
	if err != nil {
		return fmt.Errorf("fetch top ranking: %w", err)
	}

	seen := make(map[int64]struct{}, len(top))
	var dropped int
	for _, entry := range top {
		if entry.MALID == 0 {
			continue
		}
		if _, dup := seen[entry.MALID]; dup {
			continue
		}
		seen[entry.MALID] = struct{}{}
		if _, err := d.EnqueueItemSync(entry.MALID); err != nil {
			dropped++
		}
	}
	if dropped > 0 {
		return fmt.Errorf("enqueued %d of %d item jobs: %w", len(seen)-dropped, len(seen), ErrQueueFull)
	}
	log.Printf("[jobs] bulk job %s fanned out %d item jobs", job.ID, len(seen))
	return nil
}

func (d *Dispatcher) broadcast(eventType string, job Job, err error) {
	if d.hub == nil {
		return
	}
	ev := events.SyncEvent{
		Type:  eventType,
		JobID: job.ID,
		Kind:  string(job.Kind),
		MALID: job.MALID,
		At:    time.Now().UTC(),
	}
	if err != nil {
		ev.Error = err.Error()
	}
	d.hub.BroadcastJSON(ev)
}
