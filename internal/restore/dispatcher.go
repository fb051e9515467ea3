package restore

import (
	"context"
	"errors"
	"sync"
)

// ErrDispatcherClosed is returned by synchronous calls made after Close.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// EventKind identifies which request an Event answers.
type EventKind string

const (
	EventRestorePoints EventKind = "restore-points"
	EventStorage       EventKind = "storage"
	EventCreate        EventKind = "create"
	EventDelete        EventKind = "delete"
	EventAuditRecord   EventKind = "audit-record"
	EventAuditRemove   EventKind = "audit-remove"
)

// Event carries the result of one dispatched request. Only the fields for its
// Kind are set. Err is set when the request's context ended before it ran.
type Event struct {
	RequestID uint64
	Kind      EventKind
	Points    []RestorePoint
	Storage   StorageSummary
	Result    Result
	Audit     AuditEntry
	Removed   int
	Err       error
}

type job struct {
	ctx   context.Context
	id    uint64
	kind  EventKind
	run   func(ctx context.Context) Event
	reply chan Event
}

// Dispatcher runs Service calls off the caller's goroutine and delivers their
// results as Events. Reads run concurrently and are not deduplicated.
// Mutations are executed one at a time by a single worker.
type Dispatcher struct {
	svc    *Service
	events chan Event
	jobs   chan job
	quit   chan struct{}
	stop   chan struct{}
	done   chan struct{}
	reads  sync.WaitGroup
	sends  sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	seqMu  sync.Mutex
	seq    uint64
	latest map[EventKind]uint64
}

// NewDispatcher starts the mutation worker. buffer sizes the event and job queues.
func NewDispatcher(svc *Service, buffer int) *Dispatcher {
	if buffer < 1 {
		buffer = 1
	}
	d := &Dispatcher{
		svc:    svc,
		events: make(chan Event, buffer),
		jobs:   make(chan job, buffer),
		quit:   make(chan struct{}),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
		latest: map[EventKind]uint64{},
	}
	go d.loop()
	return d
}

// Events delivers results of asynchronous requests. It is closed by Close.
func (d *Dispatcher) Events() <-chan Event {
	return d.events
}

// IsLatest reports whether ev answers the most recent request of its kind.
// Callers use it to drop results of superseded requests.
func (d *Dispatcher) IsLatest(ev Event) bool {
	d.seqMu.Lock()
	defer d.seqMu.Unlock()
	return d.latest[ev.Kind] == ev.RequestID
}

func (d *Dispatcher) nextID(kind EventKind) uint64 {
	d.seqMu.Lock()
	defer d.seqMu.Unlock()
	d.seq++
	d.latest[kind] = d.seq
	return d.seq
}

// ListRestorePoints starts a scan and returns its request id.
func (d *Dispatcher) ListRestorePoints(ctx context.Context) uint64 {
	return d.read(ctx, EventRestorePoints, func(ctx context.Context) Event {
		return Event{Points: d.svc.ListRestorePoints(ctx)}
	})
}

// StorageSummary starts a storage aggregation and returns its request id.
func (d *Dispatcher) StorageSummary(ctx context.Context) uint64 {
	return d.read(ctx, EventStorage, func(ctx context.Context) Event {
		return Event{Storage: d.svc.GetStorageSummary(ctx)}
	})
}

// CreateRestorePoint queues a create and returns its request id.
func (d *Dispatcher) CreateRestorePoint(ctx context.Context, name string) uint64 {
	id, _ := d.submit(ctx, EventCreate, d.createFn(name), nil)
	return id
}

// DeleteRestorePoint queues a delete and returns its request id.
func (d *Dispatcher) DeleteRestorePoint(ctx context.Context, ids Identifiers) uint64 {
	id, _ := d.submit(ctx, EventDelete, d.deleteFn(ids), nil)
	return id
}

// RecordAudit queues an audit append and returns its request id.
func (d *Dispatcher) RecordAudit(ctx context.Context, name, description string) uint64 {
	id, _ := d.submit(ctx, EventAuditRecord, d.recordFn(name, description), nil)
	return id
}

// DeleteAuditEntry queues an audit removal and returns its request id.
func (d *Dispatcher) DeleteAuditEntry(ctx context.Context, auditID int64) uint64 {
	id, _ := d.submit(ctx, EventAuditRemove, d.removeFn(auditID), nil)
	return id
}

// DoCreate runs a create on the mutation worker and waits for it.
func (d *Dispatcher) DoCreate(ctx context.Context, name string) (Result, error) {
	ev, err := d.do(ctx, EventCreate, d.createFn(name))
	return ev.Result, err
}

// DoDelete runs a delete on the mutation worker and waits for it.
func (d *Dispatcher) DoDelete(ctx context.Context, ids Identifiers) (Result, error) {
	ev, err := d.do(ctx, EventDelete, d.deleteFn(ids))
	return ev.Result, err
}

// DoRecordAudit runs an audit append on the mutation worker and waits for it.
func (d *Dispatcher) DoRecordAudit(ctx context.Context, name, description string) (AuditEntry, error) {
	ev, err := d.do(ctx, EventAuditRecord, d.recordFn(name, description))
	return ev.Audit, err
}

// DoDeleteAuditEntry runs an audit removal on the mutation worker and waits for it.
func (d *Dispatcher) DoDeleteAuditEntry(ctx context.Context, auditID int64) (int, error) {
	ev, err := d.do(ctx, EventAuditRemove, d.removeFn(auditID))
	return ev.Removed, err
}

func (d *Dispatcher) createFn(name string) func(context.Context) Event {
	return func(ctx context.Context) Event {
		return Event{Result: d.svc.CreateRestorePoint(ctx, name)}
	}
}

func (d *Dispatcher) deleteFn(ids Identifiers) func(context.Context) Event {
	return func(ctx context.Context) Event {
		return Event{Result: d.svc.DeleteRestorePoint(ctx, ids)}
	}
}

func (d *Dispatcher) recordFn(name, description string) func(context.Context) Event {
	return func(context.Context) Event {
		return Event{Audit: d.svc.RecordAudit(name, description)}
	}
}

func (d *Dispatcher) removeFn(auditID int64) func(context.Context) Event {
	return func(context.Context) Event {
		return Event{Removed: d.svc.DeleteAuditEntry(auditID)}
	}
}

func (d *Dispatcher) read(ctx context.Context, kind EventKind, fn func(context.Context) Event) uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return 0
	}

	id := d.nextID(kind)
	d.reads.Add(1)
	go func() {
		defer d.reads.Done()
		d.emit(finish(ctx, id, kind, fn))
	}()
	return id
}

func (d *Dispatcher) do(ctx context.Context, kind EventKind, fn func(context.Context) Event) (Event, error) {
	reply := make(chan Event, 1)
	if _, err := d.submit(ctx, kind, fn, reply); err != nil {
		return Event{}, err
	}

	// The worker still completes a job whose caller stopped waiting; the
	// result lands in the buffered reply and is discarded.
	select {
	case ev := <-reply:
		return ev, ev.Err
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (d *Dispatcher) submit(ctx context.Context, kind EventKind, fn func(context.Context) Event, reply chan Event) (uint64, error) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		return 0, ErrDispatcherClosed
	}
	d.sends.Add(1)
	d.mu.RUnlock()
	defer d.sends.Done()

	id := d.nextID(kind)
	j := job{ctx: ctx, id: id, kind: kind, run: fn, reply: reply}
	select {
	case d.jobs <- j:
		return id, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-d.quit:
		return 0, ErrDispatcherClosed
	}
}

func (d *Dispatcher) loop() {
	defer close(d.done)

	for {
		select {
		case j := <-d.jobs:
			d.run(j)
		case <-d.stop:
			// Jobs accepted before Close still run.
			for {
				select {
				case j := <-d.jobs:
					d.run(j)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) run(j job) {
	ev := finish(j.ctx, j.id, j.kind, j.run)
	if j.reply != nil {
		j.reply <- ev
		return
	}
	d.emit(ev)
}

func finish(ctx context.Context, id uint64, kind EventKind, fn func(context.Context) Event) Event {
	var ev Event
	if err := ctx.Err(); err != nil {
		ev.Err = err
	} else {
		ev = fn(ctx)
	}
	ev.RequestID = id
	ev.Kind = kind
	return ev
}

func (d *Dispatcher) emit(ev Event) {
	select {
	case d.events <- ev:
	case <-d.quit:
	}
}

// Close stops accepting requests, waits for queued mutations and in-flight
// reads to finish, then closes Events. Results not yet consumed may be dropped.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.quit)
	d.mu.Unlock()

	// Blocked submitters and emitters return once quit is closed.
	d.sends.Wait()
	close(d.stop)
	<-d.done
	d.reads.Wait()
	close(d.events)
}
