package filament

import (
	"fmt"
	"sync"
	"time"
)

// QueueClass selects which ordered queue a job lands in. A drain always
// empties pre jobs before default jobs before post jobs, each queue FIFO
// in first-enqueue order.
type QueueClass uint8

const (
	// QueuePre runs before the default queue in every drain.
	QueuePre QueueClass = iota

	// QueueDefault is where triggered subscribers land unless configured
	// otherwise.
	QueueDefault

	// QueuePost runs after the default queue in every drain.
	QueuePost

	queueClasses
)

// String returns a human-readable queue name.
func (q QueueClass) String() string {
	switch q {
	case QueuePre:
		return "pre"
	case QueueDefault:
		return "default"
	case QueuePost:
		return "post"
	default:
		return "unknown"
	}
}

// Job is a schedulable unit of work with stable identity. Scheduling a job
// that is already pending collapses into the existing entry: by default
// the newest args win; a merge function can accumulate them instead.
type Job struct {
	id    uint64
	fn    func(args []any)
	merge func(next, prev []any) []any

	// pending state, guarded by the owning scheduler's mutex.
	queued bool
	args   []any
}

// NewJob wraps fn as a job with a fresh identity.
func NewJob(fn func(args []any)) *Job {
	return &Job{id: nextID(), fn: fn}
}

// WithMerge configures how args from repeated schedules of a pending job
// combine, and returns the job for chaining. next is the newly scheduled
// args, prev the args already pending.
func (j *Job) WithMerge(fn func(next, prev []any) []any) *Job {
	j.merge = fn
	return j
}

// ID returns the job's identity, the deduplication key.
func (j *Job) ID() uint64 {
	return j.id
}

// Scheduler owns the ordered, deduplicated job queues and the asynchronous
// drain that empties them. The zero value is not usable; use NewScheduler.
type Scheduler struct {
	mu   sync.Mutex
	idle *sync.Cond

	queues [queueClasses][]*Job

	// flushArmed is true from the moment a drain is scheduled until the
	// queues are confirmed empty, so only one drain is in flight.
	flushArmed bool

	// draining counts drains currently executing, including one that has
	// already disarmed but is still inside its final job.
	draining int

	// batchDepth defers drain arming until the outermost batch ends.
	batchDepth int

	// onError receives panics recovered from asynchronously drained
	// jobs. Defaults to Warnf.
	onError func(error)
}

// NewScheduler creates an empty scheduler.
func NewScheduler() *Scheduler {
	s := &Scheduler{}
	s.idle = sync.NewCond(&s.mu)
	return s
}

// OnError routes drain-time panics to fn instead of Warnf. Errors from one
// job never prevent the remaining jobs in the same drain from running.
func (s *Scheduler) OnError(fn func(error)) *Scheduler {
	s.mu.Lock()
	s.onError = fn
	s.mu.Unlock()
	return s
}

// Schedule enqueues job into the given queue with args, arming an
// asynchronous drain if none is in flight. A job already pending collapses
// into its existing entry.
func (s *Scheduler) Schedule(q QueueClass, job *Job, args ...any) {
	if q >= queueClasses {
		q = QueueDefault
	}

	s.mu.Lock()
	if job.queued {
		if job.merge != nil {
			job.args = job.merge(args, job.args)
		} else {
			job.args = args
		}
		s.mu.Unlock()
		return
	}
	job.queued = true
	job.args = args
	s.queues[q] = append(s.queues[q], job)

	arm := !s.flushArmed && s.batchDepth == 0
	if arm {
		s.flushArmed = true
	}
	s.mu.Unlock()

	if arm {
		if Debug.LogScheduler {
			Warnf("scheduler: drain armed (%s)", q)
		}
		go s.drain(true)
	}
}

// FlushSync drains all pending queues on the calling goroutine, pre before
// default before post. Panics from jobs propagate to the caller.
func (s *Scheduler) FlushSync() {
	s.mu.Lock()
	s.flushArmed = true
	s.mu.Unlock()
	s.drain(false)
}

// Wait blocks until no drain is in flight and all queues are empty.
// Intended for tests and shutdown paths.
func (s *Scheduler) Wait() {
	s.mu.Lock()
	for s.flushArmed || s.draining > 0 || s.pendingLocked() > 0 {
		s.idle.Wait()
	}
	s.mu.Unlock()
}

// Pending reports the number of jobs currently queued.
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingLocked()
}

// StartBatch suspends drain arming until the matching EndBatch.
func (s *Scheduler) StartBatch() {
	s.mu.Lock()
	s.batchDepth++
	s.mu.Unlock()
}

// EndBatch closes one batch level. When the outermost batch ends with jobs
// pending, a drain is armed.
func (s *Scheduler) EndBatch() {
	s.mu.Lock()
	if s.batchDepth > 0 {
		s.batchDepth--
	}
	arm := s.batchDepth == 0 && !s.flushArmed && s.pendingLocked() > 0
	if arm {
		s.flushArmed = true
	}
	s.mu.Unlock()

	if arm {
		go s.drain(true)
	}
}

// Batch runs fn with drain arming suspended; dependents of every write
// inside fn are notified once, after fn returns. Batches nest.
func (s *Scheduler) Batch(fn func()) {
	s.StartBatch()
	defer s.EndBatch()
	fn()
}

func (s *Scheduler) pendingLocked() int {
	n := 0
	for _, q := range s.queues {
		n += len(q)
	}
	return n
}

// next pops the highest-priority pending job. Caller holds s.mu.
func (s *Scheduler) next() *Job {
	for q := range s.queues {
		if len(s.queues[q]) > 0 {
			job := s.queues[q][0]
			s.queues[q] = s.queues[q][1:]
			return job
		}
	}
	return nil
}

// drain empties the queues, re-checking the pre queue after every job so
// late-arriving pre work still runs before queued post work. isolate
// selects whether job panics are contained (asynchronous drains) or
// propagated (FlushSync).
func (s *Scheduler) drain(isolate bool) {
	start := time.Now()
	ran := 0

	s.mu.Lock()
	s.draining++
	s.mu.Unlock()

	defer func() {
		// Runs on panic too, so a failing FlushSync never wedges the
		// scheduler with flushArmed stuck true.
		s.mu.Lock()
		s.flushArmed = false
		s.draining--
		s.idle.Broadcast()
		s.mu.Unlock()

		if ran > 0 {
			fireFlush(FlushEvent{Jobs: ran, Duration: time.Since(start), When: time.Now()})
		}
		if Debug.LogScheduler {
			Warnf("scheduler: drained %d jobs in %s", ran, time.Since(start))
		}
	}()

	for {
		s.mu.Lock()
		job := s.next()
		if job == nil {
			// Disarm under the same lock acquisition as the emptiness
			// check: a concurrent Schedule either sees the armed drain
			// and lands its job in a queue this loop would have found,
			// or sees it disarmed and arms a fresh one.
			s.flushArmed = false
			s.idle.Broadcast()
			s.mu.Unlock()
			return
		}
		args := job.args
		job.args = nil
		job.queued = false
		s.mu.Unlock()

		ran++
		s.runJob(job, args, isolate)
	}
}

func (s *Scheduler) runJob(job *Job, args []any, isolate bool) {
	if !isolate {
		job.fn(args)
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.reportError(toError(r))
		}
	}()
	job.fn(args)
}

func (s *Scheduler) reportError(err error) {
	s.mu.Lock()
	handler := s.onError
	s.mu.Unlock()
	if handler != nil {
		handler(err)
		return
	}
	Warnf("scheduler: job panicked: %v", err)
}

// toError normalizes a recovered panic value.
func toError(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return fmt.Errorf("%v", r)
}

// defaultScheduler serves subscribers that were not given their own.
var defaultScheduler = NewScheduler()

// DefaultScheduler returns the process-wide scheduler.
func DefaultScheduler() *Scheduler {
	return defaultScheduler
}

// FlushSync drains the default scheduler synchronously.
func FlushSync() {
	defaultScheduler.FlushSync()
}

// Wait blocks until the default scheduler is idle.
func Wait() {
	defaultScheduler.Wait()
}

// Batch runs fn with the default scheduler's drain arming suspended, so
// multiple writes notify their dependents once.
func Batch(fn func()) {
	defaultScheduler.Batch(fn)
}
