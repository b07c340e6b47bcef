// Provides recurring one-way sync (pull/push) between tables and remote HTTP endpoints.

package syncsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/maruel/ksid"

	"github.com/slotdb/slotdb/internal/remote"
	"github.com/slotdb/slotdb/internal/table"
)

// ErrUnknownJob is returned when a job ID does not name a registered job.
var ErrUnknownJob = errors.New("unknown sync job")

// PullJob configures a recurring pull: GET the URL, parse the body as a
// record array, and replace the target table's contents wholesale.
type PullJob struct {
	Table    string
	URL      string
	Interval time.Duration
	Headers  map[string]string
}

// Validate checks the job configuration.
func (j *PullJob) Validate() error {
	if j.Table == "" {
		return errors.New("pull job: table is required")
	}
	if j.URL == "" {
		return errors.New("pull job: url is required")
	}
	if j.Interval <= 0 {
		return errors.New("pull job: interval must be positive")
	}
	return nil
}

// PushJob configures a recurring push: read the source table and issue one
// request per record, sequentially, with the record as JSON body.
type PushJob struct {
	Table    string
	URL      string
	Interval time.Duration
	Headers  map[string]string
	// Method is POST or PUT. Empty defaults to POST.
	Method string
}

// Validate checks the job configuration and applies the method default.
func (j *PushJob) Validate() error {
	if j.Table == "" {
		return errors.New("push job: table is required")
	}
	if j.URL == "" {
		return errors.New("push job: url is required")
	}
	if j.Interval <= 0 {
		return errors.New("push job: interval must be positive")
	}
	switch j.Method {
	case "":
		j.Method = http.MethodPost
	case http.MethodPost, http.MethodPut:
	default:
		return fmt.Errorf("push job: method must be POST or PUT, got %q", j.Method)
	}
	return nil
}

// PushReport counts the outcome of one push pass.
type PushReport struct {
	Sent   int
	Failed int
}

// JobStatus is a point-in-time snapshot of one registered job.
type JobStatus struct {
	ID        ksid.ID       `json:"id"`
	Kind      string        `json:"kind"` // "pull" or "push"
	Table     string        `json:"table"`
	URL       string        `json:"url"`
	Interval  time.Duration `json:"interval"`
	Passes    int           `json:"passes"`
	Failures  int           `json:"failures"`
	LastError string        `json:"last_error,omitempty"`
}

// job is the registry entry for one running loop.
type job struct {
	status JobStatus
	cancel context.CancelFunc
}

// Service runs recurring sync jobs over a table store and a transfer client.
//
// Every scheduling operation returns the job's ID; Stop cancels one job and
// Close cancels all of them and waits for the loops to exit. Pass failures
// are logged and counted, never fatal to the loop.
type Service struct {
	client *remote.Client
	tables *table.Store
	log    *slog.Logger

	mu     sync.Mutex
	jobs   map[ksid.ID]*job
	active map[string]struct{} // table names with a pass in flight
	wg     sync.WaitGroup
}

// New creates a sync service. A nil logger falls back to slog.Default().
func New(client *remote.Client, tables *table.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		client: client,
		tables: tables,
		log:    logger,
		jobs:   make(map[ksid.ID]*job),
		active: make(map[string]struct{}),
	}
}

// StartPull registers a pull job and launches its loop: one pass
// immediately, then one per interval until ctx is cancelled or the job is
// stopped.
func (s *Service) StartPull(ctx context.Context, j PullJob) (ksid.ID, error) {
	if err := j.Validate(); err != nil {
		return 0, err
	}
	status := JobStatus{Kind: "pull", Table: j.Table, URL: j.URL, Interval: j.Interval}
	return s.start(ctx, status, func(ctx context.Context) error {
		return s.PullOnce(ctx, j)
	}), nil
}

// StartPush registers a push job and launches its loop: one pass
// immediately, then one per interval until ctx is cancelled or the job is
// stopped.
func (s *Service) StartPush(ctx context.Context, j PushJob) (ksid.ID, error) {
	if err := j.Validate(); err != nil {
		return 0, err
	}
	status := JobStatus{Kind: "push", Table: j.Table, URL: j.URL, Interval: j.Interval}
	return s.start(ctx, status, func(ctx context.Context) error {
		_, err := s.PushOnce(ctx, j)
		return err
	}), nil
}

// start registers the job and launches its ticker loop.
func (s *Service) start(ctx context.Context, status JobStatus, pass func(context.Context) error) ksid.ID {
	ctx, cancel := context.WithCancel(ctx)
	id := ksid.NewID()
	status.ID = id

	s.mu.Lock()
	s.jobs[id] = &job{status: status, cancel: cancel}
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.InfoContext(ctx, "Sync job started",
			"job", id, "kind", status.Kind, "table", status.Table, "url", status.URL, "interval", status.Interval)
		ticker := time.NewTicker(status.Interval)
		defer ticker.Stop()
		for {
			s.recordPass(id, pass(ctx))
			select {
			case <-ctx.Done():
				s.log.InfoContext(ctx, "Sync job stopped", "job", id, "table", status.Table)
				return
			case <-ticker.C:
			}
		}
	}()
	return id
}

// recordPass updates the job's counters after one pass.
func (s *Service) recordPass(id ksid.ID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return
	}
	j.status.Passes++
	if err != nil && !errors.Is(err, context.Canceled) {
		j.status.Failures++
		j.status.LastError = err.Error()
	}
}

// Stop cancels one job. Returns false when the ID is not registered.
func (s *Service) Stop(id ksid.ID) bool {
	s.mu.Lock()
	j, ok := s.jobs[id]
	if ok {
		delete(s.jobs, id)
	}
	s.mu.Unlock()
	if !ok {
		return false
	}
	j.cancel()
	return true
}

// Status returns the current snapshot of one job.
func (s *Service) Status(id ksid.ID) (JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return JobStatus{}, fmt.Errorf("%w: %s", ErrUnknownJob, id)
	}
	return j.status, nil
}

// Jobs returns a snapshot of every registered job, for the status endpoint.
func (s *Service) Jobs() []JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]JobStatus, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.status)
	}
	return out
}

// Close cancels every job and waits for the loops to exit.
func (s *Service) Close() {
	s.mu.Lock()
	for id, j := range s.jobs {
		j.cancel()
		delete(s.jobs, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// PullOnce runs one pull pass: GET the URL, parse the records, replace the
// target table wholesale. A request or parse failure leaves the previous
// persisted contents untouched and is returned.
func (s *Service) PullOnce(ctx context.Context, j PullJob) error {
	if err := j.Validate(); err != nil {
		return err
	}
	if !s.tryAcquire(j.Table) {
		s.log.DebugContext(ctx, "Skipping overlapping sync pass", "table", j.Table)
		return nil
	}
	defer s.release(j.Table)

	recs, err := s.client.FetchRecords(ctx, j.URL, j.Headers)
	if err != nil {
		err = fmt.Errorf("pull %s: %w", j.Table, err)
		if !errors.Is(err, context.Canceled) {
			s.log.ErrorContext(ctx, "Pull pass failed", "table", j.Table, "url", j.URL, "err", err)
		}
		return err
	}
	if err := s.tables.Open(j.Table).Replace(recs); err != nil {
		return fmt.Errorf("pull %s: %w", j.Table, err)
	}
	s.log.DebugContext(ctx, "Pull pass done", "table", j.Table, "records", len(recs))
	return nil
}

// PushOnce runs one push pass: read the full source table and issue one
// request per record, each awaited before the next. A single record's
// failure is logged and counted but does not abort the remaining records;
// the returned error is non-nil only when the pass itself cannot run.
func (s *Service) PushOnce(ctx context.Context, j PushJob) (PushReport, error) {
	if err := j.Validate(); err != nil {
		return PushReport{}, err
	}
	if !s.tryAcquire(j.Table) {
		s.log.DebugContext(ctx, "Skipping overlapping sync pass", "table", j.Table)
		return PushReport{}, nil
	}
	defer s.release(j.Table)

	var report PushReport
	for _, rec := range s.tables.Open(j.Table).All() {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		var err error
		if j.Method == http.MethodPut {
			_, err = s.client.Put(ctx, j.URL, j.Headers, rec)
		} else {
			_, err = s.client.Post(ctx, j.URL, j.Headers, rec)
		}
		if err != nil {
			report.Failed++
			if !errors.Is(err, context.Canceled) {
				s.log.ErrorContext(ctx, "Failed to push record",
					"table", j.Table, "url", j.URL, "id", rec.ID(), "err", err)
			}
			continue
		}
		report.Sent++
	}
	s.log.DebugContext(ctx, "Push pass done", "table", j.Table, "sent", report.Sent, "failed", report.Failed)
	return report, nil
}

func (s *Service) tryAcquire(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.active[name]; ok {
		return false
	}
	s.active[name] = struct{}{}
	return true
}

func (s *Service) release(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, name)
}
