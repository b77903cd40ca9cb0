package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/cuongbtq/reminder-be/internal/scheduler/domain"
	"github.com/cuongbtq/reminder-be/internal/scheduler/storage"
)

// fakeStore is an in-memory job store honoring the same uniqueness
// guarantees as the Postgres schema: (job_id, period_key) for runs and
// (job_run_id, idempotency_key) for confirmations.
type fakeStore struct {
	mu            sync.Mutex
	jobs          map[string]*domain.Job
	runs          map[string]*domain.JobRun
	reminders     []domain.Reminder
	confirmations map[string]*domain.Confirmation
	recipients    map[string]*domain.Recipient
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:          map[string]*domain.Job{},
		runs:          map[string]*domain.JobRun{},
		confirmations: map[string]*domain.Confirmation{},
		recipients:    map[string]*domain.Recipient{},
	}
}

func (f *fakeStore) addRecipient(userID, target string, enabled bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recipients[userID] = &domain.Recipient{
		UserID:        userID,
		PushTarget:    &target,
		NotifyEnabled: enabled,
	}
}

func (f *fakeStore) UpsertRecipient(_ context.Context, rec *domain.Recipient) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *rec
	f.recipients[rec.UserID] = &cp
	return nil
}

func (f *fakeStore) GetRecipient(_ context.Context, userID string) (*domain.Recipient, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.recipients[userID]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (f *fakeStore) addJob(job *domain.Job) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
}

func (f *fakeStore) runByID(id string) *domain.JobRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.runs[id]; ok {
		cp := *r
		return &cp
	}
	return nil
}

func (f *fakeStore) runsForJob(jobID string) []domain.JobRun {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.JobRun
	for _, r := range f.runs {
		if r.JobID == jobID {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out
}

func (f *fakeStore) CreateJob(_ context.Context, job *domain.Job, firstRun *domain.JobRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *job
	f.jobs[job.ID] = &cp
	if firstRun != nil {
		f.insertRunLocked(firstRun)
	}
	return nil
}

func (f *fakeStore) ListJobs(_ context.Context, userID string) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Job
	for _, j := range f.jobs {
		if j.UserID == userID {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) ListActiveJobs(_ context.Context) ([]domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Job
	for _, j := range f.jobs {
		if j.Status == domain.JobStatusActive && j.Channel == domain.ChannelPush {
			out = append(out, *j)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *fakeStore) LatestRun(_ context.Context, jobID string) (*domain.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *domain.JobRun
	for _, r := range f.runs {
		if r.JobID != jobID {
			continue
		}
		if latest == nil || r.ScheduledAt.After(latest.ScheduledAt) {
			latest = r
		}
	}
	if latest == nil {
		return nil, nil
	}
	cp := *latest
	return &cp, nil
}

func (f *fakeStore) InsertRun(_ context.Context, run *domain.JobRun) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.insertRunLocked(run), nil
}

func (f *fakeStore) insertRunLocked(run *domain.JobRun) bool {
	for _, r := range f.runs {
		if r.JobID == run.JobID && r.PeriodKey == run.PeriodKey {
			return false
		}
	}
	cp := *run
	f.runs[run.ID] = &cp
	return true
}

func (f *fakeStore) ListRuns(_ context.Context, userID string, filter storage.RunFilter) ([]domain.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.JobRun
	for _, r := range f.runs {
		job, ok := f.jobs[r.JobID]
		if !ok || job.UserID != userID {
			continue
		}
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.From != nil && r.ScheduledAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && r.ScheduledAt.After(*filter.To) {
			continue
		}
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.After(out[j].ScheduledAt) })
	return out, nil
}

func (f *fakeStore) GetRunOwned(_ context.Context, runID, userID string) (*domain.JobRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	job, ok := f.jobs[r.JobID]
	if !ok || job.UserID != userID {
		return nil, domain.ErrRunNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeStore) DueRuns(_ context.Context, now time.Time, limit int) ([]domain.DueRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var due []domain.DueRun
	for _, r := range f.runs {
		job, ok := f.jobs[r.JobID]
		if !ok || job.Status != domain.JobStatusActive || job.Channel != domain.ChannelPush {
			continue
		}
		if r.Status != domain.RunStatusPending {
			continue
		}
		rec, ok := f.recipients[job.UserID]
		if !ok || !rec.Eligible() {
			continue
		}
		if r.ScheduledAt.Add(-job.Lead()).After(now) {
			continue
		}
		due = append(due, domain.DueRun{Run: *r, Job: *job, Recipient: *rec})
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Run.ScheduledAt.Before(due[j].Run.ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (f *fakeStore) MarkRunSent(_ context.Context, runID string, sentAt time.Time, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.runs[runID]
	if !ok || r.Status != domain.RunStatusPending {
		return domain.ErrRunNotPending
	}
	r.Status = domain.RunStatusSent
	at := sentAt
	r.SentAt = &at
	r.UpdatedAt = sentAt
	f.reminders = append(f.reminders, domain.Reminder{
		ID:        "reminder-" + runID,
		JobRunID:  runID,
		SentAt:    sentAt,
		Payload:   payload,
		CreatedAt: sentAt,
	})
	return nil
}

func (f *fakeStore) ApplyConfirmation(_ context.Context, conf *domain.Confirmation) (*domain.Confirmation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := conf.JobRunID + "|" + conf.IdempotencyKey
	if existing, ok := f.confirmations[key]; ok {
		cp := *existing
		return &cp, nil
	}
	cp := *conf
	f.confirmations[key] = &cp
	if r, ok := f.runs[conf.JobRunID]; ok {
		r.Status = conf.Action.RunStatus()
		r.UpdatedAt = conf.ConfirmedAt
	}
	out := cp
	return &out, nil
}

var errSinkDown = errors.New("sink unavailable")

// fakeSink records deliveries and can be told to fail or block.
type fakeSink struct {
	mu    sync.Mutex
	sends []fakeSend
	fail  bool
	block bool
}

type fakeSend struct {
	Target string
	Text   string
}

func (s *fakeSink) Send(ctx context.Context, target, text string) error {
	if s.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if s.fail {
		return errSinkDown
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sends = append(s.sends, fakeSend{Target: target, Text: text})
	return nil
}

func (s *fakeSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sends)
}
