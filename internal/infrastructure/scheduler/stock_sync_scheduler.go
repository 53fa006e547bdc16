package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/application/stocksync"
	"github.com/stockledger/backend/internal/domain/integration"
)

// SyncJobStatus is the lifecycle state of a stock sync job
type SyncJobStatus string

const (
	SyncJobPending SyncJobStatus = "PENDING"
	SyncJobRunning SyncJobStatus = "RUNNING"
	SyncJobSuccess SyncJobStatus = "SUCCESS"
	SyncJobPartial SyncJobStatus = "PARTIAL"
	SyncJobFailed  SyncJobStatus = "FAILED"
)

// Trigger values recorded on jobs
const (
	TriggerInterval = "interval"
	TriggerManual   = "manual"
)

// StockSyncJob is one push of stock quantities to the marketplaces. Empty
// ItemIDs means every item, empty Channels means every enabled channel.
type StockSyncJob struct {
	ID          uuid.UUID                                           `json:"id"`
	Trigger     string                                              `json:"trigger"`
	ItemIDs     []string                                            `json:"item_ids,omitempty"`
	Channels    []integration.ChannelCode                           `json:"channels,omitempty"`
	Status      SyncJobStatus                                       `json:"status"`
	Error       string                                              `json:"error,omitempty"`
	Results     map[integration.ChannelCode]*integration.SyncResult `json:"results,omitempty"`
	SubmittedAt time.Time                                           `json:"submitted_at"`
	StartedAt   *time.Time                                          `json:"started_at,omitempty"`
	CompletedAt *time.Time                                          `json:"completed_at,omitempty"`
	RetryCount  int                                                 `json:"retry_count"`
	MaxRetries  int                                                 `json:"max_retries"`
	NextRetryAt *time.Time                                          `json:"next_retry_at,omitempty"`
}

// NewStockSyncJob creates a pending job
func NewStockSyncJob(trigger string, itemIDs []string, channels []integration.ChannelCode, maxRetries int) *StockSyncJob {
	return &StockSyncJob{
		ID:          uuid.New(),
		Trigger:     trigger,
		ItemIDs:     itemIDs,
		Channels:    channels,
		Status:      SyncJobPending,
		SubmittedAt: time.Now(),
		MaxRetries:  maxRetries,
		Results:     map[integration.ChannelCode]*integration.SyncResult{},
	}
}

// IsFullSync reports whether the job covers every item
func (j *StockSyncJob) IsFullSync() bool {
	return len(j.ItemIDs) == 0
}

// Start marks the job as running
func (j *StockSyncJob) Start() {
	now := time.Now()
	j.Status = SyncJobRunning
	j.StartedAt = &now
	j.Error = ""
}

// Complete folds the channel results of one run into the job. Results of
// channels that already succeeded on an earlier attempt are kept.
func (j *StockSyncJob) Complete(report *stocksync.Report, runErr error) {
	now := time.Now()
	j.CompletedAt = &now
	if report != nil {
		for ch, res := range report.Results {
			j.Results[ch] = res
		}
	}

	failed, succeeded := 0, 0
	for _, res := range j.Results {
		switch res.Status {
		case integration.SyncStatusFailed, integration.SyncStatusPartial:
			failed++
		default:
			succeeded++
		}
	}
	switch {
	case runErr == nil:
		j.Status = SyncJobSuccess
	case succeeded > 0 && failed > 0:
		j.Status = SyncJobPartial
	default:
		j.Status = SyncJobFailed
	}
	if runErr != nil {
		j.Error = runErr.Error()
	}
}

// failedChannels lists channels whose last result was not a success
func (j *StockSyncJob) failedChannels() []integration.ChannelCode {
	var out []integration.ChannelCode
	for _, ch := range integration.AllChannels() {
		if res, ok := j.Results[ch]; ok && (res.Status == integration.SyncStatusFailed || res.Status == integration.SyncStatusPartial) {
			out = append(out, ch)
		}
	}
	return out
}

// ShouldRetry reports whether another attempt is allowed
func (j *StockSyncJob) ShouldRetry() bool {
	return j.Status != SyncJobSuccess && j.RetryCount < j.MaxRetries
}

// ScheduleRetry narrows the job to its failing channels and returns the
// backoff delay: baseDelay * 2^(retry-1), capped at maxDelay.
func (j *StockSyncJob) ScheduleRetry(baseDelay, maxDelay time.Duration) time.Duration {
	j.RetryCount++
	j.Status = SyncJobPending
	if failed := j.failedChannels(); len(failed) > 0 {
		j.Channels = failed
	}
	delay := baseDelay * time.Duration(1<<(j.RetryCount-1))
	if maxDelay > 0 && delay > maxDelay {
		delay = maxDelay
	}
	next := time.Now().Add(delay)
	j.NextRetryAt = &next
	return delay
}

// StockSyncRunner performs one sync run
type StockSyncRunner interface {
	SyncItems(ctx context.Context, itemIDs []string, channels []integration.ChannelCode) (*stocksync.Report, error)
}

// StockSyncSchedulerConfig holds scheduler settings
type StockSyncSchedulerConfig struct {
	// Interval between periodic full syncs, 0 disables the ticker
	Interval      time.Duration
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	QueueSize     int
	HistorySize   int
}

// DefaultStockSyncSchedulerConfig returns default configuration
func DefaultStockSyncSchedulerConfig() StockSyncSchedulerConfig {
	return StockSyncSchedulerConfig{
		Interval:      15 * time.Minute,
		JobTimeout:    5 * time.Minute,
		RetryAttempts: 3,
		RetryDelay:    30 * time.Second,
		MaxRetryDelay: 30 * time.Minute,
		QueueSize:     32,
		HistorySize:   50,
	}
}

// Validate validates the configuration
func (c StockSyncSchedulerConfig) Validate() error {
	if c.Interval < 0 || c.JobTimeout <= 0 || c.RetryAttempts < 0 || c.QueueSize <= 0 {
		return ErrInvalidConfig
	}
	if c.RetryAttempts > 0 && c.RetryDelay <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// StockSyncScheduler runs sync jobs one at a time, submits a full sync on
// every interval tick and retries failed channels with exponential backoff.
type StockSyncScheduler struct {
	config StockSyncSchedulerConfig
	runner StockSyncRunner
	logger *zap.Logger

	jobs      chan *StockSyncJob
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool

	fullPending atomic.Bool

	historyMu sync.RWMutex
	history   []*StockSyncJob
}

// NewStockSyncScheduler creates a scheduler
func NewStockSyncScheduler(cfg StockSyncSchedulerConfig, runner StockSyncRunner, logger *zap.Logger) (*StockSyncScheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockSyncScheduler{
		config: cfg,
		runner: runner,
		logger: logger,
		jobs:   make(chan *StockSyncJob, cfg.QueueSize),
	}, nil
}

// Start launches the worker and, when an interval is set, the ticker
func (s *StockSyncScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.isRunning {
		return nil
	}
	s.isRunning = true

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(1)
	go s.worker(ctx)
	if s.config.Interval > 0 {
		s.wg.Add(1)
		go s.tick(ctx)
	}

	s.logger.Info("Stock sync scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("job_timeout", s.config.JobTimeout),
		zap.Int("retry_attempts", s.config.RetryAttempts),
	)
	return nil
}

// Stop cancels the worker and pending retries and waits for them to exit
func (s *StockSyncScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.cancel()
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.logger.Info("Stock sync scheduler stopped")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Stock sync scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the scheduler accepts jobs
func (s *StockSyncScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// ScheduleSync queues a manual sync of the given items and channels
func (s *StockSyncScheduler) ScheduleSync(itemIDs []string, channels []integration.ChannelCode) (*StockSyncJob, error) {
	job := NewStockSyncJob(TriggerManual, itemIDs, channels, s.config.RetryAttempts)
	if err := s.SubmitJob(job); err != nil {
		return nil, err
	}
	return job, nil
}

// SubmitJob queues a job. At most one full sync is pending at a time.
func (s *StockSyncScheduler) SubmitJob(job *StockSyncJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isRunning {
		return ErrSchedulerNotRunning
	}
	if job.IsFullSync() && job.RetryCount == 0 && !s.fullPending.CompareAndSwap(false, true) {
		return ErrFullSyncPending
	}

	select {
	case s.jobs <- job:
		s.logger.Debug("Stock sync job submitted",
			zap.String("job_id", job.ID.String()),
			zap.String("trigger", job.Trigger),
			zap.Int("items", len(job.ItemIDs)),
			zap.Int("retry_count", job.RetryCount),
		)
		return nil
	default:
		if job.IsFullSync() {
			s.fullPending.Store(false)
		}
		return ErrJobQueueFull
	}
}

func (s *StockSyncScheduler) tick(ctx context.Context) {
	defer s.wg.Done()
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			job := NewStockSyncJob(TriggerInterval, nil, nil, s.config.RetryAttempts)
			switch err := s.SubmitJob(job); {
			case errors.Is(err, ErrFullSyncPending):
				s.logger.Debug("Skipping periodic stock sync, previous one still pending")
			case err != nil:
				s.logger.Warn("Failed to submit periodic stock sync", zap.Error(err))
			}
		}
	}
}

func (s *StockSyncScheduler) worker(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-s.jobs:
			s.processJob(ctx, job)
		}
	}
}

func (s *StockSyncScheduler) processJob(ctx context.Context, job *StockSyncJob) {
	job.Start()
	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	report, err := s.runner.SyncItems(jobCtx, job.ItemIDs, job.Channels)
	cancel()
	if err == nil && report != nil {
		err = report.Err()
	}
	job.Complete(report, err)

	fields := []zap.Field{
		zap.String("job_id", job.ID.String()),
		zap.String("trigger", job.Trigger),
		zap.String("status", string(job.Status)),
		zap.Int("retry_count", job.RetryCount),
	}
	if err == nil {
		s.logger.Info("Stock sync job completed", fields...)
		s.finish(job)
		return
	}
	s.logger.Warn("Stock sync job failed", append(fields, zap.Error(err))...)

	if !job.ShouldRetry() || ctx.Err() != nil {
		s.finish(job)
		return
	}
	delay := job.ScheduleRetry(s.config.RetryDelay, s.config.MaxRetryDelay)
	s.logger.Info("Stock sync job scheduled for retry",
		zap.String("job_id", job.ID.String()),
		zap.Int("retry_count", job.RetryCount),
		zap.Duration("delay", delay),
		zap.Strings("channels", channelStrings(job.Channels)),
	)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			s.finish(job)
		case <-timer.C:
			if err := s.SubmitJob(job); err != nil {
				s.logger.Warn("Failed to re-queue stock sync job", zap.String("job_id", job.ID.String()), zap.Error(err))
				s.finish(job)
			}
		}
	}()
}

// finish records a job that will not run again
func (s *StockSyncScheduler) finish(job *StockSyncJob) {
	if job.IsFullSync() {
		s.fullPending.Store(false)
	}
	s.historyMu.Lock()
	defer s.historyMu.Unlock()
	s.history = append([]*StockSyncJob{job}, s.history...)
	if len(s.history) > s.config.HistorySize {
		s.history = s.history[:s.config.HistorySize]
	}
}

// History returns the most recent finished jobs, newest first
func (s *StockSyncScheduler) History(limit int) []*StockSyncJob {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()
	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	out := make([]*StockSyncJob, limit)
	copy(out, s.history[:limit])
	return out
}

func channelStrings(chs []integration.ChannelCode) []string {
	out := make([]string, len(chs))
	for i, ch := range chs {
		out[i] = string(ch)
	}
	return out
}
