// 文件路径: internal/job/scheduler.go
// 模块说明: cron 调度器封装，统一超时、日志与优雅停机。
package job

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/robfig/cron/v3"
)

var (
	jobRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cliqshop",
		Subsystem: "jobs",
		Name:      "runs_total",
		Help:      "Background job runs by job and result.",
	}, []string{"job", "result"})
	jobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "cliqshop",
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Background job run time.",
		Buckets:   []float64{.01, .1, .5, 1, 5, 15, 60, 120},
	}, []string{"job"})
)

// Runnable 表示由调度器触发的后台任务。
type Runnable interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduler 封装 cron，并提供日志与优雅停机。
type Scheduler struct {
	cron    *cron.Cron
	logger  *slog.Logger
	timeout time.Duration
	mu      sync.Mutex
	started bool
}

const defaultJobTimeout = 2 * time.Minute

// NewScheduler 构建支持秒与 @every 描述的调度器。
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	return &Scheduler{cron: c, logger: logger.With("component", "scheduler"), timeout: defaultJobTimeout}
}

// Register 绑定 cron 表达式与任务。
func (s *Scheduler) Register(spec string, runnable Runnable) (cron.EntryID, error) {
	if runnable == nil {
		return 0, fmt.Errorf("scheduler: runnable is required / runnable 不能为空")
	}
	if spec == "" {
		return 0, fmt.Errorf("scheduler: spec is required / spec 不能为空")
	}
	entryID, err := s.cron.AddFunc(spec, s.wrap(runnable))
	if err != nil {
		return 0, fmt.Errorf("scheduler: register %s: %w", runnable.Name(), err)
	}
	s.logger.Info("job registered", "job", runnable.Name(), "spec", spec)
	return entryID, nil
}

// RegisterIfSet registers the job unless spec is empty, which disables it.
func (s *Scheduler) RegisterIfSet(spec string, runnable Runnable) error {
	if spec == "" {
		if runnable != nil {
			s.logger.Info("job disabled", "job", runnable.Name())
		}
		return nil
	}
	_, err := s.Register(spec, runnable)
	return err
}

// Entries 返回已注册任务数。
func (s *Scheduler) Entries() int {
	return len(s.cron.Entries())
}

// Start 启动调度器。
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.cron.Start()
	s.started = true
}

// Stop 停止调度器，返回的 context 在执行中的任务结束后关闭。
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}
	s.started = false
	return s.cron.Stop()
}

// Run starts the scheduler and blocks until ctx is done, then waits for running jobs.
func (s *Scheduler) Run(ctx context.Context) error {
	s.Start()
	<-ctx.Done()
	<-s.Stop().Done()
	return nil
}

// wrap 包装任务：超时、panic 恢复、日志与 jobs 指标。
func (s *Scheduler) wrap(runnable Runnable) func() {
	name := runnable.Name()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		start := time.Now()
		err := runSafely(ctx, runnable)
		elapsed := time.Since(start)
		jobDuration.WithLabelValues(name).Observe(elapsed.Seconds())
		if err != nil {
			jobRuns.WithLabelValues(name, "error").Inc()
			s.logger.Error("job failed", "job", name, "error", err, "elapsed", elapsed)
			return
		}
		jobRuns.WithLabelValues(name, "ok").Inc()
		s.logger.Debug("job completed", "job", name, "elapsed", elapsed)
	}
}

// runSafely turns a panic inside a job into an error so one bad run cannot stop the scheduler.
func runSafely(ctx context.Context, runnable Runnable) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked / 任务异常退出: %v", r)
		}
	}()
	return runnable.Run(ctx)
}
