// 文件路径: internal/service/admin_system.go
// 模块说明: 管理后台的系统状态，汇总进程信息、主机资源与通知队列积压。
package service

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/cliqshop/shop/internal/repository"
)

// AdminSystemService 汇总后台需要的系统状态。
type AdminSystemService interface {
	SystemStatus(ctx context.Context) (AdminSystemStatus, error)
}

// NotificationQueueStats 提供通知队列积压指标，避免 async 包循环依赖。
type NotificationQueueStats interface {
	PendingEmails() int
}

// HostStatFetcher wraps gopsutil so tests can substitute fixed readings.
type HostStatFetcher struct {
	CPUPercent    func(interval time.Duration, percpu bool) ([]float64, error)
	VirtualMemory func() (*mem.VirtualMemoryStat, error)
	DiskUsage     func(path string) (*disk.UsageStat, error)
	LoadAvg       func() (*load.AvgStat, error)
	HostUptime    func() (uint64, error)
}

// DefaultHostStatFetcher reads the local host.
func DefaultHostStatFetcher() HostStatFetcher {
	return HostStatFetcher{
		CPUPercent:    cpu.Percent,
		VirtualMemory: mem.VirtualMemory,
		DiskUsage:     disk.Usage,
		LoadAvg:       load.Avg,
		HostUptime:    host.Uptime,
	}
}

// AdminSystemOptions 注入运行时依赖。
type AdminSystemOptions struct {
	Version           string
	Environment       string
	StartedAt         time.Time
	NotificationQueue NotificationQueueStats
	Store             repository.Store
	Host              *HostStatFetcher
	DiskPath          string
	Now               func() time.Time
	HostnameResolver  func() (string, error)
}

// AdminSystemStatus 描述管理后台系统状态返回字段。
type AdminSystemStatus struct {
	Version       string     `json:"version"`
	GoVersion     string     `json:"goVersion"`
	Environment   string     `json:"environment"`
	Hostname      string     `json:"hostname"`
	StartedAt     time.Time  `json:"startedAt"`
	Uptime        int64      `json:"uptime"`
	Goroutines    int        `json:"goroutines"`
	UserCount     int64      `json:"userCount"`
	OrderCount    int64      `json:"orderCount"`
	PendingEmails int        `json:"pendingEmails"`
	Host          HostStatus `json:"host"`
}

// HostStatus 主机资源读数，读取失败的字段保持零值。
type HostStatus struct {
	CPUPercent float64 `json:"cpuPercent"`
	MemTotal   uint64  `json:"memTotal"`
	MemUsed    uint64  `json:"memUsed"`
	MemPercent float64 `json:"memPercent"`
	DiskTotal  uint64  `json:"diskTotal"`
	DiskUsed   uint64  `json:"diskUsed"`
	Load1      float64 `json:"load1"`
	HostUptime uint64  `json:"hostUptime"`
}

type adminSystemService struct {
	version     string
	environment string
	startedAt   time.Time
	queue       NotificationQueueStats
	store       repository.Store
	host        HostStatFetcher
	diskPath    string
	now         func() time.Time
	hostname    func() (string, error)
}

// NewAdminSystemService 创建系统状态服务。
func NewAdminSystemService(opts AdminSystemOptions) AdminSystemService {
	svc := &adminSystemService{
		version:     opts.Version,
		environment: opts.Environment,
		startedAt:   opts.StartedAt,
		queue:       opts.NotificationQueue,
		store:       opts.Store,
		host:        DefaultHostStatFetcher(),
		diskPath:    opts.DiskPath,
		now:         opts.Now,
		hostname:    opts.HostnameResolver,
	}
	if opts.Host != nil {
		svc.host = *opts.Host
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.startedAt.IsZero() {
		svc.startedAt = svc.now()
	}
	if svc.hostname == nil {
		svc.hostname = os.Hostname
	}
	if svc.diskPath == "" {
		svc.diskPath = "/"
	}
	return svc
}

func (s *adminSystemService) SystemStatus(ctx context.Context) (AdminSystemStatus, error) {
	now := s.now()
	status := AdminSystemStatus{
		Version:     s.version,
		GoVersion:   runtime.Version(),
		Environment: s.environment,
		StartedAt:   s.startedAt,
		Uptime:      int64(now.Sub(s.startedAt).Seconds()),
		Goroutines:  runtime.NumGoroutine(),
		Host:        s.collectHost(),
	}
	if name, err := s.hostname(); err == nil {
		status.Hostname = name
	}
	if s.queue != nil {
		status.PendingEmails = s.queue.PendingEmails()
	}
	if s.store != nil {
		users, err := s.store.Users().Count(ctx)
		if err != nil {
			return status, err
		}
		status.UserCount = users
		orders, err := s.store.Orders().Count(ctx, repository.OrderFilter{})
		if err != nil {
			return status, err
		}
		status.OrderCount = orders
	}
	return status, nil
}

func (s *adminSystemService) collectHost() HostStatus {
	var out HostStatus
	if s.host.CPUPercent != nil {
		if percents, err := s.host.CPUPercent(0, false); err == nil && len(percents) > 0 {
			out.CPUPercent = percents[0]
		}
	}
	if s.host.VirtualMemory != nil {
		if v, err := s.host.VirtualMemory(); err == nil {
			out.MemTotal, out.MemUsed, out.MemPercent = v.Total, v.Used, v.UsedPercent
		}
	}
	if s.host.DiskUsage != nil {
		if d, err := s.host.DiskUsage(s.diskPath); err == nil {
			out.DiskTotal, out.DiskUsed = d.Total, d.Used
		}
	}
	if s.host.LoadAvg != nil {
		if l, err := s.host.LoadAvg(); err == nil {
			out.Load1 = l.Load1
		}
	}
	if s.host.HostUptime != nil {
		if up, err := s.host.HostUptime(); err == nil {
			out.HostUptime = up
		}
	}
	return out
}
