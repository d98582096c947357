package statistics

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"github.com/ManuelReschke/CourseHaven/app/models"
	"github.com/ManuelReschke/CourseHaven/internal/pkg/jobqueue"
)

const (
	CacheKeyDashboard = "statistics:dashboard"
	CacheExpiration   = 5 * time.Minute
)

// Dashboard holds the numbers shown on the admin dashboard.
type Dashboard struct {
	TotalCourses int64        `json:"totalCourses"`
	TotalUsers   int64        `json:"totalUsers"`
	TotalSales   int64        `json:"totalSales"`
	TodaySales   int64        `json:"todaySales"`
	Revenue      int64        `json:"revenue"`
	Jobs         *JobOverview `json:"jobs,omitempty"`
	GeneratedAt  time.Time    `json:"generatedAt"`
}

// JobOverview shows the background job queue, mostly receipt mails.
type JobOverview struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
}

// JobStats is the read side of the job queue.
type JobStats interface {
	GetQueueSize(ctx context.Context) (int64, error)
	GetProcessingSize(ctx context.Context) (int64, error)
	GetJobStats(ctx context.Context) (map[jobqueue.JobStatus]int64, error)
}

// Cache stores the last computed dashboard.
type Cache interface {
	Load(ctx context.Context) (Dashboard, bool, error)
	Store(ctx context.Context, d Dashboard) error
}

type Service struct {
	db    *gorm.DB
	cache Cache
	jobs  JobStats
	now   func() time.Time
}

// NewService creates the statistics service. cache may be nil.
func NewService(db *gorm.DB, cache Cache) *Service {
	return &Service{db: db, cache: cache, now: time.Now}
}

// WithJobStats adds the job queue overview to the dashboard.
func (s *Service) WithJobStats(jobs JobStats) *Service {
	s.jobs = jobs
	return s
}

// Dashboard returns cached numbers when available and recomputes them otherwise.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	if s.cache != nil {
		if d, ok, err := s.cache.Load(ctx); err != nil {
			log.Warnf("[Statistics] cache read failed: %v", err)
		} else if ok {
			return d, nil
		}
	}

	d, err := s.compute(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	if s.cache != nil {
		if err := s.cache.Store(ctx, d); err != nil {
			log.Warnf("[Statistics] cache write failed: %v", err)
		}
	}
	return d, nil
}

func (s *Service) compute(ctx context.Context) (Dashboard, error) {
	db := s.db.WithContext(ctx)
	now := s.now()
	d := Dashboard{GeneratedAt: now}

	if err := db.Model(&models.Course{}).Count(&d.TotalCourses).Error; err != nil {
		return Dashboard{}, err
	}
	if err := db.Model(&models.User{}).Where("role = ?", models.ROLE_USER).Count(&d.TotalUsers).Error; err != nil {
		return Dashboard{}, err
	}
	if err := db.Model(&models.Entitlement{}).Count(&d.TotalSales).Error; err != nil {
		return Dashboard{}, err
	}

	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if err := db.Model(&models.Entitlement{}).
		Where("created_at >= ? AND created_at < ?", todayStart, todayStart.Add(24*time.Hour)).
		Count(&d.TodaySales).Error; err != nil {
		return Dashboard{}, err
	}

	if err := db.Model(&models.Entitlement{}).Select("COALESCE(SUM(amount), 0)").Scan(&d.Revenue).Error; err != nil {
		return Dashboard{}, err
	}

	if s.jobs != nil {
		jobs, err := s.jobOverview(ctx)
		if err != nil {
			// the queue lives in Redis; the sales numbers are still worth showing
			log.Warnf("[Statistics] job queue stats unavailable: %v", err)
		} else {
			d.Jobs = jobs
		}
	}

	return d, nil
}

func (s *Service) jobOverview(ctx context.Context) (*JobOverview, error) {
	pending, err := s.jobs.GetQueueSize(ctx)
	if err != nil {
		return nil, err
	}
	processing, err := s.jobs.GetProcessingSize(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.jobs.GetJobStats(ctx)
	if err != nil {
		return nil, err
	}
	return &JobOverview{
		Pending:    pending,
		Processing: processing,
		Completed:  counts[jobqueue.JobStatusCompleted],
		Failed:     counts[jobqueue.JobStatusFailed],
	}, nil
}
