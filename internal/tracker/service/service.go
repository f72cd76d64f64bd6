package service

import (
	"context"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/redis/go-redis/v9"
	"github.com/sungreong/TaskWeaver/internal/config"
	"github.com/sungreong/TaskWeaver/internal/tracker/entity"
	"github.com/sungreong/TaskWeaver/internal/tracker/repository"
	"github.com/sungreong/TaskWeaver/internal/tracker/sse"
	"go.uber.org/zap"
)

// Services 服务集合
type Services struct {
	Project *ProjectService
	Report  *ReportService
	Task    *TaskService
	WBS     *WBSService
	Summary *SummaryService
	Import  *ImportService
	Export  *ExportService
	Archive *Archive
}

// NewServices 创建服务集合。rdb 和 hub 可以为 nil。
func NewServices(repos *repository.Repositories, rdb *redis.Client, cfg *config.Config, logger *zap.Logger, hub *sse.Hub) *Services {
	if logger == nil {
		logger = zap.NewNop()
	}

	// 初始化MinIO客户端
	var minioClient *minio.Client
	if cfg.MinIO.Enabled() {
		var err error
		minioClient, err = minio.New(cfg.MinIO.Endpoint, &minio.Options{
			Creds:  credentials.NewStaticV4(cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, ""),
			Secure: cfg.MinIO.UseSSL,
		})
		if err != nil {
			logger.Warn("minio client init failed, archiving disabled", zap.Error(err))
			minioClient = nil
		}
	}

	events := &notifier{
		cache: NewSummaryCache(rdb, cfg.Redis.SummaryTTL, logger),
		hub:   hub,
	}
	archive := NewArchive(minioClient, cfg.MinIO.Bucket, logger)

	projectSvc := NewProjectService(repos, events)
	taskSvc := NewTaskService(repos, events)
	return &Services{
		Project: projectSvc,
		Report:  NewReportService(repos, events),
		Task:    taskSvc,
		WBS:     NewWBSService(repos, events),
		Summary: NewSummaryService(repos, events.cache),
		Import:  NewImportService(projectSvc, taskSvc, archive, events, logger),
		Export:  NewExportService(repos, archive),
		Archive: archive,
	}
}

// notifier 写操作后清理汇总缓存并推送 SSE 事件
type notifier struct {
	cache *SummaryCache
	hub   *sse.Hub
}

func (n *notifier) changed(ctx context.Context, event string, change sse.Change) {
	if n == nil {
		return
	}
	n.cache.Invalidate(ctx)
	n.hub.Publish(event, change)
}

// now 数据库时间统一为 UTC
func now() time.Time {
	return time.Now().UTC()
}

func parseDate(field, value string) (*entity.Date, error) {
	d, err := entity.DatePtr(value)
	if err != nil {
		return nil, invalid(field, "must be a date in YYYY-MM-DD format, got %q", value)
	}
	return d, nil
}

func checkRange(startField string, start, end *entity.Date) error {
	if start != nil && end != nil && end.Time().Before(start.Time()) {
		return invalid(startField, "must not be after the end date")
	}
	return nil
}

func checkProgress(field string, v float64) error {
	if v < 0 || v > 100 {
		return invalid(field, "must be between 0 and 100, got %v", v)
	}
	return nil
}

func required(field, value string, max int) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", invalid(field, "is required")
	}
	if max > 0 && len([]rune(value)) > max {
		return "", invalid(field, "must be at most %d characters", max)
	}
	return value, nil
}
