package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

// 归档目录
const (
	ArchiveImports = "imports"
	ArchiveExports = "exports"
)

// Archive 把上传文件和导出文件存入对象存储。client 为 nil 时不归档。
type Archive struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewArchive 创建归档
func NewArchive(client *minio.Client, bucket string, logger *zap.Logger) *Archive {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archive{client: client, bucket: bucket, logger: logger}
}

// ObjectKey builds prefix/YYYY/MM/DD/<ulid><ext>.
func ObjectKey(prefix, ext string, t time.Time, id ulid.ULID) string {
	return fmt.Sprintf("%s/%s/%s%s", prefix, t.UTC().Format("2006/01/02"), id.String(), ext)
}

// Store uploads data and returns its object key, or "" when archiving is disabled or fails.
// Failures are logged and never returned.
func (a *Archive) Store(ctx context.Context, prefix, ext, contentType string, data []byte) string {
	if a == nil || a.client == nil {
		return ""
	}
	now := time.Now()
	key := ObjectKey(prefix, ext, now, ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()))
	_, err := a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		a.logger.Warn("archive upload failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	a.logger.Debug("archived file", zap.String("key", key), zap.Int("size", len(data)))
	return key
}

// EnsureBucket 启动时创建归档 bucket
func (a *Archive) EnsureBucket(ctx context.Context) error {
	if a == nil || a.client == nil {
		return nil
	}
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", a.bucket, err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", a.bucket, err)
	}
	a.logger.Info("archive bucket created", zap.String("bucket", a.bucket))
	return nil
}
