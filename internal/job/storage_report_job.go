package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/cvkit/cvault/internal/repo"
)

// StorageReportJob periodically logs per-owner version storage. It is the
// observation half of the accounting hook: a retention or quota policy can
// consume the same aggregates to decide when to prune.
type StorageReportJob struct {
	versions *repo.VersionRepo
}

func NewStorageReportJob(versions *repo.VersionRepo) *StorageReportJob {
	return &StorageReportJob{versions: versions}
}

func (j *StorageReportJob) Name() string {
	return "storage_report"
}

func (j *StorageReportJob) Run(ctx context.Context) error {
	if j.versions == nil {
		return nil
	}
	owners, err := j.versions.Owners(ctx)
	if err != nil {
		return err
	}
	logger := logutil.GetLogger(ctx)
	for _, owner := range owners {
		count, totalBytes, err := j.versions.AggregateSize(ctx, owner)
		if err != nil {
			return err
		}
		logger.Info("storage usage",
			zap.String("user_id", owner),
			zap.Int("versions", count),
			zap.Int64("total_bytes", totalBytes),
		)
	}
	return nil
}
