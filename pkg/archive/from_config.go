package archive

import (
	"context"
	"fmt"

	"github.com/dd0wney/cluso-bowtie/pkg/config"
	"github.com/dd0wney/cluso-bowtie/pkg/logging"
	"github.com/dd0wney/cluso-bowtie/pkg/metrics"
)

// FromConfig builds the configured Archiver. It returns nil when archiving
// is disabled.
func FromConfig(ctx context.Context, cfg config.ArchiveConfig, logger logging.Logger, reg *metrics.Registry) (*Archiver, error) {
	var sink Sink
	switch cfg.Sink {
	case "", config.SinkNone:
		return nil, nil
	case config.SinkFile:
		fs, err := NewFileSink(cfg.Dir)
		if err != nil {
			return nil, err
		}
		sink = fs
	case config.SinkS3:
		s3, err := NewS3Sink(ctx, S3Options{
			Bucket:          cfg.Bucket,
			Prefix:          cfg.Prefix,
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		sink = s3
	default:
		return nil, fmt.Errorf("unknown archive sink %q", cfg.Sink)
	}
	return New(sink, Options{Compress: cfg.Compress}, logger, reg), nil
}
