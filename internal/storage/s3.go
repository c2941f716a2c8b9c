// Package storage keeps rendered tickets in S3.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// FolderTickets is the S3 prefix for rendered ticket PDFs.
const FolderTickets = "tickets"

// S3Config holds S3 client configuration.
type S3Config struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

// TicketArchive uploads rendered tickets to S3.
type TicketArchive struct {
	uploader *manager.Uploader
	bucket   string
	logger   *zap.Logger
}

// NewTicketArchive creates an S3 uploader.  Static credentials are used
// when both keys are set; otherwise the default AWS credential chain
// applies.
func NewTicketArchive(ctx context.Context, cfg S3Config, logger *zap.Logger) (*TicketArchive, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("ticket archive: bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.SecretAccessKey, "",
		)))
		logger.Info("ticket archive using static credentials", zap.String("region", cfg.Region), zap.String("bucket", cfg.Bucket))
	} else {
		logger.Info("ticket archive using default credential chain", zap.String("bucket", cfg.Bucket))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = 5 * 1024 * 1024
	})
	return &TicketArchive{uploader: uploader, bucket: cfg.Bucket, logger: logger}, nil
}

// TicketKey returns the S3 object key: tickets/{reservation_number}.pdf.
func TicketKey(reservationNumber string) string {
	return path.Join(FolderTickets, path.Base(reservationNumber)+".pdf")
}

// PutTicket uploads one rendered ticket, replacing any earlier copy.
func (a *TicketArchive) PutTicket(ctx context.Context, reservationNumber string, pdf []byte) error {
	key := TicketKey(reservationNumber)
	_, err := a.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(pdf),
		ContentType: aws.String("application/pdf"),
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	a.logger.Debug("ticket archived", zap.String("key", key), zap.Int("bytes", len(pdf)))
	return nil
}
