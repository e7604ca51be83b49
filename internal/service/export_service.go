package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"app/internal/repository"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
)

// ExportService writes a CSV snapshot of quota usage and Max Mode
// counters to object storage, so support can reconcile the local
// counters of record against what the metering provider billed.
type ExportService interface {
	// ExportUsageReport uploads the snapshot and returns its object key.
	ExportUsageReport(ctx context.Context, now time.Time) (string, error)
}

type exportService struct {
	quotaRepo   repository.UsageQuotaRepository
	billingRepo repository.BillingRepository
	s3Client    *s3.Client
	bucket      string
	logger      zerolog.Logger
}

// NewExportService creates a new ExportService with a scoped logger.
func NewExportService(
	quotaRepo repository.UsageQuotaRepository,
	billingRepo repository.BillingRepository,
	s3Client *s3.Client,
	bucket string,
	logger zerolog.Logger,
) ExportService {
	return &exportService{
		quotaRepo:   quotaRepo,
		billingRepo: billingRepo,
		s3Client:    s3Client,
		bucket:      bucket,
		logger:      logger.With().Str("service", "ExportService").Logger(),
	}
}

func (s *exportService) ExportUsageReport(ctx context.Context, now time.Time) (string, error) {
	quotas, err := s.quotaRepo.ListQuotas(ctx)
	if err != nil {
		return "", fmt.Errorf("collecting quotas for export: %w", err)
	}
	records, err := s.billingRepo.ListMaxModeRecords(ctx)
	if err != nil {
		return "", fmt.Errorf("collecting max mode records for export: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	_ = w.Write([]string{"record_type", "user_id", "category", "tier", "limit", "used", "period_start", "period_end", "max_mode_usage_basic", "max_mode_usage_premium", "max_mode_period_start"})
	for _, q := range quotas {
		_ = w.Write([]string{
			"quota",
			q.UserID,
			string(q.Category),
			string(q.PlanTier),
			formatLimit(q.LimitAmount),
			strconv.FormatInt(q.Used, 10),
			q.PeriodStart.UTC().Format(time.RFC3339),
			formatTime(q.PeriodEnd),
			"", "", "",
		})
	}
	for _, r := range records {
		_ = w.Write([]string{
			"max_mode",
			r.UserID,
			"", "", "", "", "", "",
			strconv.FormatInt(r.MaxModeUsageBasic, 10),
			strconv.FormatInt(r.MaxModeUsagePremium, 10),
			formatTime(r.MaxModePeriodStart),
		})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("writing export csv: %w", err)
	}

	key := fmt.Sprintf("usage-reports/%s.csv", now.UTC().Format("2006-01-02T15-04-05Z"))
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("text/csv"),
	})
	if err != nil {
		return "", fmt.Errorf("uploading usage report %s: %w", key, err)
	}

	s.logger.Info().Str("key", key).Int("quota_rows", len(quotas)).Int("max_mode_rows", len(records)).Msg("Uploaded usage reconciliation report")
	return key, nil
}

func formatLimit(limit *int64) string {
	if limit == nil {
		return "unlimited"
	}
	return strconv.FormatInt(*limit, 10)
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
