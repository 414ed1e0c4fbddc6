package reconciliation

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Source pulls bank statement CSVs dropped into an S3 bucket by the
// bank's SFTP-to-S3 bridge.
type S3Source struct {
	Client *s3.Client
	Bucket string
	Prefix string
}

type S3Config struct {
	Region string
	Bucket string
	Prefix string
}

func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	return &S3Source{
		Client: s3.NewFromConfig(awsCfg),
		Bucket: cfg.Bucket,
		Prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

func (s *S3Source) Fetch(ctx context.Context, from, to time.Time) ([]BankRecord, error) {
	var out []BankRecord

	prefix := s.Prefix
	if prefix != "" {
		prefix += "/"
	}
	pager := s3.NewListObjectsV2Paginator(s.Client, &s3.ListObjectsV2Input{
		Bucket: &s.Bucket,
		Prefix: &prefix,
	})
	for pager.HasMorePages() {
		page, err := pager.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list statements s3://%s/%s: %w", s.Bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			if obj.Key == nil || !strings.EqualFold(suffix(*obj.Key), ".csv") {
				continue
			}
			recs, err := s.fetchObject(ctx, *obj.Key)
			if err != nil {
				return nil, err
			}
			for _, rec := range recs {
				if inRange(rec.Date, from, to) {
					out = append(out, rec)
				}
			}
		}
	}
	return out, nil
}

func (s *S3Source) fetchObject(ctx context.Context, key string) ([]BankRecord, error) {
	obj, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.Bucket,
		Key:    &key,
	})
	if err != nil {
		return nil, fmt.Errorf("get statement s3://%s/%s: %w", s.Bucket, key, err)
	}
	defer obj.Body.Close()
	return parseStatement(obj.Body, key)
}

func suffix(key string) string {
	if i := strings.LastIndex(key, "."); i >= 0 {
		return key[i:]
	}
	return ""
}

func (s *S3Source) String() string { return fmt.Sprintf("s3(%s/%s)", s.Bucket, s.Prefix) }

// SourceFromEnv selects the statement source: STATEMENT_DRIVER=local reads
// CSVs from STATEMENT_DIR, STATEMENT_DRIVER=s3 requires STATEMENT_S3_REGION
// and STATEMENT_S3_BUCKET.
func SourceFromEnv(ctx context.Context) (StatementSource, error) {
	return NewSource(ctx, os.Getenv("STATEMENT_DRIVER"))
}

// NewSource builds the statement source for an explicit driver name; the
// per-driver settings still come from the environment.
func NewSource(ctx context.Context, driver string) (StatementSource, error) {
	if driver == "" {
		driver = "local"
	}

	switch driver {
	case "local":
		dir := envOr("STATEMENT_DIR", "./statements")
		return NewLocalDirSource(dir), nil

	case "s3":
		region := envOr("STATEMENT_S3_REGION", "")
		bucket := envOr("STATEMENT_S3_BUCKET", "")
		prefix := envOr("STATEMENT_S3_PREFIX", "statements")
		if region == "" || bucket == "" {
			return nil, fmt.Errorf("s3 statement config missing: STATEMENT_S3_REGION, STATEMENT_S3_BUCKET required")
		}
		return NewS3Source(ctx, S3Config{Region: region, Bucket: bucket, Prefix: prefix})

	default:
		return nil, fmt.Errorf("unknown STATEMENT_DRIVER: %s", driver)
	}
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
