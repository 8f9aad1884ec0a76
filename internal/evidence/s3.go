// Package evidence uploads the raw content of analyzed log files to S3 so
// the lines behind an alert survive after the upload is discarded.
package evidence

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/klauspost/compress/gzip"
	"github.com/telhawk-systems/socdetect/common/logging"
	"github.com/telhawk-systems/socdetect/internal/config"
	"github.com/telhawk-systems/socdetect/internal/metrics"
)

// objectPutter is the part of the S3 API the store needs.
type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes gzip-compressed raw log content to a bucket.
type S3Store struct {
	client objectPutter
	bucket string
	prefix string
	logger *logging.Logger
	now    func() time.Time
}

// NewS3Store builds an S3 client from cfg. Static credentials are used when
// configured, otherwise the default AWS credential chain.
func NewS3Store(ctx context.Context, cfg config.S3Config, logger *logging.Logger) (*S3Store, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Store(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3Store(client objectPutter, bucket, prefix string, logger *logging.Logger) *S3Store {
	return &S3Store{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.WithComponent("evidence"),
		now:    time.Now,
	}
}

// Key returns the object key for content uploaded under fileName at t. Keys
// are partitioned by day and suffixed with a content digest, so re-uploading
// identical content maps to the same object.
func (s *S3Store) Key(fileName, content string, t time.Time) string {
	sum := sha256.Sum256([]byte(content))
	base := sanitize(path.Base(strings.ReplaceAll(fileName, "\\", "/")))
	name := fmt.Sprintf("%s-%s.gz", base, hex.EncodeToString(sum[:6]))
	return s.prefix + path.Join(t.UTC().Format("2006/01/02"), name)
}

// Store uploads content and returns the object key.
func (s *S3Store) Store(ctx context.Context, fileName, content string) (string, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(content)); err != nil {
		return "", fmt.Errorf("failed to compress log content: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to compress log content: %w", err)
	}

	key := s.Key(fileName, content, s.now())
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(key),
		Body:            bytes.NewReader(buf.Bytes()),
		ContentLength:   aws.Int64(int64(buf.Len())),
		ContentType:     aws.String("text/plain; charset=utf-8"),
		ContentEncoding: aws.String("gzip"),
		Metadata: map[string]string{
			"file-name":      fileName,
			"original-bytes": fmt.Sprint(len(content)),
		},
	})
	if err != nil {
		metrics.EvidenceUploadsTotal.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("failed to upload %s to s3: %w", key, err)
	}
	metrics.EvidenceUploadsTotal.WithLabelValues("success").Inc()

	s.logger.DebugContext(ctx, "raw log archived",
		logging.FileName(fileName),
		"bucket", s.bucket,
		"key", key,
		"compressed_bytes", buf.Len(),
	)
	return key, nil
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 || name == "." || name == "/" {
		return "upload"
	}
	return b.String()
}
