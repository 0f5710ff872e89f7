package upload

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/sirupsen/logrus"

	"github.com/esmf-org/branch-summary/pkg/config"
)

// s3Mirror implements Mirror for S3-compatible storage.
type s3Mirror struct {
	log    logrus.FieldLogger
	cfg    *config.S3MirrorConfig
	client *s3.Client
}

// Ensure interface compliance.
var _ Mirror = (*s3Mirror)(nil)

// NewS3Mirror creates a Mirror from the given configuration.
func NewS3Mirror(
	log logrus.FieldLogger,
	cfg *config.S3MirrorConfig,
) (Mirror, error) {
	opts := []func(*s3.Options){
		func(o *s3.Options) {
			if cfg.Region != "" {
				o.Region = cfg.Region
			} else {
				o.Region = "us-east-1"
			}

			if cfg.EndpointURL != "" {
				o.BaseEndpoint = aws.String(cfg.EndpointURL)
			}

			if cfg.ForcePathStyle {
				o.UsePathStyle = true
			}

			if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
				o.Credentials = credentials.NewStaticCredentialsProvider(
					cfg.AccessKeyID, cfg.SecretAccessKey, "",
				)
			}
		},
	}

	client := s3.New(s3.Options{}, opts...)

	return &s3Mirror{
		log:    log.WithField("component", "s3-mirror"),
		cfg:    cfg,
		client: client,
	}, nil
}

// Preflight verifies S3 connectivity by writing a small test object.
func (m *s3Mirror) Preflight(ctx context.Context) error {
	content := fmt.Sprintf("branch-summary write test: %s",
		time.Now().UTC().Format(time.RFC3339))
	body := strings.NewReader(content)

	_, err := m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.cfg.Bucket),
		Key:         aws.String(".branch-summary-write-test"),
		Body:        body,
		ContentType: aws.String("text/plain"),
	})
	if err != nil {
		return fmt.Errorf("writing test object to s3://%s: %w", m.cfg.Bucket, err)
	}

	return nil
}

// MirrorReports walks localDir and uploads all files under the configured
// prefix, preserving relative paths.
func (m *s3Mirror) MirrorReports(ctx context.Context, localDir string) error {
	prefix := m.resolvePrefix()

	var count int

	err := filepath.Walk(localDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if info.IsDir() {
			// The summaries checkout is mirrored in place; its version
			// control metadata is not part of the reports tree.
			if strings.HasPrefix(info.Name(), ".") && path != localDir {
				return filepath.SkipDir
			}

			return nil
		}

		relPath, err := filepath.Rel(localDir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		key := prefix + "/" + filepath.ToSlash(relPath)

		if err := m.uploadFile(ctx, path, key); err != nil {
			return fmt.Errorf("uploading %s: %w", relPath, err)
		}

		count++

		return nil
	})
	if err != nil {
		return fmt.Errorf("walking directory %s: %w", localDir, err)
	}

	m.log.WithFields(logrus.Fields{
		"files":  count,
		"bucket": m.cfg.Bucket,
		"prefix": prefix,
	}).Info("Mirror completed")

	return nil
}

// uploadFile uploads a single file to S3.
func (m *s3Mirror) uploadFile(ctx context.Context, localPath, key string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer func() { _ = f.Close() }()

	m.log.WithFields(logrus.Fields{
		"key":    key,
		"bucket": m.cfg.Bucket,
	}).Debug("Uploading file")

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(detectContentType(localPath)),
	})
	if err != nil {
		return fmt.Errorf("PutObject: %w", err)
	}

	return nil
}

// resolvePrefix returns the S3 key prefix for report uploads.
func (m *s3Mirror) resolvePrefix() string {
	prefix := m.cfg.Prefix
	if prefix == "" {
		prefix = "reports"
	}

	return strings.TrimRight(prefix, "/")
}

// detectContentType returns a MIME type based on file extension.
func detectContentType(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return "application/octet-stream"
	}

	ct := mime.TypeByExtension(ext)
	if ct == "" {
		return "application/octet-stream"
	}

	return ct
}
