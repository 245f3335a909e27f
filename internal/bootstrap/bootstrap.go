package bootstrap

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/intellipatent/intellipatent/internal/config"
)

// EnsureDatabase makes sure the metadata database file exists before the
// server starts, downloading it from the configured location when the
// local copy is missing.
func EnsureDatabase(ctx context.Context, dbPath string, cfg config.BootstrapConfig) error {
	if _, err := os.Stat(dbPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat database: %w", err)
	}
	if cfg.URL == "" {
		return fmt.Errorf("database %s is missing and no bootstrap.url is configured", dbPath)
	}

	logger := logutil.GetLogger(ctx).With(zap.String("db_path", dbPath), zap.String("url", cfg.URL))
	logger.Info("database missing, downloading")

	var body io.ReadCloser
	var err error
	switch {
	case strings.HasPrefix(cfg.URL, "s3://"):
		body, err = fetchS3(ctx, cfg.URL, cfg.S3)
	case strings.HasPrefix(cfg.URL, "http://"), strings.HasPrefix(cfg.URL, "https://"):
		body, err = fetchHTTP(ctx, cfg.URL)
	default:
		return fmt.Errorf("unsupported bootstrap url scheme: %s", cfg.URL)
	}
	if err != nil {
		return err
	}
	defer body.Close()

	if err := writeAtomic(dbPath, body); err != nil {
		return err
	}
	logger.Info("database downloaded")
	return nil
}

func fetchHTTP(ctx context.Context, url string) (io.ReadCloser, error) {
	client := &http.Client{Timeout: 10 * time.Minute}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	rsp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download database: %w", err)
	}
	if rsp.StatusCode != http.StatusOK {
		rsp.Body.Close()
		return nil, fmt.Errorf("download database: unexpected status %d", rsp.StatusCode)
	}
	return rsp.Body, nil
}

func fetchS3(ctx context.Context, rawURL string, s3cfg config.S3Config) (io.ReadCloser, error) {
	bucket, key, err := splitS3URL(rawURL)
	if err != nil {
		return nil, err
	}
	opts := []func(*awsconfig.LoadOptions) error{}
	if s3cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s3cfg.Region))
	}
	if s3cfg.SecretID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(s3cfg.SecretID, s3cfg.SecretKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s3cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(s3cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	out, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3 object: %w", err)
	}
	return out.Body, nil
}

func splitS3URL(rawURL string) (bucket, key string, err error) {
	rest := strings.TrimPrefix(rawURL, "s3://")
	parts := strings.SplitN(rest, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid s3 url: %s", rawURL)
	}
	return parts[0], parts[1], nil
}

// writeAtomic stages the download next to the target and renames it in,
// so a failed download never leaves a truncated database behind.
func writeAtomic(dbPath string, r io.Reader) error {
	if dir := filepath.Dir(dbPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create database dir: %w", err)
		}
	}
	tmp, err := os.CreateTemp(filepath.Dir(dbPath), ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		return fmt.Errorf("write database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dbPath)
}
