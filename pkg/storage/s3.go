// pkg/storage/s3.go
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/David-Botos/credit-risk/pkg/config"
)

// S3Store implements Store on an S3-compatible object store.
// Paths are full s3://bucket/key URLs.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	logger   *zap.Logger
	timeout  time.Duration
}

// NewS3Store creates an S3 store using static credentials and the configured endpoint
func NewS3Store(cfg *config.StorageConfig, logger *zap.Logger) *S3Store {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("s3-store")

	var creds aws.CredentialsProvider = aws.AnonymousCredentials{}
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	}

	awsCfg := aws.Config{
		Region:      cfg.Region,
		Credentials: creds,
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	logger.Info("Configured S3 store",
		zap.String("endpoint", cfg.EndpointURL),
		zap.String("region", cfg.Region),
		zap.Bool("path_style", cfg.UsePathStyle),
		zap.Bool("anonymous", cfg.AccessKeyID == ""))

	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		logger:   logger,
		timeout:  cfg.RequestTimeout,
	}
}

// Open downloads the object at an s3:// URL
func (s *S3Store) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	loc, err := parseS3(path)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(loc.Host),
		Key:    aws.String(loc.Path),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		var notFound *types.NotFound
		if errors.As(err, &noSuchKey) || errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to get %s: %w", path, err)
	}

	s.logger.Debug("Opened object", zap.String("path", path))
	return out.Body, nil
}

// Create returns a writer that uploads the object to an s3:// URL when closed
func (s *S3Store) Create(ctx context.Context, path string) (io.WriteCloser, error) {
	loc, err := parseS3(path)
	if err != nil {
		return nil, err
	}
	return &s3Writer{ctx: ctx, store: s, loc: loc}, nil
}

func (s *S3Store) upload(ctx context.Context, loc Location, body []byte) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(loc.Host),
		Key:    aws.String(loc.Path),
		Body:   bytes.NewReader(body),
	})
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", loc, err)
	}

	s.logger.Debug("Uploaded object",
		zap.String("path", loc.String()),
		zap.Int("bytes", len(body)))
	return nil
}

// s3Writer buffers the object and uploads it on Close
type s3Writer struct {
	ctx    context.Context
	store  *S3Store
	loc    Location
	buf    bytes.Buffer
	closed bool
}

func (w *s3Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, errors.New("write to closed s3 writer")
	}
	return w.buf.Write(p)
}

func (w *s3Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.store.upload(w.ctx, w.loc, w.buf.Bytes())
}

func parseS3(path string) (Location, error) {
	loc, err := ParseLocation(path)
	if err != nil {
		return Location{}, err
	}
	if loc.Scheme != SchemeS3 {
		return Location{}, fmt.Errorf("not an s3 location: %q", path)
	}
	return loc, nil
}
