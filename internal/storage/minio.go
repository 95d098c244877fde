// Package storage hands offer documents that only exist as bytes to the
// conversion service through presigned object-storage URLs.
package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/madelhuette/carvitra-sub001/constants"
	"github.com/madelhuette/carvitra-sub001/internal/common"
	"github.com/madelhuette/carvitra-sub001/internal/entity"
)

type Config struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	Region        string // default us-east-1; presigning stays offline when set
	UseSSL        bool
	PresignExpiry time.Duration
}

type MinioStore struct {
	client *minio.Client
	cfg    Config
	logger *slog.Logger
}

func NewMinioStore(cfg Config, logger *slog.Logger) (*MinioStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = time.Hour
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, common.NewKindError(common.ErrInvalidInput, "STORAGE_CONFIG", "create minio client", err)
	}
	return &MinioStore{client: client, cfg: cfg, logger: logger}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.cfg.Bucket)
	if err != nil {
		return classify(err, "check bucket")
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.cfg.Bucket, minio.MakeBucketOptions{Region: s.cfg.Region}); err != nil {
			return classify(err, "create bucket")
		}
	}
	return nil
}

// ObjectKey names a document by its content hash, so re-submitting the same
// offer reuses the stored object.
func ObjectKey(data []byte) string {
	sum := sha256.Sum256(data)
	return "offers/" + hex.EncodeToString(sum[:]) + constants.ExtPDF
}

// Reference uploads doc unless an object with the same content already exists
// and returns a presigned GET URL for it.
func (s *MinioStore) Reference(ctx context.Context, doc entity.Document) (string, error) {
	if len(doc.Data) == 0 {
		return "", common.NewKindError(common.ErrInvalidInput, "STORAGE_EMPTY", "document has no data", nil)
	}
	start := time.Now()
	key := ObjectKey(doc.Data)

	uploaded := false
	if _, err := s.client.StatObject(ctx, s.cfg.Bucket, key, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code != "NoSuchKey" {
			return "", classify(err, "stat object")
		}
		_, err := s.client.PutObject(ctx, s.cfg.Bucket, key, bytes.NewReader(doc.Data), int64(len(doc.Data)), minio.PutObjectOptions{
			ContentType: constants.MimePDF,
		})
		if err != nil {
			return "", classify(err, "upload object")
		}
		uploaded = true
	}

	u, err := s.client.PresignedGetObject(ctx, s.cfg.Bucket, key, s.cfg.PresignExpiry, nil)
	if err != nil {
		return "", classify(err, "presign object")
	}
	s.logger.Info("storage.reference",
		"key", key,
		"bytes", len(doc.Data),
		"uploaded", uploaded,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return u.String(), nil
}

func classify(err error, msg string) error {
	resp := minio.ToErrorResponse(err)
	switch {
	case resp.StatusCode != 0:
		return common.StatusError("storage", resp.StatusCode, []byte(resp.Code+" "+resp.Message))
	case common.IsTransient(err):
		return common.NewKindError(common.ErrTransient, "STORAGE_UNAVAILABLE", msg, err)
	default:
		return common.NewKindError(common.ErrUpstream, "STORAGE_ERROR", msg, err)
	}
}
