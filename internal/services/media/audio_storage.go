package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
)

var ErrValidation = errors.New("validation error")

const defaultSignedURLTTL = 15 * time.Minute

// AudioStorage keeps voice-message blobs in an S3-compatible bucket. The
// messaging engine only ever sees the object key; raw bytes stay at the
// upload edge.
type AudioStorage struct {
	client *minio.Client
	bucket string

	ensureOnce sync.Once
	ensureErr  error
}

func NewAudioStorage(client *minio.Client, bucket string) *AudioStorage {
	return &AudioStorage{
		client: client,
		bucket: strings.TrimSpace(bucket),
	}
}

// NewAudioKey builds the object key for a new voice message. Keys are scoped
// per conversation so bucket cleanup can follow a conversation delete.
func NewAudioKey(conversationID int64, ext string) string {
	ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
	if ext == "" {
		ext = "ogg"
	}
	return fmt.Sprintf("conversation_audio/%d/%s.%s", conversationID, uuid.NewString(), ext)
}

func (s *AudioStorage) EnsureBucket(ctx context.Context) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if s.bucket == "" {
		return fmt.Errorf("s3 bucket is empty")
	}

	s.ensureOnce.Do(func() {
		exists, err := s.client.BucketExists(ctx, s.bucket)
		if err != nil {
			s.ensureErr = err
			return
		}
		if exists {
			return
		}
		s.ensureErr = s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{})
	})

	if s.ensureErr != nil {
		return fmt.Errorf("ensure s3 bucket %q: %w", s.bucket, s.ensureErr)
	}

	return nil
}

func (s *AudioStorage) PutAudio(ctx context.Context, key string, body io.Reader, size int64, contentType string) error {
	if s.client == nil {
		return fmt.Errorf("s3 client is nil")
	}
	if key == "" || body == nil || size <= 0 {
		return ErrValidation
	}

	if err := s.EnsureBucket(ctx); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("put audio object: %w", err)
	}

	return nil
}

func (s *AudioStorage) PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if s.client == nil {
		return "", fmt.Errorf("s3 client is nil")
	}
	if key == "" {
		return "", ErrValidation
	}
	if ttl <= 0 {
		ttl = defaultSignedURLTTL
	}

	presigned, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	if err != nil {
		return "", fmt.Errorf("presign audio object: %w", err)
	}

	return presigned.String(), nil
}

// ObjectInfo describes a stored audio blob for the cleanup sweep.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
}

// ListAudio streams the keys under the conversation audio prefix. Used by the
// orphan sweep; the hot path never lists the bucket.
func (s *AudioStorage) ListAudio(ctx context.Context) ([]ObjectInfo, error) {
	if s.client == nil {
		return nil, fmt.Errorf("s3 client is nil")
	}

	var items []ObjectInfo
	for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    "conversation_audio/",
		Recursive: true,
	}) {
		if object.Err != nil {
			return nil, fmt.Errorf("list audio objects: %w", object.Err)
		}
		items = append(items, ObjectInfo{
			Key:          object.Key,
			LastModified: object.LastModified,
		})
	}

	return items, nil
}

// Delete is the compensation hook for a failed send: the blob is already in
// the bucket but the message transaction rolled back.
func (s *AudioStorage) Delete(ctx context.Context, key string) error {
	if s.client == nil || key == "" {
		return nil
	}
	if err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("delete audio object: %w", err)
	}
	return nil
}
