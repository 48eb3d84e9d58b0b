// Package archive keeps a copy of every verified webhook body in S3 for
// audit and replay.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/ignite/email-tracker/internal/domain"
	"github.com/ignite/email-tracker/internal/pkg/logger"
)

const putTimeout = 10 * time.Second

// Archiver stores a raw webhook payload.
type Archiver interface {
	Archive(provider domain.Provider, body []byte, receivedAt time.Time)
}

// Nop discards payloads.
type Nop struct{}

// Archive implements Archiver.
func (Nop) Archive(domain.Provider, []byte, time.Time) {}

// S3API is the part of *s3.Client the archiver uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver writes payloads to
// s3://bucket/prefix/{provider}/{yyyy}/{mm}/{dd}/{uuid}.json in the
// background so archiving never delays a webhook response.
type S3Archiver struct {
	client S3API
	bucket string
	prefix string
	newID  func() string
	wg     sync.WaitGroup
}

// NewS3Archiver creates an archiver for bucket under prefix.
func NewS3Archiver(client S3API, bucket, prefix string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		newID:  func() string { return uuid.New().String() },
	}
}

// Key returns the object key for a payload received at t.
func (a *S3Archiver) Key(provider domain.Provider, t time.Time, id string) string {
	t = t.UTC()
	return path.Join(a.prefix, string(provider),
		fmt.Sprintf("%04d", t.Year()), fmt.Sprintf("%02d", int(t.Month())), fmt.Sprintf("%02d", t.Day()),
		id+".json")
}

// Archive implements Archiver. body is copied before the call returns.
func (a *S3Archiver) Archive(provider domain.Provider, body []byte, receivedAt time.Time) {
	data := append([]byte(nil), body...)
	key := a.Key(provider, receivedAt, a.newID())

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
		defer cancel()

		_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(a.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String("application/json"),
			Metadata: map[string]string{
				"provider":    string(provider),
				"received-at": receivedAt.UTC().Format(time.RFC3339),
			},
		})
		if err != nil {
			logger.Error("archiving webhook payload", "provider", provider, "bucket", a.bucket, "key", key, "error", err)
		}
	}()
}

// Close waits for pending uploads.
func (a *S3Archiver) Close() { a.wg.Wait() }
