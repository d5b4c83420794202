// Package archive copies saved consultation records to object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"carepath/pkg"
)

// Store persists consultation records outside the database.
type Store interface {
	PutConsultation(ctx context.Context, profileID string, rec *pkg.ConsultationRecord) error
}

// Nop is used when no bucket is configured.
type Nop struct{}

func (Nop) PutConsultation(context.Context, string, *pkg.ConsultationRecord) error { return nil }

type putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Store writes each record as a private JSON object.
type S3Store struct {
	client putter
	bucket string
}

// NewS3Store loads the default AWS configuration (environment, shared
// config, instance role) and returns a store writing to bucket.
func NewS3Store(ctx context.Context, bucket string) (*S3Store, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.New(s3.Options{
		Region:       cfg.Region,
		Credentials:  cfg.Credentials,
		HTTPClient:   cfg.HTTPClient,
		BaseEndpoint: cfg.BaseEndpoint,
		UsePathStyle: true,
	})
	return &S3Store{client: client, bucket: bucket}, nil
}

// New returns an S3 store, or Nop when bucket is empty.
func New(ctx context.Context, bucket string) (Store, error) {
	if bucket == "" {
		return Nop{}, nil
	}
	return NewS3Store(ctx, bucket)
}

// Key is the object key of a record.
func Key(profileID, recordID string) string {
	return fmt.Sprintf("consultations/%s/%s.json", profileID, recordID)
}

func (s *S3Store) PutConsultation(ctx context.Context, profileID string, rec *pkg.ConsultationRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(Key(profileID, rec.ID)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		ACL:         types.ObjectCannedACLPrivate,
	})
	if err != nil {
		return fmt.Errorf("put s3://%s/%s: %w", s.bucket, Key(profileID, rec.ID), err)
	}
	return nil
}
