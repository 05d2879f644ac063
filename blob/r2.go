package blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/teranos/catalogix/am"
	"github.com/teranos/catalogix/errors"
)

// putObjectAPI is the slice of the S3 client R2Store uses.
type putObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Store writes to a Cloudflare R2 bucket (or any S3-compatible endpoint).
type R2Store struct {
	client       putObjectAPI
	bucket       string
	endpoint     string
	publicPrefix string
}

// NewR2Store builds an S3 client against the R2 endpoint of the account, or
// storage.endpoint when set.
func NewR2Store(cfg am.StorageConfig) (*R2Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.Wrap(errors.ErrNotConfigured, "storage.bucket")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		if cfg.AccountID == "" {
			return nil, errors.Wrap(errors.ErrNotConfigured, "storage.account_id")
		}
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID)
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	client := s3.New(s3.Options{
		Region:       region,
		BaseEndpoint: aws.String(endpoint),
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		UsePathStyle: true,
		// R2 rejects some of the newer default checksum headers
		RequestChecksumCalculation: aws.RequestChecksumCalculationWhenRequired,
	})

	return newR2StoreWithClient(client, cfg.Bucket, endpoint, cfg.PublicURLPrefix), nil
}

func newR2StoreWithClient(client putObjectAPI, bucket, endpoint, publicPrefix string) *R2Store {
	return &R2Store{
		client:       client,
		bucket:       bucket,
		endpoint:     endpoint,
		publicPrefix: publicPrefix,
	}
}

// Put uploads data under key and returns its public URL.
func (s *R2Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return "", errors.Wrapf(err, "upload %s to bucket %s", key, s.bucket)
	}
	return PublicURL(s.publicPrefix, key), nil
}

// Describe identifies the store in headers and logs.
func (s *R2Store) Describe() string {
	return fmt.Sprintf("r2 bucket=%s endpoint=%s", s.bucket, s.endpoint)
}
