// Package s3store keeps backups as objects in an S3 compatible bucket.
package s3store

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/raoulx24/backup-pruner/internal/retention"
)

// API is the subset of the S3 client the store uses.
type API interface {
	s3.ListObjectsV2APIClient
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type Options struct {
	Bucket    string
	KeyPrefix string // only keys below this prefix are listed
	Region    string
	Endpoint  string // for S3 compatible services; enables path-style addressing
}

// Store lists the objects below KeyPrefix. Record IDs are full object keys;
// record names have KeyPrefix stripped so series prefixes match file names.
type Store struct {
	client    API
	bucket    string
	keyPrefix string
}

// New builds a client from the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Store, error) {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, opts.Bucket, opts.KeyPrefix), nil
}

func NewWithClient(client API, bucket, keyPrefix string) *Store {
	return &Store{client: client, bucket: bucket, keyPrefix: keyPrefix}
}

func (s *Store) List(ctx context.Context) ([]retention.Record, error) {
	p := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(s.keyPrefix),
	})

	var records []retention.Record
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing s3://%s/%s: %w", s.bucket, s.keyPrefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			name := strings.TrimPrefix(key, s.keyPrefix)
			if name == "" || strings.Contains(name, "/") {
				continue
			}
			r := retention.Record{ID: key, Name: name, Size: aws.ToInt64(obj.Size)}
			if obj.LastModified != nil {
				r.CreatedAt = obj.LastModified.UTC()
			}
			records = append(records, r)
		}
	}

	slices.SortStableFunc(records, func(a, b retention.Record) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return records, nil
}

func (s *Store) Remove(ctx context.Context, r retention.Record) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(r.ID),
	})
	if err != nil {
		return fmt.Errorf("deleting s3://%s/%s: %w", s.bucket, r.ID, err)
	}
	return nil
}

func (s *Store) String() string {
	return "s3://" + s.bucket + "/" + s.keyPrefix
}
