package history

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/torosent/perfsuite/internal/record"
)

// S3API is the subset of the S3 client the store needs.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Store keeps records in an S3 bucket under an optional key prefix.
type S3Store struct {
	Client S3API
	Bucket string
	Prefix string
}

// S3Options configure NewS3Store.
type S3Options struct {
	Bucket   string
	Prefix   string
	Region   string
	Endpoint string // for S3-compatible stores
}

// NewS3Store builds a store using the default AWS credential chain.
func NewS3Store(ctx context.Context, opts S3Options) (*S3Store, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 history requires a bucket")
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(opts.Region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &S3Store{Client: client, Bucket: opts.Bucket, Prefix: opts.Prefix}, nil
}

func (s *S3Store) testPrefix(client, test string) string {
	p := path.Join(strings.Trim(s.Prefix, "/"), segment(client), segment(test))
	return strings.TrimPrefix(p, "/") + "/"
}

// Save uploads rec. Object keys are unique per run so no locking is needed.
func (s *S3Store) Save(ctx context.Context, rec record.RunRecord) (string, error) {
	name := RecordName(rec)
	var buf bytes.Buffer
	if err := record.Encode(&buf, rec); err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	_, err := s.Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.Bucket),
		Key:         aws.String(s.testPrefix(rec.Client, rec.TestName) + name),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("put record: %w", err)
	}
	return name, nil
}

// List pages through the test prefix and returns names oldest-first.
func (s *S3Store) List(ctx context.Context, client, test string) ([]string, error) {
	prefix := s.testPrefix(client, test)
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(s.Bucket),
		Prefix: aws.String(prefix),
	}

	var names []string
	for {
		out, err := s.Client.ListObjectsV2(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("list records: %w", err)
		}
		for _, obj := range out.Contents {
			name := strings.TrimPrefix(aws.ToString(obj.Key), prefix)
			if !strings.Contains(name, "/") && isRecordName(name) {
				names = append(names, name)
			}
		}
		if !aws.ToBool(out.IsTruncated) || out.NextContinuationToken == nil {
			break
		}
		input.ContinuationToken = out.NextContinuationToken
	}
	return sortNames(names), nil
}

// Load downloads one record by name.
func (s *S3Store) Load(ctx context.Context, client, test, name string) (record.RunRecord, error) {
	if err := checkName(name); err != nil {
		return record.RunRecord{}, err
	}
	out, err := s.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.Bucket),
		Key:    aws.String(s.testPrefix(client, test) + name),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return record.RunRecord{}, fmt.Errorf("%s: %w", name, ErrNotFound)
		}
		return record.RunRecord{}, fmt.Errorf("get record: %w", err)
	}
	defer out.Body.Close()
	return record.Decode(out.Body)
}
