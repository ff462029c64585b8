// Package s3files implements store.FileStore over Amazon S3 or an
// S3-compatible service. Locations are written "bucket/prefix".
//
// ListObjectsV2 carries no content type, so listed files get one from their
// key's extension. Keys without an extension are looked up with HeadObject
// to read the content type declared at upload.
package s3files

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/cleared-dev/ledgerfeed/internal/model"
)

// API is the subset of the S3 client the store uses.
type API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	CopyObject(ctx context.Context, in *s3.CopyObjectInput, optFns ...func(*s3.Options)) (*s3.CopyObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Options configures the S3 client.
type Options struct {
	Region    string
	Endpoint  string // for S3-compatible services
	PathStyle bool
}

// Store lists, reads and archives objects.
type Store struct {
	api API
}

// New creates a Store using the default AWS credential chain.
func New(ctx context.Context, opts Options) (*Store, error) {
	var loadOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(opts.Region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
		o.UsePathStyle = opts.PathStyle
	})
	return NewWithAPI(client), nil
}

// NewWithAPI creates a Store over an existing client.
func NewWithAPI(api API) *Store {
	return &Store{api: api}
}

// ParseLocation splits "bucket/prefix" into its bucket and a key prefix that
// is either empty or ends in "/".
func ParseLocation(location string) (bucket, prefix string, err error) {
	location = strings.TrimPrefix(strings.TrimSpace(location), "s3://")
	bucket, prefix, _ = strings.Cut(location, "/")
	if bucket == "" {
		return "", "", fmt.Errorf("invalid S3 location %q", location)
	}
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return bucket, prefix, nil
}

func splitID(id string) (bucket, key string, err error) {
	bucket, key, ok := strings.Cut(id, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("invalid S3 object id %q", id)
	}
	return bucket, key, nil
}

// List returns the objects directly under the location prefix. Objects in
// deeper "folders" are not listed.
func (s *Store) List(ctx context.Context, location string) ([]model.FileHandle, error) {
	bucket, prefix, err := ParseLocation(location)
	if err != nil {
		return nil, err
	}

	in := &s3.ListObjectsV2Input{
		Bucket:    aws.String(bucket),
		Delimiter: aws.String("/"),
	}
	if prefix != "" {
		in.Prefix = aws.String(prefix)
	}

	var files []model.FileHandle
	p := s3.NewListObjectsV2Paginator(s.api, in)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix || strings.HasSuffix(key, "/") {
				continue
			}
			name := path.Base(key)
			ct, err := s.contentType(ctx, bucket, key)
			if err != nil {
				return nil, err
			}
			files = append(files, model.FileHandle{
				ID:          bucket + "/" + key,
				Name:        name,
				ContentType: ct,
			})
		}
	}
	return files, nil
}

func (s *Store) contentType(ctx context.Context, bucket, key string) (string, error) {
	if ext := path.Ext(key); ext != "" {
		return mime.TypeByExtension(ext), nil
	}
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("head object s3://%s/%s: %w", bucket, key, err)
	}
	return aws.ToString(out.ContentType), nil
}

// Read downloads the object body.
func (s *Store) Read(ctx context.Context, h model.FileHandle) ([]byte, error) {
	bucket, key, err := splitID(h.ID)
	if err != nil {
		return nil, err
	}
	resp, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get object s3://%s/%s: %w", bucket, key, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read object s3://%s/%s: %w", bucket, key, err)
	}
	return data, nil
}

// Move copies the object under the destination prefix, then deletes the
// original. If the delete fails the copy is left in place and the error is
// returned, so the next run sees the file again in its source location.
func (s *Store) Move(ctx context.Context, h model.FileHandle, from, to string) error {
	srcBucket, srcKey, err := splitID(h.ID)
	if err != nil {
		return err
	}
	fromBucket, _, err := ParseLocation(from)
	if err != nil {
		return err
	}
	if fromBucket != srcBucket {
		return fmt.Errorf("object %s is not in location %s", h.ID, from)
	}
	dstBucket, dstPrefix, err := ParseLocation(to)
	if err != nil {
		return err
	}
	dstKey := dstPrefix + h.Name
	if dstBucket == srcBucket && dstKey == srcKey {
		return errors.New("archive location equals source location")
	}

	_, err = s.api.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(dstBucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(copySource(srcBucket, srcKey)),
	})
	if err != nil {
		return fmt.Errorf("copy s3://%s/%s to s3://%s/%s: %w", srcBucket, srcKey, dstBucket, dstKey, err)
	}

	_, err = s.api.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(srcBucket),
		Key:    aws.String(srcKey),
	})
	if err != nil {
		return fmt.Errorf("delete s3://%s/%s: %w", srcBucket, srcKey, err)
	}
	return nil
}

// copySource URL-encodes "bucket/key" segment by segment.
func copySource(bucket, key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return bucket + "/" + strings.Join(parts, "/")
}
