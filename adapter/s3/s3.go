// Package s3 implements an S3-backed map store for AWS S3 and
// S3-compatible providers (Cloudflare R2, MinIO).
//
// Archives are stored as single objects under a key prefix; S3 already
// checksums objects end to end, so chunking stays a Redis concern.
package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/fazildgr8/stretch-ai/mapstore"
)

// mapExt matches the file backend's archive extension so a bucket
// listing reads the same as a maps directory.
const mapExt = ".map"

// Config configures the S3 map store.
type Config struct {
	// Bucket is the S3 bucket name (required).
	Bucket string
	// Prefix is the key prefix within the bucket (optional).
	Prefix string
	// Region is the AWS region (optional, default chain when empty).
	Region string
	// Endpoint is a custom endpoint URL for S3-compatible providers.
	// Empty uses the default AWS endpoint.
	Endpoint string
	// UsePathStyle forces path-style addressing (bucket in path, not
	// subdomain). Required by most S3-compatible providers.
	UsePathStyle bool
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3 store requires a bucket")
	}
	return nil
}

// Store persists map archives as S3 objects.
type Store struct {
	config Config
	client *awss3.Client
}

// New creates an S3 map store using the AWS SDK default credential
// chain (env vars, shared config, IAM role).
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3 store: load aws config: %w", err)
	}

	var s3Opts []func(*awss3.Options)
	if cfg.Endpoint != "" {
		endpoint := cfg.Endpoint
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.BaseEndpoint = &endpoint
		})
	}
	if cfg.UsePathStyle {
		s3Opts = append(s3Opts, func(o *awss3.Options) {
			o.UsePathStyle = true
		})
	}

	return NewWithClient(awss3.NewFromConfig(awsCfg, s3Opts...), cfg)
}

// NewWithClient builds the store around an existing client, for
// callers that manage their own AWS configuration.
func NewWithClient(client *awss3.Client, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{config: cfg, client: client}, nil
}

func (s *Store) key(name string) string {
	if s.config.Prefix == "" {
		return name + mapExt
	}
	return path.Join(s.config.Prefix, name+mapExt)
}

// wrapOp maps an S3 error onto the mapstore taxonomy. The SDK reports
// a missing object as NoSuchKey on GET and NotFound on HEAD.
func wrapOp(op, name string, err error) error {
	if err == nil {
		return nil
	}
	var noKey *s3types.NoSuchKey
	var notFound *s3types.NotFound
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return mapstore.NotFound(op, name)
	}
	return mapstore.Wrap(op, name, err)
}

// Save implements mapstore.Store.
func (s *Store) Save(ctx context.Context, name string, data []byte) error {
	if err := mapstore.ValidateName(name); err != nil {
		return err
	}
	_, err := s.client.PutObject(ctx, &awss3.PutObjectInput{
		Bucket:      aws.String(s.config.Bucket),
		Key:         aws.String(s.key(name)),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
	})
	return wrapOp("save", name, err)
}

// Load implements mapstore.Store.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	if err := mapstore.ValidateName(name); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &awss3.GetObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return nil, wrapOp("load", name, err)
	}
	defer func() { _ = out.Body.Close() }()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, wrapOp("load", name, err)
	}
	return data, nil
}

// List implements mapstore.Store. Objects without the archive
// extension are ignored so the prefix can be shared.
func (s *Store) List(ctx context.Context) ([]mapstore.Info, error) {
	input := &awss3.ListObjectsV2Input{
		Bucket: aws.String(s.config.Bucket),
	}
	if s.config.Prefix != "" {
		input.Prefix = aws.String(s.config.Prefix + "/")
	}

	var infos []mapstore.Info
	paginator := awss3.NewListObjectsV2Paginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, wrapOp("list", "", err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if !strings.HasSuffix(key, mapExt) {
				continue
			}
			info := mapstore.Info{
				Name: strings.TrimSuffix(path.Base(key), mapExt),
				Size: aws.ToInt64(obj.Size),
			}
			if obj.LastModified != nil {
				info.SavedAt = *obj.LastModified
			}
			infos = append(infos, info)
		}
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

// Delete implements mapstore.Store. S3 deletes are idempotent, so a
// head check keeps the contract's not-found semantics.
func (s *Store) Delete(ctx context.Context, name string) error {
	if err := mapstore.ValidateName(name); err != nil {
		return err
	}
	_, err := s.client.HeadObject(ctx, &awss3.HeadObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(name)),
	})
	if err != nil {
		return wrapOp("delete", name, err)
	}
	_, err = s.client.DeleteObject(ctx, &awss3.DeleteObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(s.key(name)),
	})
	return wrapOp("delete", name, err)
}

// Close implements mapstore.Store. The SDK client holds no
// connections that need explicit release.
func (s *Store) Close() error {
	return nil
}

// Verify Store implements the mapstore contract.
var _ mapstore.Store = (*Store)(nil)
