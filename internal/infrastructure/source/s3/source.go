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
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/dreschagin/staticserve/internal/application/port"
	"github.com/dreschagin/staticserve/internal/domain/entity"
	"github.com/dreschagin/staticserve/internal/domain/valueobject"
)

type Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	KeyPrefix       string
}

// Source serves assets from an S3 bucket. Objects are buffered in
// memory on open so range requests can seek; the caching decorator in
// front keeps hot objects from re-fetching.
type Source struct {
	client *s3.Client
	bucket string
	prefix string
}

func New(ctx context.Context, cfg Config) (*Source, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	if strings.TrimSpace(cfg.AccessKeyID) == "" || strings.TrimSpace(cfg.SecretAccessKey) == "" {
		return nil, fmt.Errorf("s3 access key id and secret are required")
	}
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "ru-central1"
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(
		ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(options *s3.Options) {
		if strings.TrimSpace(cfg.Endpoint) != "" {
			endpoint := strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/")
			options.BaseEndpoint = &endpoint
		}
		options.UsePathStyle = cfg.UsePathStyle
	})

	return &Source{
		client: client,
		bucket: strings.TrimSpace(cfg.Bucket),
		prefix: strings.Trim(strings.TrimSpace(cfg.KeyPrefix), "/"),
	}, nil
}

func (s *Source) Open(ctx context.Context, p string) (*port.Object, error) {
	clean := cleanRequestPath(p)
	key := s.key(clean)
	if key == "" {
		return nil, port.ErrIsDirectory
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, s.classifyMiss(ctx, key)
		}
		return nil, fmt.Errorf("get object %s: %w", key, err)
	}
	defer out.Body.Close()

	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read object %s: %w", key, err)
	}

	asset, err := entity.RestoreAsset(
		clean,
		int64(len(body)),
		valueTime(out.LastModified),
		valueStr(out.ETag),
		valueobject.ContentType(valueStr(out.ContentType)),
	)
	if err != nil {
		return nil, err
	}

	return &port.Object{Asset: asset, Content: port.NopCloser(bytes.NewReader(body))}, nil
}

func (s *Source) Stat(ctx context.Context, p string) (*entity.Asset, error) {
	clean := cleanRequestPath(p)
	key := s.key(clean)
	if key == "" {
		return entity.NewAsset("/", 0, time.Time{}, true)
	}

	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	})
	if err != nil {
		var notFound *types.NotFound
		if errors.As(err, &notFound) {
			return nil, s.classifyMiss(ctx, key)
		}
		return nil, fmt.Errorf("head object %s: %w", key, err)
	}

	return entity.RestoreAsset(
		clean,
		valueInt64(out.ContentLength),
		valueTime(out.LastModified),
		valueStr(out.ETag),
		valueobject.ContentType(valueStr(out.ContentType)),
	)
}

func (s *Source) List(ctx context.Context, dirPath string) ([]*entity.Asset, error) {
	clean := cleanRequestPath(dirPath)
	prefix := s.key(clean)
	if prefix != "" {
		prefix += "/"
	}
	delimiter := "/"

	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    &prefix,
		Delimiter: &delimiter,
	})
	if err != nil {
		return nil, fmt.Errorf("list objects %s: %w", prefix, err)
	}

	assets := make([]*entity.Asset, 0, len(out.Contents)+len(out.CommonPrefixes))

	for _, cp := range out.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(valueStr(cp.Prefix), prefix), "/")
		if name == "" {
			continue
		}
		asset, err := entity.NewAsset(path.Join(clean, name), 0, time.Time{}, true)
		if err != nil {
			continue
		}
		assets = append(assets, asset)
	}

	for _, object := range out.Contents {
		name := strings.TrimPrefix(valueStr(object.Key), prefix)
		if name == "" {
			continue
		}
		asset, err := entity.RestoreAsset(
			path.Join(clean, name),
			valueInt64(object.Size),
			valueTime(object.LastModified),
			valueStr(object.ETag),
			"",
		)
		if err != nil {
			continue
		}
		assets = append(assets, asset)
	}

	sort.Slice(assets, func(i, j int) bool {
		if assets[i].IsDir() != assets[j].IsDir() {
			return assets[i].IsDir()
		}
		return assets[i].Path() < assets[j].Path()
	})

	return assets, nil
}

func (s *Source) Ping(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.bucket})
	if err != nil {
		return fmt.Errorf("head bucket %s: %w", s.bucket, err)
	}
	return nil
}

// classifyMiss distinguishes a directory-like prefix from a plain miss
// so index documents and listings resolve the same way as on disk.
func (s *Source) classifyMiss(ctx context.Context, key string) error {
	prefix := key + "/"
	maxKeys := int32(1)
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:  &s.bucket,
		Prefix:  &prefix,
		MaxKeys: &maxKeys,
	})
	if err == nil && len(out.Contents) > 0 {
		return port.ErrIsDirectory
	}
	return port.ErrNotFound
}

func (s *Source) key(clean string) string {
	key := strings.TrimPrefix(clean, "/")
	if s.prefix == "" {
		return key
	}
	if key == "" {
		return s.prefix
	}
	return s.prefix + "/" + key
}

func cleanRequestPath(p string) string {
	return path.Clean("/" + strings.TrimPrefix(p, "/"))
}

func valueStr(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func valueInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func valueTime(v *time.Time) time.Time {
	if v == nil {
		return time.Time{}
	}
	return v.UTC()
}
