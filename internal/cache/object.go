package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"idschooldata/internal/config"
	"idschooldata/pkg/contracts/domain"
)

var objectKeyPattern = regexp.MustCompile(`(?:^|/)(wide|tidy)/(\d+)\.json$`)

// ObjectClient is the slice of an S3-compatible API the object store needs.
// GetObject returns ErrNotFound for a missing key.
type ObjectClient interface {
	PutObject(ctx context.Context, key string, data []byte) error
	GetObject(ctx context.Context, key string) ([]byte, error)
	ObjectExists(ctx context.Context, key string) (bool, error)
	RemoveObject(ctx context.Context, key string) error
	ListKeys(ctx context.Context, prefix string) ([]string, error)
}

// ObjectStore keeps entries as objects named <prefix>/<shape>/<year>.json.
// A single PUT replaces an object atomically.
type ObjectStore struct {
	client ObjectClient
	prefix string
}

// NewObjectStore wraps client. prefix may be empty.
func NewObjectStore(client ObjectClient, prefix string) *ObjectStore {
	return &ObjectStore{client: client, prefix: strings.Trim(prefix, "/")}
}

// OpenMinIOStore connects to the bucket named in cfg, creating it if needed
func OpenMinIOStore(ctx context.Context, cfg config.MinIOConfig) (*ObjectStore, error) {
	client, err := NewMinIOClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewObjectStore(client, cfg.Prefix), nil
}

// ObjectKey names the object backing an entry
func (s *ObjectStore) ObjectKey(endYear int, shape domain.Shape) string {
	return path.Join(s.prefix, string(shape), strconv.Itoa(endYear)+".json")
}

func (s *ObjectStore) Exists(ctx context.Context, endYear int, shape domain.Shape) (bool, error) {
	return s.client.ObjectExists(ctx, s.ObjectKey(endYear, shape))
}

func (s *ObjectStore) Read(ctx context.Context, endYear int, shape domain.Shape) (*domain.EnrollmentTable, error) {
	data, err := s.client.GetObject(ctx, s.ObjectKey(endYear, shape))
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (s *ObjectStore) Write(ctx context.Context, table *domain.EnrollmentTable, endYear int, shape domain.Shape) error {
	if err := checkKey(endYear, shape); err != nil {
		return err
	}
	data, err := Encode(table)
	if err != nil {
		return err
	}
	return s.client.PutObject(ctx, s.ObjectKey(endYear, shape), data)
}

func (s *ObjectStore) Delete(ctx context.Context, endYear int, shape domain.Shape) error {
	return s.client.RemoveObject(ctx, s.ObjectKey(endYear, shape))
}

func (s *ObjectStore) Keys(ctx context.Context) ([]Key, error) {
	prefix := s.prefix
	if prefix != "" {
		prefix += "/"
	}
	names, err := s.client.ListKeys(ctx, prefix)
	if err != nil {
		return nil, err
	}

	var keys []Key
	for _, name := range names {
		m := objectKeyPattern.FindStringSubmatch(strings.TrimPrefix(name, prefix))
		if m == nil {
			continue
		}
		year, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		keys = append(keys, Key{EndYear: year, Shape: domain.Shape(m[1])})
	}
	sortKeys(keys)
	return keys, nil
}

func (s *ObjectStore) Close() error { return nil }

// MinIOClient implements ObjectClient with the minio-go SDK
type MinIOClient struct {
	client *minio.Client
	bucket string
}

// NewMinIOClient creates a client for cfg.Bucket, creating the bucket when
// it does not exist.
func NewMinIOClient(ctx context.Context, cfg config.MinIOConfig) (*MinIOClient, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("minio endpoint and bucket are required")
	}

	// accept either host:port or a URL
	endpoint := cfg.Endpoint
	useSSL := cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		useSSL = u.Scheme == "https"
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket %s: %w", cfg.Bucket, err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region}); err != nil {
			return nil, fmt.Errorf("create bucket %s: %w", cfg.Bucket, err)
		}
	}
	return &MinIOClient{client: client, bucket: cfg.Bucket}, nil
}

func (c *MinIOClient) PutObject(ctx context.Context, key string, data []byte) error {
	_, err := c.client.PutObject(ctx, c.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("put %s: %w", key, err)
	}
	return nil
}

func (c *MinIOClient) GetObject(ctx context.Context, key string) ([]byte, error) {
	obj, err := c.client.GetObject(ctx, c.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyMinIOError(key, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyMinIOError(key, err)
	}
	return data, nil
}

func (c *MinIOClient) ObjectExists(ctx context.Context, key string) (bool, error) {
	_, err := c.client.StatObject(ctx, c.bucket, key, minio.StatObjectOptions{})
	if err == nil {
		return true, nil
	}
	if errors.Is(classifyMinIOError(key, err), ErrNotFound) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", key, err)
}

func (c *MinIOClient) RemoveObject(ctx context.Context, key string) error {
	if err := c.client.RemoveObject(ctx, c.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("remove %s: %w", key, err)
	}
	return nil
}

func (c *MinIOClient) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	for obj := range c.client.ListObjects(ctx, c.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, obj.Err)
		}
		keys = append(keys, obj.Key)
	}
	return keys, nil
}

func classifyMinIOError(key string, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NoSuchObject":
		return ErrNotFound
	}
	return fmt.Errorf("get %s: %w", key, err)
}
