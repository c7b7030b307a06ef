package snapshot

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// ObjectOptions configures the S3-compatible backend.
type ObjectOptions struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
	Bucket    string
	Object    string
}

// objectStore reads and writes one blob. The minio client is adapted to it
// so the backend can be exercised without a live bucket.
type objectStore interface {
	get(ctx context.Context) ([]byte, error)
	put(ctx context.Context, data []byte) error
}

// errNoObject means the snapshot object has never been written.
var errNoObject = errors.New("snapshot object does not exist")

// ObjectBackend keeps the snapshot as a single JSON object in a bucket.
type ObjectBackend struct {
	store objectStore
	name  string
}

// NewObjectBackend connects to the bucket described by opts.
func NewObjectBackend(opts ObjectOptions) (*ObjectBackend, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	object := opts.Object
	if object == "" {
		object = DefaultPath
	}
	return &ObjectBackend{
		store: &minioObject{client: client, bucket: opts.Bucket, object: object},
		name:  opts.Bucket + "/" + object,
	}, nil
}

func (b *ObjectBackend) Load(ctx context.Context) ([]Record, error) {
	data, err := b.store.get(ctx)
	if errors.Is(err, errNoObject) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", b.name, err)
	}
	return decodeRecords(data)
}

func (b *ObjectBackend) Save(ctx context.Context, records []Record) error {
	data, err := encodeRecords(records)
	if err != nil {
		return err
	}
	if err := b.store.put(ctx, data); err != nil {
		return fmt.Errorf("put %s: %w", b.name, err)
	}
	return nil
}

type minioObject struct {
	client *minio.Client
	bucket string
	object string
}

func (m *minioObject) get(ctx context.Context) ([]byte, error) {
	obj, err := m.client.GetObject(ctx, m.bucket, m.object, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyObjectErr(err)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyObjectErr(err)
	}
	return buf, nil
}

func (m *minioObject) put(ctx context.Context, data []byte) error {
	opts := minio.PutObjectOptions{ContentType: "application/json"}
	_, err := m.client.PutObject(ctx, m.bucket, m.object, bytes.NewReader(data), int64(len(data)), opts)
	return err
}

func classifyObjectErr(err error) error {
	if minio.ToErrorResponse(err).Code == "NoSuchKey" {
		return errNoObject
	}
	return err
}
