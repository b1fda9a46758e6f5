package tiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/signalsfoundry/drift-predictor/core"
	"github.com/signalsfoundry/drift-predictor/internal/fieldcache"
)

// ObjectStoreConfig locates tiles in an S3-compatible bucket.
type ObjectStoreConfig struct {
	// Endpoint is host:port or a URL; an https scheme implies UseSSL.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	UseSSL          bool

	Bucket string
	// Prefix is prepended to ObjectName.
	Prefix string
}

// ObjectSource reads tiles from MinIO or S3.
type ObjectSource struct {
	client *minio.Client
	bucket string
	prefix string
}

// NewObjectSource builds a client for cfg. No request is made until Fetch.
func NewObjectSource(cfg ObjectStoreConfig) (*ObjectSource, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("object store endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("object store bucket is required")
	}

	endpoint, useSSL := cfg.Endpoint, cfg.UseSSL
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		endpoint = u.Host
		if u.Scheme == "https" {
			useSSL = true
		}
	}

	var creds *credentials.Credentials
	if cfg.AccessKeyID != "" {
		creds = credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, "")
	} else {
		creds = credentials.NewEnvAWS()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: useSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create object store client: %w", err)
	}
	return &ObjectSource{client: client, bucket: cfg.Bucket, prefix: cfg.Prefix}, nil
}

// ObjectKey returns the object name holding key.
func (o *ObjectSource) ObjectKey(key fieldcache.TileKey) string {
	return path.Join(o.prefix, ObjectName(key))
}

func (o *ObjectSource) Fetch(ctx context.Context, key fieldcache.TileKey) (*core.VectorField, error) {
	name := o.ObjectKey(key)
	obj, err := o.client.GetObject(ctx, o.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, classifyObjectError(o.bucket, name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classifyObjectError(o.bucket, name, err)
	}
	f, _, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("object %s/%s: %w", o.bucket, name, err)
	}
	return f, nil
}

func classifyObjectError(bucket, name string, err error) error {
	resp := minio.ToErrorResponse(err)
	switch string(resp.Code) {
	case "NoSuchKey", "NoSuchBucket":
		return fmt.Errorf("%w: %s/%s", ErrTileNotFound, bucket, name)
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s/%s", ErrTileNotFound, bucket, name)
	}
	return fmt.Errorf("get object %s/%s: %w", bucket, name, err)
}
