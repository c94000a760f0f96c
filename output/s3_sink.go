package output

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/forest-guardian/burnsev/internal/catalog"
	"github.com/forest-guardian/burnsev/internal/raster"
)

type S3Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Region    string
}

func NewMinIOClient(cfg S3Config) (*minio.Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("MINIO_ENDPOINT is required for s3 exports")
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
}

// S3Sink uploads <Destination>/<Name>.tif to Bucket, provenance as user metadata.
type S3Sink struct {
	Client  *minio.Client
	Bucket  string
	Encode  Encoder
	Timeout time.Duration
}

func (s S3Sink) Export(ctx context.Context, r *raster.Raster, prov catalog.Provenance, opts ExportOptions) error {
	md := exportMetadata(prov, opts)
	data, err := s.Encode(prepare(r, opts), md)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", opts.Name, err)
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	putCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	key := path.Join(opts.Destination, opts.Name+".tif")
	_, err = s.Client.PutObject(
		putCtx,
		s.Bucket,
		key,
		bytes.NewReader(data),
		int64(len(data)),
		minio.PutObjectOptions{ContentType: "image/tiff", UserMetadata: md},
	)
	if err != nil {
		return fmt.Errorf("failed to upload %s to %s: %w", key, s.Bucket, err)
	}
	return nil
}
