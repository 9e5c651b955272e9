// Package objstore wraps the external binary store: S3 uploads and deletes
// behind a circuit breaker, with oversized images downscaled before upload.
package objstore

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// maxImageDim bounds either side of an uploaded image.
const maxImageDim = 1920

const keyPrefix = "oolong/"

type Storage struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	region   string
	breaker  *gobreaker.CircuitBreaker
}

func New(ctx context.Context, region, bucket string) (*Storage, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	return &Storage{
		client:   client,
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		region:   region,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name: "objstore",
		}),
	}, nil
}

// Upload stores the bytes under a fresh key and returns the public URL and
// the key. Image payloads larger than maxImageDim on either side are fitted
// down first; bytes that do not decode are stored as-is.
func (s *Storage) Upload(ctx context.Context, filename, contentType string, data []byte) (string, string, error) {
	if strings.HasPrefix(contentType, "image/") {
		data = downscale(filename, data)
	}
	key := keyPrefix + uuid.New().String() + path.Ext(filename)

	_, err := s.breaker.Execute(func() (any, error) {
		return s.uploader.Upload(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(data),
			ContentType: aws.String(contentType),
		})
	})
	if err != nil {
		return "", "", fmt.Errorf("upload %s: %w", key, err)
	}
	publicURL := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, url.PathEscape(key))
	return publicURL, key, nil
}

// Delete removes a stored object by its key.
func (s *Storage) Delete(ctx context.Context, handle string) error {
	_, err := s.breaker.Execute(func() (any, error) {
		return s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(handle),
		})
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", handle, err)
	}
	return nil
}

func downscale(filename string, data []byte) []byte {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return data
	}
	bounds := img.Bounds()
	if bounds.Dx() <= maxImageDim && bounds.Dy() <= maxImageDim {
		return data
	}
	format, err := imaging.FormatFromFilename(filename)
	if err != nil {
		return data
	}
	fitted := imaging.Fit(img, maxImageDim, maxImageDim, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, fitted, format); err != nil {
		return data
	}
	return buf.Bytes()
}
