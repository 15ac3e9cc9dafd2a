package s3blob

import (
	"bytes"
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/junheony/prediction-arbitrage/internal/domain"
)

// defaultPartSize is the S3 minimum multipart size (5 MiB). Daily archive
// files are usually well below it, so most uploads go out in one part.
const defaultPartSize int64 = 5 * 1024 * 1024

// Writer uploads archive objects to the configured bucket. It uses the SDK
// upload manager so large archive batches transparently become concurrent
// multipart uploads.
type Writer struct {
	uploader *manager.Uploader
	bucket   string
}

// NewWriter creates a Writer targeting the client's bucket.
func NewWriter(c *Client) *Writer {
	uploader := manager.NewUploader(c.S3(), func(u *manager.Uploader) {
		u.PartSize = defaultPartSize
	})
	return &Writer{
		uploader: uploader,
		bucket:   c.Bucket(),
	}
}

// Put uploads data under the given key.
func (w *Writer) Put(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := w.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: put object %s: %w", key, err)
	}
	return nil
}

var _ domain.BlobWriter = (*Writer)(nil)
