package s3blob

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// multipartThreshold is the declared size at which Put switches from a
// single PutObject to the concurrent upload manager.
const multipartThreshold int64 = 32 * 1024 * 1024

// Writer implements domain.BlobWriter against the client's bucket.
type Writer struct {
	client *s3.Client
	bucket string
}

// NewWriter creates a Writer that uploads into c's bucket.
func NewWriter(c *Client) *Writer {
	return &Writer{client: c.S3(), bucket: c.Bucket()}
}

// Put uploads one batch. Batches below the multipart threshold go up as a
// single PutObject; larger ones stream through the SDK upload manager in
// concurrent parts. The content type is recorded either way.
func (w *Writer) Put(ctx context.Context, path string, data io.Reader, contentType string, size int64) error {
	if size < multipartThreshold {
		_, err := w.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:        aws.String(w.bucket),
			Key:           aws.String(path),
			Body:          data,
			ContentType:   aws.String(contentType),
			ContentLength: aws.Int64(size),
		})
		if err != nil {
			return fmt.Errorf("s3blob: put %s: %w", path, err)
		}
		return nil
	}

	uploader := manager.NewUploader(w.client)
	_, err := uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(path),
		Body:        data,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("s3blob: multipart put %s: %w", path, err)
	}
	return nil
}
