package ingest

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/okieraised/ahu-fdd/internal/fdd/frame"
	"github.com/okieraised/ahu-fdd/internal/utilities"
	"github.com/pkg/errors"
)

// ObjectGetter is the part of *s3.Client that FromS3 needs.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

const (
	s3FetchAttempts   = 3
	s3FetchBackoff    = 500 * time.Millisecond
	s3FetchMaxBackoff = 4 * time.Second
)

// FromS3 downloads bucket/key and reads it as CSV. Transient fetch failures
// are retried with backoff.
func FromS3(ctx context.Context, getter ObjectGetter, bucket, key string, opts ...Option) (*frame.Frame, Stats, error) {
	var body []byte
	err := utilities.RetryWithBackoff(ctx, func() error {
		out, err := getter.GetObject(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(key),
		})
		if err != nil {
			return err
		}
		defer out.Body.Close()
		body, err = io.ReadAll(out.Body)
		return err
	}, s3FetchAttempts, s3FetchBackoff, s3FetchMaxBackoff)
	if err != nil {
		return nil, Stats{}, errors.Wrapf(err, "fetch s3://%s/%s", bucket, key)
	}
	return ReadCSV(bytes.NewReader(body), opts...)
}
