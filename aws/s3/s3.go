// Package s3 provides a csv.OpenStringer for objects in S3, so trip imports
// can read extracts straight from a bucket with the same chunked tokenizer
// used for local files.
package s3

import (
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
)

// Opener opens one S3 object for reading. It implements csv.OpenStringer
// and csv.Sizer.
type Opener struct {
	Bucket string
	Key    string
	Region string

	size int64
}

// Option is a functional option for NewOpener.
type Option func(*Opener)

// OptRegion sets the AWS region for the Opener.
func OptRegion(region string) Option {
	return func(o *Opener) {
		o.Region = region
	}
}

// NewOpener returns an Opener for the given bucket and key.
func NewOpener(bucket, key string, opts ...Option) *Opener {
	o := &Opener{
		Bucket: bucket,
		Key:    key,
		Region: "us-east-1",
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ParseURL turns an s3://bucket/key URL into an Opener.
func ParseURL(url string, opts ...Option) (*Opener, error) {
	trimmed := strings.TrimPrefix(url, "s3://")
	if trimmed == url {
		return nil, errors.Errorf("not an s3 url: %s", url)
	}
	bucket, key, found := strings.Cut(trimmed, "/")
	if !found || bucket == "" || key == "" {
		return nil, errors.Errorf("s3 url must look like s3://bucket/key, got %s", url)
	}
	return NewOpener(bucket, key, opts...), nil
}

// Open fetches the object and returns its body. Each call re-fetches from
// the beginning, which is what retry loops expect.
func (o *Opener) Open() (io.ReadCloser, error) {
	sess, err := session.NewSession(&aws.Config{Region: aws.String(o.Region)})
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	out, err := s3.New(sess).GetObject(&s3.GetObjectInput{
		Bucket: aws.String(o.Bucket),
		Key:    aws.String(o.Key),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "getting %s", o)
	}
	if out.ContentLength != nil {
		o.size = *out.ContentLength
	}
	return out.Body, nil
}

// Size returns the object's content length as of the last Open, 0 before
// the first Open.
func (o *Opener) Size() int64 { return o.size }

func (o *Opener) String() string {
	return fmt.Sprintf("s3://%s/%s", o.Bucket, o.Key)
}
