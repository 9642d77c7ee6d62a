package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rotisserie/eris"

	"github.com/sells-group/customer-pipeline/internal/config"
	"github.com/sells-group/customer-pipeline/internal/resilience"
)

// S3 is a Store backed by Amazon S3 or an S3-compatible endpoint.
type S3 struct {
	api s3iface.S3API
}

// NewS3 creates an S3 store from the default credential chain. SDK-level retries
// are disabled so the caller's retry policy is the only one in effect.
func NewS3(cfg config.ObjectStoreConfig) (*S3, error) {
	awsCfg := &aws.Config{
		Region:     aws.String(cfg.Region),
		MaxRetries: aws.Int(0),
	}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
	}
	if cfg.PathStyle {
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, eris.Wrap(err, "objectstore: create s3 session")
	}
	return NewS3FromAPI(s3.New(sess)), nil
}

// NewS3FromAPI wraps an existing client.
func NewS3FromAPI(api s3iface.S3API) *S3 {
	return &S3{api: api}
}

// Get downloads s3://bucket/key into memory.
func (s *S3) Get(ctx context.Context, bucket, key string) ([]byte, error) {
	out, err := s.api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, eris.Wrapf(classifyS3(err), "objectstore: get s3://%s/%s", bucket, key)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		// A body cut short mid-stream is a network fault.
		return nil, eris.Wrapf(resilience.NewTransientError(err, 0), "objectstore: read s3://%s/%s", bucket, key)
	}
	return data, nil
}

// Put uploads body to s3://bucket/key.
func (s *S3) Put(ctx context.Context, bucket, key string, body []byte, contentType string) error {
	_, err := s.api.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return eris.Wrapf(classifyS3(err), "objectstore: put s3://%s/%s", bucket, key)
	}
	return nil
}

// credentialCodes are failures to obtain or refresh credentials, which clear up
// on their own, unlike an explicit denial.
var credentialCodes = map[string]bool{
	"NoCredentialProviders": true,
	"ExpiredToken":          true,
	"RequestExpired":        true,
	"EC2RoleRequestError":   true,
	"RequestError":          true, // network failure before a response
	"ResponseTimeout":       true,
}

func classifyS3(err error) error {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		if resilience.IsTransient(err) {
			return resilience.NewTransientError(err, 0)
		}
		return err
	}

	switch aerr.Code() {
	case s3.ErrCodeNoSuchKey, s3.ErrCodeNoSuchBucket, "NotFound":
		return eris.Wrap(ErrNotFound, aerr.Error())
	case request.CanceledErrorCode:
		return err
	}
	if credentialCodes[aerr.Code()] {
		return resilience.NewTransientError(err, 0)
	}

	status := 0
	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		status = reqErr.StatusCode()
		if resilience.IsTransientStatus(status) {
			return resilience.NewTransientError(err, status)
		}
	}
	if request.IsErrorRetryable(err) || request.IsErrorThrottle(err) {
		return resilience.NewTransientError(err, status)
	}
	return err
}
