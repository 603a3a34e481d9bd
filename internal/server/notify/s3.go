package notify

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

const activationSubject = "Activate your account"

// ObjectPutter is the subset of *s3.Client the outbox needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Options describes an S3-compatible endpoint (AWS or MinIO).
type S3Options struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
}

var loadDefaultAWSConfig = config.LoadDefaultConfig

// NewS3Client builds an S3 client with static credentials. A non-empty
// BaseEndpoint switches to path-style addressing.
func NewS3Client(ctx context.Context, o S3Options) (*s3.Client, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(o.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(o.AccessKey, o.SecretKey, "")))
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(opts *s3.Options) {
		if o.BaseEndpoint != "" {
			opts.BaseEndpoint = aws.String(o.BaseEndpoint)
			opts.UsePathStyle = true
		}
	}), nil
}

// S3Notifier drops activation messages into an outbox bucket. A mail relay
// picks them up from there.
type S3Notifier struct {
	client ObjectPutter
	bucket string
	now    func() time.Time
}

func NewS3Notifier(client ObjectPutter, bucket string) *S3Notifier {
	return &S3Notifier{client: client, bucket: bucket, now: time.Now}
}

// OutboxKey returns activation/<yyyy>/<mm>/<dd>/<uuid>.eml for t.
func OutboxKey(t time.Time) string {
	t = t.UTC()
	return fmt.Sprintf("activation/%04d/%02d/%02d/%s.eml", t.Year(), int(t.Month()), t.Day(), uuid.NewString())
}

func activationMessage(email, activationURL string, t time.Time) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "To: %s\r\n", email)
	fmt.Fprintf(&b, "Subject: %s\r\n", activationSubject)
	fmt.Fprintf(&b, "Date: %s\r\n", t.UTC().Format(time.RFC1123Z))
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString("To activate your account follow the link:\r\n")
	b.WriteString(activationURL)
	b.WriteString("\r\n")
	return b.Bytes()
}

func (n *S3Notifier) SendActivation(ctx context.Context, email, activationURL string) error {
	now := n.now()
	body := activationMessage(email, activationURL, now)

	_, err := n.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(n.bucket),
		Key:           aws.String(OutboxKey(now)),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String("message/rfc822"),
		ContentLength: aws.Int64(int64(len(body))),
	})
	if err != nil {
		return fmt.Errorf("put activation message: %w", err)
	}
	return nil
}
