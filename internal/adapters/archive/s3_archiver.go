// Package archive writes compressed snapshots of the resource state to
// S3-compatible object storage.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	"github.com/sony/gobreaker"

	"github.com/spaceko/resource-status-service/internal/config"
	"github.com/spaceko/resource-status-service/internal/core/domain"
	"github.com/spaceko/resource-status-service/internal/core/ports"
)

// zstd encoders and decoders are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("archive: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("archive: zstd decoder initialization failed: " + err.Error())
	}
}

type objectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Archiver stores each snapshot as a zstd-compressed JSON object.
type S3Archiver struct {
	client objectPutter
	bucket string
	prefix string
	cb     *gobreaker.CircuitBreaker
	now    func() time.Time
}

var _ ports.SnapshotArchiver = (*S3Archiver)(nil)

func NewS3Archiver(client objectPutter, bucket, prefix string) *S3Archiver {
	return &S3Archiver{
		client: client,
		bucket: bucket,
		prefix: prefix,
		cb:     config.NewCircuitBreaker(config.BreakerArchive),
		now:    time.Now,
	}
}

// NewS3Client builds a client for AWS or a MinIO-style endpoint. Static
// credentials are used when an access key is configured.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

func (a *S3Archiver) objectKey(version int64) string {
	d := a.now().UTC()
	name := fmt.Sprintf("v%d-%s.json.zst", version, uuid.NewString())
	return path.Join(a.prefix, fmt.Sprintf("%04d/%02d/%02d", d.Year(), d.Month(), d.Day()), name)
}

func (a *S3Archiver) Archive(ctx context.Context, state domain.AppState) (string, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}
	body := zstdEncoder.EncodeAll(raw, nil)
	key := a.objectKey(state.Version)

	_, err = a.cb.Execute(func() (interface{}, error) {
		return a.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:          aws.String(a.bucket),
			Key:             aws.String(key),
			Body:            bytes.NewReader(body),
			ContentType:     aws.String("application/json"),
			ContentEncoding: aws.String("zstd"),
			Metadata: map[string]string{
				"snapshot-version": strconv.FormatInt(state.Version, 10),
				"resource-count":   strconv.Itoa(len(state.Resources)),
			},
		})
	})
	if err != nil {
		return "", fmt.Errorf("put snapshot %s: %w", key, err)
	}
	return key, nil
}

// Decode reverses Archive's encoding.
func Decode(object []byte) (domain.AppState, error) {
	raw, err := zstdDecoder.DecodeAll(object, nil)
	if err != nil {
		return domain.AppState{}, fmt.Errorf("decompress snapshot: %w", err)
	}
	var state domain.AppState
	if err := json.Unmarshal(raw, &state); err != nil {
		return domain.AppState{}, fmt.Errorf("decode snapshot: %w", err)
	}
	return state, nil
}
