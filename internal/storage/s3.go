package storage

import (
	"bytes"
	"context"
	"errors"
	"time"

	"github.com/Dhoini/channel-access-bot/internal/domain"
	"github.com/Dhoini/channel-access-bot/internal/metrics"
	"github.com/Dhoini/channel-access-bot/pkg/logger"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

const (
	serviceName   = "s3"
	maxPresignTTL = 7 * 24 * time.Hour
)

// S3Config параметры бакета
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UsePathStyle    bool
	PresignTTL      time.Duration
	Timeout         time.Duration
}

// S3Store ProofStore поверх S3 / R2 / MinIO
type S3Store struct {
	client    *s3.Client
	presigner *s3.PresignClient
	cfg       S3Config
	metrics   metrics.BotMetrics
	log       *logger.Logger
}

var _ ProofStore = (*S3Store)(nil)

// NewS3Store создает клиента; без ключей используется стандартная цепочка AWS
func NewS3Store(ctx context.Context, cfg S3Config, m metrics.BotMetrics, log *logger.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is not configured")
	}
	if cfg.PresignTTL <= 0 || cfg.PresignTTL > maxPresignTTL {
		cfg.PresignTTL = maxPresignTTL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	log.Infow("Proof storage initialized", "bucket", cfg.Bucket, "endpoint", cfg.Endpoint)
	return &S3Store{
		client:    client,
		presigner: s3.NewPresignClient(client),
		cfg:       cfg,
		metrics:   m,
		log:       log,
	}, nil
}

func (s *S3Store) Put(ctx context.Context, key string, data []byte, contentType string) (err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveExternalCall(serviceName, "PutObject", started, err) }()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return domain.NewExternalDependencyError(serviceName, "PutObject", err)
	}
	return nil
}

func (s *S3Store) PresignGet(ctx context.Context, key string) (link string, err error) {
	started := time.Now()
	defer func() { s.metrics.ObserveExternalCall(serviceName, "PresignGetObject", started, err) }()

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.PresignTTL))
	if err != nil {
		return "", domain.NewExternalDependencyError(serviceName, "PresignGetObject", err)
	}
	return req.URL, nil
}
