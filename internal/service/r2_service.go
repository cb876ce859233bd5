package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	cfg "github.com/maheshrc27/crosspost/configs"
)

const uploadURLExpiry = time.Hour

type UploadTicket struct {
	UploadURL string
	PublicURL string
	ExpiresAt time.Time
}

// ObjectStorage issues time-limited upload URLs. Uploads go straight from
// the client to the bucket.
type ObjectStorage interface {
	IssueUploadURL(ctx context.Context, key, contentType string) (*UploadTicket, error)
}

type R2Service struct {
	config  cfg.R2
	presign *s3.PresignClient
}

func NewR2Service(ctx context.Context, r2 cfg.R2) (*R2Service, error) {
	if !r2.Configured() {
		return nil, fmt.Errorf("r2: %w", ErrNotConfigured)
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(r2.AccessKey, r2.SecretKey, "")),
		config.WithRegion("auto"),
	)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	endpoint := r2.Endpoint
	if endpoint == "" {
		endpoint = fmt.Sprintf("https://%s.r2.cloudflarestorage.com", r2.AccountID)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(endpoint)
		o.UsePathStyle = r2.Endpoint != ""
	})

	r2.Endpoint = endpoint
	return &R2Service{config: r2, presign: s3.NewPresignClient(client)}, nil
}

func (r *R2Service) IssueUploadURL(ctx context.Context, key, contentType string) (*UploadTicket, error) {
	req, err := r.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(r.config.BucketName),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(uploadURLExpiry))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &UploadTicket{
		UploadURL: req.URL,
		PublicURL: r.publicURL(key),
		ExpiresAt: time.Now().Add(uploadURLExpiry),
	}, nil
}

func (r *R2Service) publicURL(key string) string {
	if r.config.PublicURL != "" {
		return strings.TrimRight(r.config.PublicURL, "/") + "/" + key
	}
	return strings.TrimRight(r.config.Endpoint, "/") + "/" + r.config.BucketName + "/" + key
}
