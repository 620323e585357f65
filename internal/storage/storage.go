// Package storage signs S3 URLs for the media and poster objects a playlist references.
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

const defaultRegion = "eu-central-1"

type Config struct {
	Endpoint       string
	PublicEndpoint string // signed URLs point here; defaults to Endpoint
	Bucket         string
	AccessKey      string
	SecretKey      string
	Region         string
}

// Storage presigns GET requests for feed media. Every viewer of a playlist asks for
// the same keys, so signed URLs are reused while more than half their lifetime remains.
type Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	now       func() time.Time

	mu    sync.Mutex
	cache map[cacheKey]signedURL
}

type cacheKey struct {
	key    string
	expiry time.Duration
}

type signedURL struct {
	url       string
	expiresAt time.Time
}

func New(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if cfg.Region == "" {
		cfg.Region = defaultRegion
	}
	publicEndpoint := cfg.PublicEndpoint
	if publicEndpoint == "" {
		publicEndpoint = cfg.Endpoint
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &Storage{
		client:    pathStyleClient(awsCfg, cfg.Endpoint),
		presigner: s3.NewPresignClient(pathStyleClient(awsCfg, publicEndpoint)),
		bucket:    cfg.Bucket,
		now:       time.Now,
		cache:     make(map[cacheKey]signedURL),
	}, nil
}

func pathStyleClient(awsCfg aws.Config, endpoint string) *s3.Client {
	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = true
	})
}

func (s *Storage) GenerateDownloadURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	if s == nil {
		return "", errors.New("storage not initialized")
	}

	ck := cacheKey{key: key, expiry: expiry}
	now := s.now()
	s.mu.Lock()
	if cached, ok := s.cache[ck]; ok && cached.expiresAt.Sub(now) > expiry/2 {
		s.mu.Unlock()
		return cached.url, nil
	}
	s.mu.Unlock()

	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(expiry))
	if err != nil {
		return "", fmt.Errorf("presign %s: %w", key, err)
	}

	s.mu.Lock()
	s.cache[ck] = signedURL{url: req.URL, expiresAt: now.Add(expiry)}
	s.evictExpiredLocked(now)
	s.mu.Unlock()
	return req.URL, nil
}

func (s *Storage) evictExpiredLocked(now time.Time) {
	for k, v := range s.cache {
		if !v.expiresAt.After(now) {
			delete(s.cache, k)
		}
	}
}

// SetCORS lets browsers on the given origins stream media straight from the bucket.
// Range requests have to be allowed for seeking.
func (s *Storage) SetCORS(ctx context.Context, allowedOrigins []string) error {
	_, err := s.client.PutBucketCors(ctx, &s3.PutBucketCorsInput{
		Bucket: aws.String(s.bucket),
		CORSConfiguration: &types.CORSConfiguration{
			CORSRules: []types.CORSRule{{
				AllowedOrigins: allowedOrigins,
				AllowedMethods: []string{"GET", "HEAD"},
				AllowedHeaders: []string{"Range"},
				ExposeHeaders:  []string{"Content-Length", "Content-Range", "Accept-Ranges"},
				MaxAgeSeconds:  aws.Int32(3600),
			}},
		},
	})
	if err != nil {
		return fmt.Errorf("set bucket CORS: %w", err)
	}
	return nil
}

// EnsureBucket creates the bucket when it does not exist. Any other failure to reach
// it is returned as is.
func (s *Storage) EnsureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("head bucket: %w", err)
	}

	_, err = s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)})
	var owned *types.BucketAlreadyOwnedByYou
	if err != nil && !errors.As(err, &owned) {
		return fmt.Errorf("create bucket: %w", err)
	}
	return nil
}
