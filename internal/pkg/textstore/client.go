package textstore

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gofiber/fiber/v2/log"
)

// Client stores and retrieves job texts in S3-compatible object storage.
// Keys are returned to callers as opaque references persisted on job rows.
type Client struct {
	s3Client *s3.Client
	config   *Config
}

// NewClient creates a text storage client.
func NewClient(cfg *Config) (*Client, error) {
	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	s3Client := s3.NewFromConfig(awsConfig, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			// Path-style URLs for S3-compatible services
			o.UsePathStyle = true
			o.UseAccelerate = false
		}
	})

	log.Infof("[TextStore] initialized S3 client for bucket: %s", cfg.BucketName)
	return &Client{s3Client: s3Client, config: cfg}, nil
}

// NewClientFromEnv builds the client from S3_* environment variables.
func NewClientFromEnv() (*Client, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return NewClient(cfg)
}

var (
	defaultClient *Client
	defaultErr    error
	defaultOnce   sync.Once
)

// GetClient returns the shared client, initialized from the environment on
// first use.
func GetClient() (*Client, error) {
	defaultOnce.Do(func() {
		defaultClient, defaultErr = NewClientFromEnv()
	})
	return defaultClient, defaultErr
}

// PutText uploads text under the given key and returns the stored reference.
func (c *Client) PutText(ctx context.Context, key, text string) (string, error) {
	_, err := c.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.config.BucketName),
		Key:         aws.String(key),
		Body:        strings.NewReader(text),
		ContentType: aws.String("text/plain; charset=utf-8"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", key, err)
	}

	log.Debugf("[TextStore] stored %d bytes at %s", len(text), key)
	return key, nil
}

// GetText downloads the text stored under the given reference.
func (c *Client) GetText(ctx context.Context, ref string) (string, error) {
	out, err := c.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.config.BucketName),
		Key:    aws.String(ref),
	})
	if err != nil {
		return "", fmt.Errorf("failed to download %s: %w", ref, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", ref, err)
	}
	return string(data), nil
}
