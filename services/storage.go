package services

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// getStorageConfig returns AWS config for the S3-compatible photo bucket
// (Cloudflare R2 or plain S3).
func getStorageConfig() (aws.Config, error) {
	accessKey := os.Getenv("STORAGE_ACCESS_KEY_ID")
	secretKey := os.Getenv("STORAGE_SECRET_ACCESS_KEY")

	if accessKey == "" || secretKey == "" {
		return aws.Config{}, fmt.Errorf("STORAGE_ACCESS_KEY_ID or STORAGE_SECRET_ACCESS_KEY not set")
	}

	region := os.Getenv("STORAGE_REGION")
	if region == "" {
		region = "auto"
	}

	cfg, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, secretKey, ""),
		),
	)
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load storage config: %w", err)
	}

	return cfg, nil
}

func getStorageClient() (*s3.Client, error) {
	cfg, err := getStorageConfig()
	if err != nil {
		return nil, err
	}

	endpoint := os.Getenv("STORAGE_ENDPOINT")
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	})
	return client, nil
}

func getStorageBucket() (string, error) {
	bucket := os.Getenv("STORAGE_BUCKET")
	if bucket == "" {
		return "", fmt.Errorf("STORAGE_BUCKET not set")
	}
	return bucket, nil
}

// UploadPhoto stores a before/after photo and returns nothing; pair with
// PresignPhotoURL to hand the reference back to clients.
func UploadPhoto(objectName string, file io.Reader) error {
	bucket, err := getStorageBucket()
	if err != nil {
		return err
	}

	client, err := getStorageClient()
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(path.Ext(objectName))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(objectName),
		Body:        file,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("photo upload failed: %w", err)
	}
	return nil
}

// PresignPhotoURL returns a presigned GET URL for a stored photo.
func PresignPhotoURL(objectName string, expiry time.Duration) (string, error) {
	bucket, err := getStorageBucket()
	if err != nil {
		return "", err
	}

	client, err := getStorageClient()
	if err != nil {
		return "", err
	}

	presigner := s3.NewPresignClient(client)
	presigned, err := presigner.PresignGetObject(context.TODO(),
		&s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    aws.String(objectName),
		},
		func(po *s3.PresignOptions) {
			po.Expires = expiry
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to presign photo URL: %w", err)
	}
	return presigned.URL, nil
}

// UploadPhotoAndPresign uploads a photo and returns a presigned URL for it.
func UploadPhotoAndPresign(objectName string, file io.Reader, expiry time.Duration) (string, error) {
	if err := UploadPhoto(objectName, file); err != nil {
		return "", err
	}
	return PresignPhotoURL(objectName, expiry)
}
