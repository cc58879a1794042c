package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/vidra/vidra-api/internal/domain"
)

// uploadS3 lands the artifact on AWS S3 or a generic S3-compatible
// endpoint. A populated target.Endpoint selects path-style addressing
// against that endpoint; an empty one selects AWS proper with region
// discovery when no region is configured.
func (d *Dispatcher) uploadS3(ctx context.Context, target UploadTarget, localPath, key string) (string, error) {
	region := d.cfg.S3Region
	if region == "" {
		region = "us-east-1"
	}

	loadOpts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if access, secret := d.s3Credentials(target); access != "" {
		loadOpts = append(loadOpts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(access, secret, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return "", fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if target.Endpoint != "" {
			o.BaseEndpoint = aws.String(target.Endpoint)
			o.UsePathStyle = true
		}
	})

	// For AWS proper, the bucket's real region wins over the default;
	// uploading through the wrong regional endpoint fails outright.
	if target.Endpoint == "" && d.cfg.S3Region == "" {
		if detected, derr := bucketRegion(ctx, client, target.Bucket); derr == nil && detected != region {
			region = detected
			awsCfg.Region = detected
			client = s3.NewFromConfig(awsCfg)
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", localPath, err)
	}
	defer func() { _ = f.Close() }()

	uploader := manager.NewUploader(client)
	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(target.Bucket),
		Key:    aws.String(key),
		Body:   f,
	})
	if err != nil {
		return "", classifyS3Error(err)
	}

	if target.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", target.Endpoint, target.Bucket, key), nil
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", target.Bucket, region, key), nil
}

// bucketRegion resolves a bucket's home region. An empty location
// constraint is how S3 spells us-east-1.
func bucketRegion(ctx context.Context, client *s3.Client, bucket string) (string, error) {
	out, err := client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(bucket),
	})
	if err != nil {
		return "", err
	}
	if out.LocationConstraint == "" {
		return "us-east-1", nil
	}
	return string(out.LocationConstraint), nil
}

// classifyS3Error surfaces the S3 service error code as a qualified
// error code so a callback consumer can tell an access denial from a
// missing bucket.
func classifyS3Error(err error) *domain.TaskError {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return domain.NewTaskError("S3_ERROR_"+apiErr.ErrorCode(),
			"s3 upload failed: "+apiErr.ErrorMessage())
	}
	return domain.NewTaskError(domain.CodeUploadError, "s3 upload failed: "+err.Error())
}

// s3Credentials resolves static credentials in priority order: inline
// URL credentials, then configured fallbacks. Empty results defer to
// the SDK's ambient chain (env vars, shared config, instance role).
func (d *Dispatcher) s3Credentials(target UploadTarget) (string, string) {
	if target.AccessKey != "" {
		return target.AccessKey, target.SecretKey
	}
	if d.cfg.S3AccessKey != "" {
		return d.cfg.S3AccessKey, d.cfg.S3SecretKey
	}
	if d.cfg.AccessKeyID != "" {
		return d.cfg.AccessKeyID, d.cfg.SecretAccessKey
	}
	return "", ""
}
