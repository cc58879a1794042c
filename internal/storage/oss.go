package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/vidra/vidra-api/internal/domain"
)

// uploadOSS lands the artifact on Alibaba OSS through the native SDK.
// Virtual-hosted OSS endpoints take this path because they reject the
// path-style requests the generic S3 client would issue.
func (d *Dispatcher) uploadOSS(_ context.Context, target UploadTarget, localPath, key string) (string, error) {
	access, secret := d.ossCredentials(target)
	if access == "" || secret == "" {
		return "", domain.NewTaskError(domain.CodeUploadError,
			"no OSS credentials available for bucket "+target.Bucket)
	}

	client, err := oss.New("https://"+target.Endpoint, access, secret)
	if err != nil {
		return "", fmt.Errorf("creating oss client: %w", err)
	}

	bucket, err := client.Bucket(target.Bucket)
	if err != nil {
		return "", fmt.Errorf("opening oss bucket %s: %w", target.Bucket, err)
	}

	if err := bucket.PutObjectFromFile(key, localPath); err != nil {
		var svcErr oss.ServiceError
		if errors.As(err, &svcErr) {
			return "", domain.NewTaskError("OSS_ERROR_"+svcErr.Code,
				"oss upload failed: "+svcErr.Message)
		}
		return "", domain.NewTaskError(domain.CodeUploadError, "oss upload failed: "+err.Error())
	}

	return fmt.Sprintf("https://%s.%s/%s", target.Bucket, target.Endpoint, key), nil
}

// ossCredentials resolves OSS credentials: inline URL credentials, then
// configured fallbacks, then the SDK's conventional environment
// variables.
func (d *Dispatcher) ossCredentials(target UploadTarget) (string, string) {
	if target.AccessKey != "" {
		return target.AccessKey, target.SecretKey
	}
	if d.cfg.OSSAccessKey != "" {
		return d.cfg.OSSAccessKey, d.cfg.OSSSecretKey
	}
	if d.cfg.AccessKeyID != "" {
		return d.cfg.AccessKeyID, d.cfg.SecretAccessKey
	}
	return os.Getenv("OSS_ACCESS_KEY_ID"), os.Getenv("OSS_ACCESS_KEY_SECRET")
}
