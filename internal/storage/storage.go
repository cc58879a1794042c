// Package storage dispatches finished artifacts to their destination
// backend. The backend set is closed: local filesystem, AWS S3, Google
// Cloud Storage, and generic S3-compatible endpoints, with a native-SDK
// fast path for Alibaba OSS virtual-hosted URLs that the generic S3
// client cannot always reach.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/vidra/vidra-api/internal/config"
	"github.com/vidra/vidra-api/internal/domain"
)

// UploadTarget holds the parsed connection parameters for one upload
// attempt. Derived deterministically from the destination URL; never
// persisted.
type UploadTarget struct {
	Endpoint  string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	Region    string
}

// uploadFunc performs one backend upload and returns the durable URL.
type uploadFunc func(ctx context.Context, target UploadTarget, localPath, key string) (string, error)

// Dispatcher selects a backend for an artifact, performs the upload and
// decides whether the local file is deleted afterwards.
type Dispatcher struct {
	cfg    config.StorageConfig
	logger *slog.Logger

	// One handler per non-local backend. A nil handler means the
	// backend's SDK support is not wired into this build.
	s3Upload  uploadFunc
	gcsUpload uploadFunc
	ossUpload uploadFunc
}

// NewDispatcher creates a Dispatcher with all backend SDKs wired in.
func NewDispatcher(cfg config.StorageConfig, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		cfg:    cfg,
		logger: logger,
	}
	d.s3Upload = d.uploadS3
	d.gcsUpload = d.uploadGCS
	d.ossUpload = d.uploadOSS
	return d
}

// Upload lands localPath at the destination described by storageType
// and storageURL, returning the durable URL of the artifact.
//
// On success with deleteLocal set, the local file is removed; a removal
// failure is logged but the upload stands. On failure the local file is
// always retained.
func (d *Dispatcher) Upload(
	ctx context.Context,
	localPath string,
	storageType domain.StorageType,
	storageURL string,
	deleteLocal bool,
) (string, error) {
	if _, err := os.Stat(localPath); err != nil {
		return "", domain.NewTaskError(domain.CodeFileNotFound,
			"local file not found: "+localPath)
	}

	if storageType == domain.StorageTypeLocal {
		// Plain local reference; the source file is never deleted.
		return "file://" + localPath, nil
	}

	if storageURL == "" {
		return "", domain.NewTaskError(domain.CodeMissingStorageURL,
			"storage_url is required for cloud storage")
	}

	remoteURL, err := d.dispatch(ctx, localPath, storageType, storageURL)
	if err != nil {
		return "", err
	}

	if deleteLocal {
		if rmErr := os.Remove(localPath); rmErr != nil {
			// The remote URL is authoritative; losing the local copy
			// cleanup is not.
			d.logger.Warn("failed to delete local file after upload",
				"path", localPath,
				"error", rmErr)
		} else {
			d.logger.Info("deleted local file after upload", "path", localPath)
		}
	}

	return remoteURL, nil
}

// dispatch routes to the backend handler. The switch is exhaustive over
// the closed storage type set.
func (d *Dispatcher) dispatch(
	ctx context.Context,
	localPath string,
	storageType domain.StorageType,
	storageURL string,
) (string, error) {
	switch storageType {
	case domain.StorageTypeS3:
		target, err := parseBucketURL(storageURL, "s3")
		if err != nil {
			return "", err
		}
		return d.run(ctx, d.s3Upload, "s3", target, localPath)

	case domain.StorageTypeGCS:
		target, err := parseBucketURL(storageURL, "gs")
		if err != nil {
			return "", err
		}
		return d.run(ctx, d.gcsUpload, "gcs", target, localPath)

	case domain.StorageTypeS3Compatible:
		if isOSSVirtualHostedURL(storageURL) {
			target, err := parseOSSURL(storageURL)
			if err != nil {
				return "", err
			}
			return d.run(ctx, d.ossUpload, "oss", target, localPath)
		}
		target, err := parseEndpointURL(storageURL)
		if err != nil {
			return "", err
		}
		return d.run(ctx, d.s3Upload, "s3_compatible", target, localPath)

	default:
		return "", domain.NewTaskError(domain.CodeInvalidStorageURL,
			fmt.Sprintf("unknown storage type: %s", storageType))
	}
}

// run executes one backend handler, translating an unwired handler into
// the distinct missing-dependency error so operators can tell a build
// problem from a transient upload failure.
func (d *Dispatcher) run(
	ctx context.Context,
	fn uploadFunc,
	backend string,
	target UploadTarget,
	localPath string,
) (string, error) {
	if fn == nil {
		return "", domain.NewTaskError(domain.CodeMissingDependency,
			backend+" support is not available in this build")
	}

	key := objectKey(target.Prefix, localPath)
	d.logger.Info("uploading artifact",
		"backend", backend,
		"bucket", target.Bucket,
		"key", key)

	url, err := fn(ctx, target, localPath, key)
	if err != nil {
		var taskErr *domain.TaskError
		if errors.As(err, &taskErr) {
			return "", taskErr
		}
		return "", domain.NewTaskError(domain.CodeUploadError, err.Error())
	}
	return url, nil
}
