package storage

import (
	"net/url"
	"path/filepath"
	"strings"

	"github.com/vidra/vidra-api/internal/domain"
)

// parseBucketURL parses the bucket-style grammar shared by S3 and GCS
// destinations: <scheme>://bucket[/prefix].
func parseBucketURL(raw, scheme string) (UploadTarget, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != scheme || u.Host == "" {
		return UploadTarget{}, domain.NewTaskError(domain.CodeInvalidStorageURL,
			"invalid storage URL, expected "+scheme+"://bucket/prefix: "+raw)
	}
	return UploadTarget{
		Bucket: u.Host,
		Prefix: strings.Trim(u.Path, "/"),
	}, nil
}

// parseEndpointURL parses the S3-compatible grammar
// https://[key:secret@]endpoint/bucket[/prefix]. Credentials embedded
// in the URL take priority over every other credential source.
func parseEndpointURL(raw string) (UploadTarget, error) {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return UploadTarget{}, domain.NewTaskError(domain.CodeInvalidStorageURL,
			"invalid s3_compatible URL, expected https://endpoint/bucket/prefix: "+raw)
	}

	parts := strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)
	if parts[0] == "" {
		return UploadTarget{}, domain.NewTaskError(domain.CodeInvalidStorageURL,
			"s3_compatible URL is missing a bucket: "+raw)
	}

	target := UploadTarget{
		Endpoint: u.Scheme + "://" + u.Host,
		Bucket:   parts[0],
	}
	if len(parts) == 2 {
		target.Prefix = parts[1]
	}
	if u.User != nil {
		target.AccessKey = u.User.Username()
		target.SecretKey, _ = u.User.Password()
	}
	return target, nil
}

// isOSSVirtualHostedURL reports whether an s3_compatible destination is
// an Alibaba OSS virtual-hosted URL (bucket.oss-region.aliyuncs.com).
// Those endpoints reject path-style generic S3 requests, so they are
// routed to the native OSS client instead.
func isOSSVirtualHostedURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := u.Hostname()
	return strings.HasSuffix(host, ".aliyuncs.com") && strings.Contains(host, ".oss-")
}

// parseOSSURL splits a virtual-hosted OSS URL into bucket and regional
// endpoint: https://bucket.oss-cn-hangzhou.aliyuncs.com/prefix yields
// bucket "bucket" and endpoint "oss-cn-hangzhou.aliyuncs.com".
func parseOSSURL(raw string) (UploadTarget, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return UploadTarget{}, domain.NewTaskError(domain.CodeInvalidStorageURL,
			"invalid OSS URL: "+raw)
	}

	host := u.Hostname()
	bucket, endpoint, found := strings.Cut(host, ".")
	if !found || bucket == "" || !strings.HasPrefix(endpoint, "oss-") {
		return UploadTarget{}, domain.NewTaskError(domain.CodeInvalidStorageURL,
			"OSS URL is not virtual-hosted: "+raw)
	}

	target := UploadTarget{
		Endpoint: endpoint,
		Bucket:   bucket,
		Prefix:   strings.Trim(u.Path, "/"),
	}
	if u.User != nil {
		target.AccessKey = u.User.Username()
		target.SecretKey, _ = u.User.Password()
	}
	return target, nil
}

// objectKey joins the destination prefix with the artifact's base name.
// Keys never start with a slash; object stores treat a leading slash as
// an empty first path segment.
func objectKey(prefix, localPath string) string {
	name := filepath.Base(localPath)
	if prefix == "" {
		return name
	}
	return strings.TrimPrefix(prefix+"/"+name, "/")
}
