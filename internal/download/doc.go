// Package download orchestrates the extraction library through metadata
// probing and fetch phases. It owns format selection, progress
// reporting, artifact resolution, size enforcement and the
// normalization of extraction failures into classified task errors.
package download
