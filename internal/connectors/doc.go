// Package connectors provides DocumentFetcher implementations for the
// locations a manifest may reference. Each connector knows how to read
// bytes from one kind of location:
//
//   - filesystem: local paths and file:// URIs
//   - web: http:// and https:// URLs
//   - s3: s3://bucket/key objects via an S3-compatible endpoint
//
// Router dispatches a location to the first connector that supports it.
package connectors
