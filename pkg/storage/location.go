package storage

import (
	"fmt"
	"path"
	"strings"

	"github.com/jittakal/ntuplestore/internal/errors"
)

// Storage URI schemes.
const (
	SchemeFile  = "file"
	SchemeS3    = "s3"
	SchemeGCS   = "gs"
	SchemeWASBS = "wasbs"
	SchemeAzure = "az"
)

// Location identifies an object in a storage backend. For the file scheme
// Bucket is empty and Key is the filesystem path.
type Location struct {
	Scheme string
	Bucket string
	Key    string
}

// String renders the location back into URI form.
func (l Location) String() string {
	if l.Scheme == SchemeFile {
		return "file://" + l.Key
	}
	return fmt.Sprintf("%s://%s/%s", l.Scheme, l.Bucket, l.Key)
}

// Base returns the last element of the key.
func (l Location) Base() string {
	return path.Base(l.Key)
}

// IsLocal reports whether the location is on the local filesystem.
func (l Location) IsLocal() bool {
	return l.Scheme == SchemeFile
}

// ParseLocation splits a storage URI into its scheme, bucket and key.
// Strings without a scheme are treated as local paths. Azure URIs of the
// form wasbs://container@account.blob.core.windows.net/key use the
// container as the bucket.
func ParseLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, fmt.Errorf("empty storage location")
	}
	scheme, rest, found := strings.Cut(uri, "://")
	if !found {
		return Location{Scheme: SchemeFile, Key: uri}, nil
	}

	scheme = strings.ToLower(scheme)
	switch scheme {
	case SchemeFile:
		if rest == "" {
			return Location{}, fmt.Errorf("location %q has no path", uri)
		}
		return Location{Scheme: SchemeFile, Key: rest}, nil
	case SchemeS3, SchemeGCS, SchemeWASBS, SchemeAzure:
	default:
		return Location{}, fmt.Errorf("%w: %s", errors.ErrUnsupportedScheme, scheme)
	}

	bucket, key, _ := strings.Cut(rest, "/")
	if scheme == SchemeWASBS || scheme == SchemeAzure {
		if container, _, ok := strings.Cut(bucket, "@"); ok {
			bucket = container
		}
	}
	if bucket == "" {
		return Location{}, fmt.Errorf("location %q has no bucket", uri)
	}
	return Location{Scheme: scheme, Bucket: bucket, Key: key}, nil
}
