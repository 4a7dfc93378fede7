package object

import (
	"fmt"
	"net/url"
)

// Location identifies a bucket and key prefix, parsed from a URL such as
// "s3://cache-bucket/tiered" or "gs://cache-bucket".
type Location struct {
	Scheme string
	Bucket string
	Prefix string
}

// ParseLocation parses an s3:// or gs:// URL.
func ParseLocation(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parsing object url: %w", err)
	}
	switch u.Scheme {
	case "s3", "gs":
	default:
		return Location{}, fmt.Errorf("object url %q: unsupported scheme %q", raw, u.Scheme)
	}
	if u.Host == "" {
		return Location{}, fmt.Errorf("object url %q: missing bucket", raw)
	}
	return Location{
		Scheme: u.Scheme,
		Bucket: u.Host,
		Prefix: NormalizePrefix(u.Path),
	}, nil
}

// String returns the location in URL form.
func (l Location) String() string {
	return l.Scheme + "://" + l.Bucket + "/" + l.Prefix
}
