// Package metadata keeps per-resource freshness information (last
// modification instant and entity tag) used to answer conditional
// requests. It is a derived cache: a miss never means the resource is
// gone, only that its metadata has to be computed again.
package metadata

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidMetadata is returned when a ResourceMetadata is built from an
// empty address, a zero instant or an empty entity tag.
var ErrInvalidMetadata = errors.New("invalid resource metadata")

// ResourceMetadata describes the current version of one resource.
//
// The type is immutable: all fields are unexported and time.Time is a
// value, so neither the instant passed to NewResourceMetadata nor the one
// returned by LastModified aliases the stored value. The instant is kept
// in UTC at whole-second precision, the resolution of HTTP dates.
type ResourceMetadata struct {
	address      string
	lastModified time.Time
	entityTag    EntityTag
}

// NewResourceMetadata validates its inputs and returns the metadata for
// the resource at address.
func NewResourceMetadata(address string, lastModified time.Time, tag EntityTag) (ResourceMetadata, error) {
	switch {
	case address == "":
		return ResourceMetadata{}, fmt.Errorf("%w: address is required", ErrInvalidMetadata)
	case lastModified.IsZero():
		return ResourceMetadata{}, fmt.Errorf("%w: last modified is required", ErrInvalidMetadata)
	case tag.IsZero():
		return ResourceMetadata{}, fmt.Errorf("%w: entity tag is required", ErrInvalidMetadata)
	}
	return ResourceMetadata{
		address:      address,
		lastModified: lastModified.UTC().Truncate(time.Second),
		entityTag:    tag,
	}, nil
}

// Address is the cache key, the resource's path.
func (m ResourceMetadata) Address() string { return m.address }

// LastModified returns the instant the resource last changed, in UTC.
func (m ResourceMetadata) LastModified() time.Time { return m.lastModified }

// EntityTag returns the resource's current entity tag.
func (m ResourceMetadata) EntityTag() EntityTag { return m.entityTag }

// IsZero reports whether m is the zero value.
func (m ResourceMetadata) IsZero() bool {
	return m.address == "" && m.lastModified.IsZero() && m.entityTag.IsZero()
}

// Equal compares all three fields. Zero instants and zero tags compare
// equal to each other.
func (m ResourceMetadata) Equal(other ResourceMetadata) bool {
	return m.address == other.address &&
		m.lastModified.Equal(other.lastModified) &&
		m.entityTag == other.entityTag
}

func (m ResourceMetadata) String() string {
	return fmt.Sprintf("ResourceMetadata{address=%s lastModified=%s entityTag=%s}",
		m.address, m.lastModified.Format(time.RFC3339), m.entityTag)
}
