package metadata

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// EntityTag is an opaque validator for one representation of a resource.
type EntityTag struct {
	Value string
	Weak  bool
}

// IsZero reports whether the tag carries no value.
func (t EntityTag) IsZero() bool { return t.Value == "" }

// String renders the tag in header form: "v" or W/"v".
func (t EntityTag) String() string {
	if t.IsZero() {
		return ""
	}
	if t.Weak {
		return `W/"` + t.Value + `"`
	}
	return `"` + t.Value + `"`
}

// WeakMatch compares opaque values and ignores weakness, which is the
// comparison If-None-Match uses.
func (t EntityTag) WeakMatch(other EntityTag) bool {
	return !t.IsZero() && t.Value == other.Value
}

// StrongMatch requires both tags to be strong and equal, which is the
// comparison If-Match uses.
func (t EntityTag) StrongMatch(other EntityTag) bool {
	return !t.Weak && !other.Weak && t.WeakMatch(other)
}

// ComputeEntityTag derives a strong tag from the JSON encoding of v.
func ComputeEntityTag(v any) (EntityTag, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return EntityTag{}, fmt.Errorf("encode entity: %w", err)
	}
	sum := sha1.Sum(body)
	return EntityTag{Value: hex.EncodeToString(sum[:])}, nil
}

// ParseEntityTags parses an If-Match / If-None-Match header value. The
// second result is true when the header is the wildcard "*". Malformed
// members are skipped.
func ParseEntityTags(header string) ([]EntityTag, bool) {
	header = strings.TrimSpace(header)
	if header == "" {
		return nil, false
	}
	if header == "*" {
		return nil, true
	}
	var tags []EntityTag
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		weak := false
		if strings.HasPrefix(part, "W/") {
			weak = true
			part = part[2:]
		}
		if len(part) < 2 || part[0] != '"' || part[len(part)-1] != '"' {
			continue
		}
		tags = append(tags, EntityTag{Value: part[1 : len(part)-1], Weak: weak})
	}
	return tags, false
}

// MatchesAny reports whether tag weakly matches one of the tags in an
// If-None-Match header.
func MatchesAny(header string, tag EntityTag) bool {
	tags, wildcard := ParseEntityTags(header)
	if wildcard {
		return !tag.IsZero()
	}
	for _, t := range tags {
		if t.WeakMatch(tag) {
			return true
		}
	}
	return false
}
