package model

import "errors"

// ErrInvalidQuery is returned when a search query carries a negative
// offset or limit.
var ErrInvalidQuery = errors.New("invalid guest search query")

// GuestSearchQuery filters the guest collection. Every field is optional:
// name and invite-code fields are equality predicates, Skip and Take are
// the offset and limit. The query is a value; NewGuestSearchQuery copies
// every pointer it is given so later changes by the caller are not seen.
type GuestSearchQuery struct {
    GivenName  *string
    Surname    *string
    InviteCode *string
    Skip       *int
    Take       *int
}

// NewGuestSearchQuery builds a query from optional inputs. When all five
// inputs are absent it returns nil, which callers treat the same as "no
// filter". Negative skip or take values are rejected.
func NewGuestSearchQuery(givenName, surname, inviteCode *string, skip, take *int) (*GuestSearchQuery, error) {
    if skip != nil && *skip < 0 {
        return nil, errors.Join(ErrInvalidQuery, errors.New("skip must be >= 0"))
    }
    if take != nil && *take < 0 {
        return nil, errors.Join(ErrInvalidQuery, errors.New("take must be >= 0"))
    }
    q := &GuestSearchQuery{
        GivenName:  copyPtr(givenName),
        Surname:    copyPtr(surname),
        InviteCode: copyPtr(inviteCode),
        Skip:       copyPtr(skip),
        Take:       copyPtr(take),
    }
    if q.IsEmpty() {
        return nil, nil
    }
    return q, nil
}

// IsEmpty reports whether no field is set. A nil query is empty.
func (q *GuestSearchQuery) IsEmpty() bool {
    return q == nil ||
        (q.GivenName == nil && q.Surname == nil && q.InviteCode == nil && q.Skip == nil && q.Take == nil)
}

// WithoutPaging returns the same filter with skip and take cleared. It is
// used to count the full result set behind a page. A query that only
// paged yields nil.
func (q *GuestSearchQuery) WithoutPaging() *GuestSearchQuery {
    if q == nil {
        return nil
    }
    unpaged := &GuestSearchQuery{
        GivenName:  copyPtr(q.GivenName),
        Surname:    copyPtr(q.Surname),
        InviteCode: copyPtr(q.InviteCode),
    }
    if unpaged.IsEmpty() {
        return nil
    }
    return unpaged
}

func copyPtr[T any](p *T) *T {
    if p == nil {
        return nil
    }
    v := *p
    return &v
}
