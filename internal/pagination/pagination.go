// Package pagination derives previous/next windows for offset/limit
// listings. Everything here is pure; nothing touches a store or the
// network.
package pagination

import (
	"net/url"
	"strconv"
)

// Query parameter names used for paging links.
const (
	SkipParam = "skip"
	TakeParam = "take"
)

// Window is one offset/limit page.
type Window struct {
	Skip int
	Take int
}

// Links describes which neighbouring pages exist and where they are.
// Previous and Next are only meaningful when the matching Has flag is set.
type Links struct {
	HasPrevious bool
	HasNext     bool
	Previous    Window
	Next        Window
}

// Calculate computes neighbouring windows for the current (skip, take)
// against total results. A nil take means the listing is not paginated,
// so neither neighbour exists. A nil skip is treated as the first page.
//
// The previous window shrinks when skip is not a multiple of take so that
// it ends exactly where the current page starts.
func Calculate(skip, take *int, total int) Links {
	var l Links
	if take == nil {
		return l
	}
	t := *take
	s := 0
	if skip != nil {
		s = *skip
		l.HasPrevious = s > 0
	}
	l.HasNext = total-(s+t) > 0

	if l.HasPrevious {
		prevSkip := max(0, s-t)
		l.Previous = Window{Skip: prevSkip, Take: min(t, s-prevSkip)}
	}
	if l.HasNext {
		l.Next = Window{Skip: s + t, Take: t}
	}
	return l
}

// WithWindow returns a copy of u whose skip and take query parameters are
// replaced by w. Other parameters are preserved.
func WithWindow(u *url.URL, w Window) *url.URL {
	cp := *u
	q := cp.Query()
	q.Set(SkipParam, strconv.Itoa(w.Skip))
	q.Set(TakeParam, strconv.Itoa(w.Take))
	cp.RawQuery = q.Encode()
	return &cp
}

// CollectionURL returns u with its query and fragment removed. Create
// actions always target this address.
func CollectionURL(u *url.URL) *url.URL {
	cp := *u
	cp.RawQuery = ""
	cp.ForceQuery = false
	cp.Fragment = ""
	cp.RawFragment = ""
	return &cp
}
