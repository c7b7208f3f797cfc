package hypermedia

import (
	"net/http"
	"net/url"
	"path"
	"strconv"

	"github.com/iliyamo/wedding-rsvp/internal/model"
	"github.com/iliyamo/wedding-rsvp/internal/pagination"
)

const jsonMediaType = "application/json"

var guestFields = []Field{
	{Name: "givenName", Title: "Given Name", Type: "text"},
	{Name: "surName", Title: "Surname", Type: "text"},
	{Name: "description", Title: "Description", Type: "text"},
	{Name: "inviteCode", Title: "Invite Code", Type: "text"},
	{Name: "dietaryRestrictions", Title: "Dietary Restrictions", Type: "text"},
	{Name: "reservation", Title: "Reservation", Type: "object"},
}

// GuestEntity renders one guest addressed by self.
func GuestEntity(g model.Guest, self *url.URL) Entity {
	href := self.String()
	props := map[string]any{
		"id":                  g.ID,
		"givenName":           g.GivenName,
		"surName":             g.Surname,
		"inviteCode":          g.InviteCode,
		"description":         g.Description,
		"dietaryRestrictions": g.DietaryRestrictions,
	}
	if g.Reservation != nil {
		props["reservation"] = g.Reservation
	}
	return Entity{
		Class:      []string{"guest"},
		Title:      "Wedding Guest",
		Properties: props,
		Links: []Link{
			{Rel: []string{RelSelf}, Href: href, Type: jsonMediaType, Title: "Self"},
		},
		Actions: []Action{
			{
				Name: "replace-guest", Title: "Replace Guest", Method: http.MethodPut,
				Href: href, Type: jsonMediaType, Fields: guestFields,
			},
			{
				Name: "delete-guest", Title: "Delete Guest", Method: http.MethodDelete,
				Href: href, Type: jsonMediaType,
			},
		},
	}
}

// GuestCollectionEntity renders one page of guests. requestURL is the
// address the page was requested at; skip and take are the paging inputs
// exactly as the client sent them and total is the unpaged result count.
//
// The self link is requestURL unmodified. Previous and next links replace
// skip and take on requestURL. The add-guest action and the item links are
// built from requestURL with its query removed.
func GuestCollectionEntity(guests []model.Guest, requestURL *url.URL, skip, take *int, total int) Entity {
	e := Entity{
		Class: []string{"guest", "collection"},
		Title: "Wedding Guests",
	}

	nav := pagination.Calculate(skip, take, total)
	if nav.HasPrevious {
		e.Links = append(e.Links, Link{
			Rel: []string{RelPrevious}, Title: "previous", Type: MediaType,
			Href: pagination.WithWindow(requestURL, nav.Previous).String(),
		})
	}
	if nav.HasNext {
		e.Links = append(e.Links, Link{
			Rel: []string{RelNext}, Title: "next", Type: MediaType,
			Href: pagination.WithWindow(requestURL, nav.Next).String(),
		})
	}
	e.Links = append(e.Links, Link{
		Rel: []string{RelSelf}, Title: "self", Type: MediaType, Href: requestURL.String(),
	})

	collection := pagination.CollectionURL(requestURL)
	e.Actions = []Action{{
		Name: "add-guest", Title: "Add Guest", Method: http.MethodPost,
		Href: collection.String(), Type: jsonMediaType, Fields: guestFields,
	}}

	for _, g := range guests {
		item := *collection
		item.Path = path.Join(collection.Path, strconv.FormatUint(g.ID, 10))
		item.RawPath = ""
		e.Entities = append(e.Entities, SubEntity{
			Class: []string{"guest"},
			Rel:   []string{RelItem},
			Href:  item.String(),
			Type:  MediaType,
			Title: "Wedding Guest",
		})
	}
	return e
}
