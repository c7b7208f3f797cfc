// Package hypermedia renders guests as Siren entities
// (application/vnd.siren+json).
package hypermedia

// MediaType is the Siren content type.
const MediaType = "application/vnd.siren+json"

// Link relations used by the guest resources.
const (
	RelSelf     = "self"
	RelPrevious = "prev"
	RelNext     = "next"
	RelItem     = "item"
)

// Entity is a Siren entity.
type Entity struct {
	Class      []string       `json:"class,omitempty"`
	Title      string         `json:"title,omitempty"`
	Properties map[string]any `json:"properties,omitempty"`
	Entities   []SubEntity    `json:"entities,omitempty"`
	Links      []Link         `json:"links,omitempty"`
	Actions    []Action       `json:"actions,omitempty"`
}

// SubEntity is an embedded link sub-entity.
type SubEntity struct {
	Class []string `json:"class,omitempty"`
	Rel   []string `json:"rel"`
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Title string   `json:"title,omitempty"`
}

// Link is a navigational link.
type Link struct {
	Rel   []string `json:"rel"`
	Href  string   `json:"href"`
	Type  string   `json:"type,omitempty"`
	Title string   `json:"title,omitempty"`
}

// Action is a state transition the client may perform.
type Action struct {
	Name   string  `json:"name"`
	Title  string  `json:"title,omitempty"`
	Method string  `json:"method"`
	Href   string  `json:"href"`
	Type   string  `json:"type,omitempty"`
	Fields []Field `json:"fields,omitempty"`
}

// Field is one input of an Action.
type Field struct {
	Name  string `json:"name"`
	Title string `json:"title,omitempty"`
	Type  string `json:"type"`
}

// Link returns the first link with rel, if any.
func (e Entity) Link(rel string) (Link, bool) {
	for _, l := range e.Links {
		for _, r := range l.Rel {
			if r == rel {
				return l, true
			}
		}
	}
	return Link{}, false
}

// Action returns the action named name, if any.
func (e Entity) Action(name string) (Action, bool) {
	for _, a := range e.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return Action{}, false
}
