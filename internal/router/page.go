// Package router selects which screen is mounted.
package router

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Page int

const (
	PageFeed Page = iota
	PageCreate
	PageUpdate
	PageProfile
	PageAdmin
	PageAuth
	PageEventDetail
	PagePasswordReset
)

var pageNames = map[Page]string{
	PageFeed:          "feed",
	PageCreate:        "create",
	PageUpdate:        "update",
	PageProfile:       "profile",
	PageAdmin:         "admin",
	PageAuth:          "auth",
	PageEventDetail:   "event",
	PagePasswordReset: "reset",
}

// aliases accepted when parsing page names
var pageAliases = map[string]Page{
	"event-detail":   PageEventDetail,
	"password-reset": PagePasswordReset,
}

func (p Page) String() string {
	if name, ok := pageNames[p]; ok {
		return name
	}
	return fmt.Sprintf("page(%d)", int(p))
}

// NeedsSelection reports pages that only make sense with a selected entity.
func (p Page) NeedsSelection() bool {
	return p == PageEventDetail || p == PageUpdate
}

// ParsePage maps a page name to its Page.
func ParsePage(name string) (Page, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for p, n := range pageNames {
		if n == name {
			return p, nil
		}
	}
	if p, ok := pageAliases[name]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownPage, name)
}

func (p Page) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.String())
}

func (p *Page) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	parsed, err := ParsePage(name)
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
