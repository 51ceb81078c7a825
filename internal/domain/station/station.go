// ABOUTME: Station catalogue mapping symbolic stream IDs to endpoint URIs
// ABOUTME: Built once at startup from config and never mutated afterwards
package station

import (
	"fmt"
	"net/url"
)

// Endpoint is one named live stream.
type Endpoint struct {
	ID   string
	Name string
	URL  string
}

// Catalogue is the fixed, ordered set of endpoints a player may tune to.
type Catalogue struct {
	endpoints []Endpoint
	byID      map[string]Endpoint
	defaultID string
}

// NewCatalogue validates endpoints and returns a catalogue. An empty defaultID
// selects the first endpoint.
func NewCatalogue(endpoints []Endpoint, defaultID string) (*Catalogue, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("catalogue: no endpoints")
	}

	c := &Catalogue{
		endpoints: make([]Endpoint, 0, len(endpoints)),
		byID:      make(map[string]Endpoint, len(endpoints)),
	}

	for _, ep := range endpoints {
		if ep.ID == "" {
			return nil, fmt.Errorf("catalogue: endpoint with empty id")
		}
		if _, dup := c.byID[ep.ID]; dup {
			return nil, fmt.Errorf("catalogue: duplicate id %q", ep.ID)
		}
		u, err := url.Parse(ep.URL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("catalogue: endpoint %q: invalid url %q", ep.ID, ep.URL)
		}
		c.endpoints = append(c.endpoints, ep)
		c.byID[ep.ID] = ep
	}

	if defaultID == "" {
		defaultID = endpoints[0].ID
	}
	if _, ok := c.byID[defaultID]; !ok {
		return nil, fmt.Errorf("catalogue: default stream %q not defined", defaultID)
	}
	c.defaultID = defaultID

	return c, nil
}

func (c *Catalogue) Get(id string) (Endpoint, bool) {
	ep, ok := c.byID[id]
	return ep, ok
}

func (c *Catalogue) DefaultID() string {
	return c.defaultID
}

// List returns the endpoints in configuration order.
func (c *Catalogue) List() []Endpoint {
	out := make([]Endpoint, len(c.endpoints))
	copy(out, c.endpoints)
	return out
}
