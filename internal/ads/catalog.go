package ads

import (
	"errors"

	"github.com/gosimple/slug"
)

// ErrAdNotFound is returned when a referenced ad id is not in the catalog
var ErrAdNotFound = errors.New("ad not found")

// Ad represents one sponsored link users can view for a reward
type Ad struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Catalog holds the configured ad set. The set is fixed at startup; lookups
// are read-only so the catalog is safe for concurrent use.
type Catalog struct {
	ads      []Ad
	byID     map[string]Ad
	perCycle int
}

// NewCatalog creates a catalog from the configured ads. Ads without an
// explicit id get one derived from their title.
func NewCatalog(ads []Ad, perCycle int) *Catalog {
	c := &Catalog{
		ads:      make([]Ad, 0, len(ads)),
		byID:     make(map[string]Ad, len(ads)),
		perCycle: perCycle,
	}
	for _, ad := range ads {
		if ad.ID == "" {
			ad.ID = slug.Make(ad.Title)
		}
		if _, exists := c.byID[ad.ID]; exists {
			continue
		}
		c.ads = append(c.ads, ad)
		c.byID[ad.ID] = ad
	}
	if c.perCycle <= 0 || c.perCycle > len(c.ads) {
		c.perCycle = len(c.ads)
	}
	return c
}

// Get returns the ad with the given id
func (c *Catalog) Get(id string) (Ad, error) {
	ad, ok := c.byID[id]
	if !ok {
		return Ad{}, ErrAdNotFound
	}
	return ad, nil
}

// Cycle returns the ads shown in one earning cycle
func (c *Catalog) Cycle() []Ad {
	return c.ads[:c.perCycle]
}

// Len returns the number of configured ads
func (c *Catalog) Len() int {
	return len(c.ads)
}
