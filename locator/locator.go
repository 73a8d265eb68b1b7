// Package locator resolves linked entries and assets by id.
package locator

import (
	"context"

	"github.com/ridoystarlord/discontented/contentful"
	"github.com/ridoystarlord/discontented/schema"
)

// Locator finds published entries and assets. A nil result with a nil
// error means the resource does not exist.
type Locator interface {
	Entry(ctx context.Context, spaceID, id string) (*schema.Entry, error)
	Asset(ctx context.Context, spaceID, id string) (*schema.Asset, error)
}

func key(spaceID, id string) string {
	return spaceID + "/" + id
}

// Offline serves lookups from an in-memory export.
type Offline struct {
	entries map[string]*schema.Entry
	assets  map[string]*schema.Asset
}

// NewOffline indexes the published entries and all assets of the given
// resources once.
func NewOffline(entries []schema.Entry, assets []schema.Asset) *Offline {
	o := &Offline{
		entries: make(map[string]*schema.Entry, len(entries)),
		assets:  make(map[string]*schema.Asset, len(assets)),
	}
	for i := range entries {
		e := &entries[i]
		if !e.IsPublished() {
			continue
		}
		o.entries[key(e.SpaceID(), e.Sys.ID)] = e
	}
	for i := range assets {
		a := &assets[i]
		o.assets[key(a.SpaceID(), a.Sys.ID)] = a
	}
	return o
}

// FromStore indexes a store export.
func FromStore(store *schema.Store) *Offline {
	return NewOffline(store.Entries, store.Assets)
}

func (o *Offline) Entry(_ context.Context, spaceID, id string) (*schema.Entry, error) {
	return o.entries[key(spaceID, id)], nil
}

func (o *Offline) Asset(_ context.Context, spaceID, id string) (*schema.Asset, error) {
	return o.assets[key(spaceID, id)], nil
}

// Online looks entries up through the delivery API and assets through the
// management API.
type Online struct {
	Delivery   *contentful.Delivery
	Management *contentful.Management
}

func (o *Online) Entry(ctx context.Context, spaceID, id string) (*schema.Entry, error) {
	return o.Delivery.Entry(ctx, spaceID, id)
}

func (o *Online) Asset(ctx context.Context, _ string, id string) (*schema.Asset, error) {
	asset, err := o.Management.Asset(ctx, id)
	if contentful.IsNotFound(err) {
		return nil, nil
	}
	return asset, err
}
