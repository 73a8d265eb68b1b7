package contentful

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/ridoystarlord/discontented/schema"
)

// Options configures both API clients.
type Options struct {
	SpaceID         string
	EnvironmentID   string
	DeliveryToken   string
	ManagementToken string
	DeliveryURL     string
	ManagementURL   string
	Logger          *slog.Logger
}

func (o Options) environment() string {
	if o.EnvironmentID == "" {
		return "master"
	}
	return o.EnvironmentID
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// Delivery reads published content. Missing resources are reported as nil.
type Delivery struct {
	client        *Client
	SpaceID       string
	EnvironmentID string
}

func NewDelivery(opts Options) *Delivery {
	return &Delivery{
		client:        newClient("cda", orDefault(opts.DeliveryURL, DeliveryURL), opts.DeliveryToken, 30, time.Second, opts.Logger),
		SpaceID:       opts.SpaceID,
		EnvironmentID: opts.environment(),
	}
}

// Client exposes the underlying HTTP client for tuning.
func (d *Delivery) Client() *Client {
	return d.client
}

func (d *Delivery) envPath(spaceID string) string {
	if spaceID == "" {
		spaceID = d.SpaceID
	}
	return fmt.Sprintf("/spaces/%s/environments/%s", url.PathEscape(spaceID), url.PathEscape(d.EnvironmentID))
}

func allLocales() url.Values {
	return url.Values{"locale": {"*"}}
}

// Entry fetches the published version of an entry in every locale.
func (d *Delivery) Entry(ctx context.Context, spaceID, id string) (*schema.Entry, error) {
	var entry schema.Entry
	err := d.client.do(ctx, request{
		method: http.MethodGet,
		path:   d.envPath(spaceID) + "/entries/" + url.PathEscape(id),
		query:  allLocales(),
	}, &entry)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// Asset fetches a published asset.
func (d *Delivery) Asset(ctx context.Context, spaceID, id string) (*schema.Asset, error) {
	var asset schema.Asset
	err := d.client.do(ctx, request{
		method: http.MethodGet,
		path:   d.envPath(spaceID) + "/assets/" + url.PathEscape(id),
		query:  allLocales(),
	}, &asset)
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &asset, nil
}

// Entries fetches every published entry.
func (d *Delivery) Entries(ctx context.Context) ([]schema.Entry, error) {
	return collect[schema.Entry](ctx, d.client, d.envPath("")+"/entries", allLocales())
}

// Assets fetches every published asset.
func (d *Delivery) Assets(ctx context.Context) ([]schema.Asset, error) {
	return collect[schema.Asset](ctx, d.client, d.envPath("")+"/assets", allLocales())
}
