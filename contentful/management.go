package contentful

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ridoystarlord/discontented/schema"
)

// Management reads and writes the latest (draft) state of the space.
type Management struct {
	client        *Client
	SpaceID       string
	EnvironmentID string
}

func NewManagement(opts Options) *Management {
	return &Management{
		client:        newClient("cma", orDefault(opts.ManagementURL, ManagementURL), opts.ManagementToken, 10, 0, opts.Logger),
		SpaceID:       opts.SpaceID,
		EnvironmentID: opts.environment(),
	}
}

func (m *Management) Client() *Client {
	return m.client
}

func (m *Management) envPath() string {
	return fmt.Sprintf("/spaces/%s/environments/%s", url.PathEscape(m.SpaceID), url.PathEscape(m.EnvironmentID))
}

func (m *Management) get(ctx context.Context, path string, out any) error {
	return m.client.do(ctx, request{method: http.MethodGet, path: m.envPath() + path}, out)
}

func versioned(version int) http.Header {
	return http.Header{versionHeader: {strconv.Itoa(version)}}
}

// ContentTypes returns every content type in the environment.
func (m *Management) ContentTypes(ctx context.Context) ([]schema.ContentType, error) {
	return collect[schema.ContentType](ctx, m.client, m.envPath()+"/content_types", nil)
}

func (m *Management) ContentType(ctx context.Context, id string) (*schema.ContentType, error) {
	var ct schema.ContentType
	if err := m.get(ctx, "/content_types/"+url.PathEscape(id), &ct); err != nil {
		return nil, err
	}
	return &ct, nil
}

func (m *Management) Locales(ctx context.Context) ([]schema.Locale, error) {
	return collect[schema.Locale](ctx, m.client, m.envPath()+"/locales", nil)
}

// Entries returns the latest version of every entry.
func (m *Management) Entries(ctx context.Context) ([]schema.Entry, error) {
	return collect[schema.Entry](ctx, m.client, m.envPath()+"/entries", nil)
}

func (m *Management) Entry(ctx context.Context, id string) (*schema.Entry, error) {
	var entry schema.Entry
	if err := m.get(ctx, "/entries/"+url.PathEscape(id), &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (m *Management) Assets(ctx context.Context) ([]schema.Asset, error) {
	return collect[schema.Asset](ctx, m.client, m.envPath()+"/assets", nil)
}

func (m *Management) Asset(ctx context.Context, id string) (*schema.Asset, error) {
	var asset schema.Asset
	if err := m.get(ctx, "/assets/"+url.PathEscape(id), &asset); err != nil {
		return nil, err
	}
	return &asset, nil
}

// UpdateEntry writes the fields of entry using its sys.version for
// optimistic locking.
func (m *Management) UpdateEntry(ctx context.Context, entry schema.Entry) (*schema.Entry, error) {
	headers := versioned(entry.Sys.Version)
	if ct := entry.ContentTypeID(); ct != "" {
		headers.Set("X-Contentful-Content-Type", ct)
	}

	var updated schema.Entry
	err := m.client.do(ctx, request{
		method:  http.MethodPut,
		path:    m.envPath() + "/entries/" + url.PathEscape(entry.Sys.ID),
		headers: headers,
		body:    map[string]any{"fields": entry.Fields},
	}, &updated)
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

func (m *Management) entryState(ctx context.Context, method, id, suffix string, version int) error {
	return m.client.do(ctx, request{
		method:  method,
		path:    m.envPath() + "/entries/" + url.PathEscape(id) + suffix,
		headers: versioned(version),
	}, nil)
}

func (m *Management) PublishEntry(ctx context.Context, id string, version int) error {
	return m.entryState(ctx, http.MethodPut, id, "/published", version)
}

func (m *Management) UnpublishEntry(ctx context.Context, id string, version int) error {
	return m.entryState(ctx, http.MethodDelete, id, "/published", version)
}

func (m *Management) ArchiveEntry(ctx context.Context, id string, version int) error {
	return m.entryState(ctx, http.MethodPut, id, "/archived", version)
}

func (m *Management) UnarchiveEntry(ctx context.Context, id string, version int) error {
	return m.entryState(ctx, http.MethodDelete, id, "/archived", version)
}

func (m *Management) DeleteEntry(ctx context.Context, id string, version int) error {
	return m.entryState(ctx, http.MethodDelete, id, "", version)
}

// FetchStore exports content types, locales, the latest entries and assets.
func (m *Management) FetchStore(ctx context.Context) (*schema.Store, error) {
	types, err := m.ContentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch content types: %w", err)
	}
	locales, err := m.Locales(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch locales: %w", err)
	}
	entries, err := m.Entries(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch entries: %w", err)
	}
	assets, err := m.Assets(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch assets: %w", err)
	}
	return &schema.Store{ContentTypes: types, Entries: entries, Assets: assets, Locales: locales}, nil
}
