package push

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/ridoystarlord/discontented/codec"
	"github.com/ridoystarlord/discontented/contentful"
	"github.com/ridoystarlord/discontented/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDB struct {
	rows  map[string]map[string]any
	links map[string][]string
}

func (f *fakeDB) QueryRowByUniqueKey(_ context.Context, table, column, key string) (map[string]any, error) {
	return f.rows[table+"/"+column+"="+key], nil
}

func (f *fakeDB) QueryLinkTableTargets(_ context.Context, table, owner string) ([]string, error) {
	return f.links[table+"/"+owner], nil
}

type fakeManagement struct {
	entries map[string]*schema.Entry
	updated []schema.Entry
}

func (f *fakeManagement) Entry(_ context.Context, id string) (*schema.Entry, error) {
	if e, ok := f.entries[id]; ok {
		return e, nil
	}
	return nil, &contentful.StatusError{Code: 404, Status: "404 Not Found"}
}

func (f *fakeManagement) UpdateEntry(_ context.Context, entry schema.Entry) (*schema.Entry, error) {
	f.updated = append(f.updated, entry)
	entry.Sys.Version++
	return &entry, nil
}

func articleType() schema.ContentType {
	return schema.ContentType{
		Sys: schema.ContentTypeSys{ID: "blogPost"},
		Fields: []schema.Field{
			{ID: "title", Type: schema.Symbol, Localized: true},
			{ID: "views", Type: schema.Integer},
			{ID: "postedAt", Type: schema.Date},
			{ID: "author", Type: schema.Link, LinkType: schema.EntryLink},
			{ID: "editor", Type: schema.Link, LinkType: schema.EntryLink},
			{ID: "hero", Type: schema.Link, LinkType: schema.AssetLink},
			{ID: "related", Type: schema.Array, Items: &schema.Items{Type: schema.Link, LinkType: schema.EntryLink}},
		},
	}
}

func newService(db *fakeDB, mgmt *fakeManagement) *Service {
	return &Service{
		Naming:     codec.Naming{TablePrefix: "cf_"},
		Snapshot:   &schema.Snapshot{ContentTypes: []schema.ContentType{articleType()}},
		SpaceID:    "space1",
		DB:         db,
		Management: mgmt,
	}
}

func rawJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestPush(t *testing.T) {
	posted := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	db := &fakeDB{
		rows: map[string]map[string]any{
			"cf_blog_posts/cfid=e1": {
				"cfid": "e1", "title": "From SQL", "views": int64(42), "posted_at": posted,
				"author_cfid": "a1", "editor_cfid": nil, "hero_cfurl": "https://images/x.png",
			},
		},
		links: map[string][]string{"cf_blog_posts_related/e1": {"r2", "r1"}},
	}
	existing := &schema.Entry{
		Sys: schema.EntrySys{ID: "e1", Version: 7},
		Fields: map[string]schema.LocalizedValue{
			"title": {"en-US": rawJSON(t, "Old"), "de-DE": rawJSON(t, "Alt")},
			"hero":  {"en-US": rawJSON(t, schema.NewLink(schema.AssetLink, "img1"))},
		},
	}
	mgmt := &fakeManagement{entries: map[string]*schema.Entry{"e1": existing}}
	svc := newService(db, mgmt)

	var u Update
	require.NoError(t, json.Unmarshal([]byte(`{"tableName":"cf_blog_posts","cfid":"e1","cfVersion":"7"}`), &u))

	updated, err := svc.Push(context.Background(), u)
	require.NoError(t, err)
	assert.Equal(t, 8, updated.Sys.Version)

	require.Len(t, mgmt.updated, 1)
	sent := mgmt.updated[0]
	assert.Equal(t, 7, sent.Sys.Version)
	assert.Equal(t, "blogPost", sent.ContentTypeID())
	assert.Equal(t, "space1", sent.SpaceID())

	fields := sent.Fields
	assert.JSONEq(t, `"From SQL"`, string(fields["title"]["en-US"]))
	assert.JSONEq(t, `"Alt"`, string(fields["title"]["de-DE"]))
	assert.JSONEq(t, `42`, string(fields["views"]["en-US"]))
	assert.JSONEq(t, `"2024-05-06T07:08:09Z"`, string(fields["postedAt"]["en-US"]))
	assert.JSONEq(t, `{"sys":{"type":"Link","linkType":"Entry","id":"a1"}}`, string(fields["author"]["en-US"]))
	assert.NotContains(t, fields, "editor")
	assert.Equal(t, existing.Fields["hero"], fields["hero"])
	assert.JSONEq(t, `[{"sys":{"type":"Link","linkType":"Entry","id":"r2"}},{"sys":{"type":"Link","linkType":"Entry","id":"r1"}}]`,
		string(fields["related"]["en-US"]))
}

func TestPushNewEntry(t *testing.T) {
	db := &fakeDB{rows: map[string]map[string]any{"cf_blog_posts/cfid=e9": {"cfid": "e9", "title": "Fresh"}}}
	mgmt := &fakeManagement{}
	svc := newService(db, mgmt)

	_, err := svc.Push(context.Background(), Update{TableName: "cf_blog_posts", Cfid: "e9", CfVersion: 1})
	require.NoError(t, err)
	require.Len(t, mgmt.updated, 1)
	assert.NotContains(t, mgmt.updated[0].Fields, "hero")
	assert.JSONEq(t, `[]`, string(mgmt.updated[0].Fields["related"]["en-US"]))
}

func TestPushErrors(t *testing.T) {
	svc := newService(&fakeDB{}, &fakeManagement{})

	_, err := svc.Push(context.Background(), Update{TableName: "nope", Cfid: "e1"})
	assert.EqualError(t, err, "could not find a content type for table nope")

	_, err = svc.Push(context.Background(), Update{TableName: "cf_blog_posts", Cfid: "e1"})
	assert.EqualError(t, err, "no row in cf_blog_posts with cfid e1")

	svc.Snapshot = nil
	_, err = svc.Push(context.Background(), Update{TableName: "cf_blog_posts", Cfid: "e1"})
	assert.Error(t, err)
}

type failingManagement struct{ fakeManagement }

func (f *failingManagement) Entry(context.Context, string) (*schema.Entry, error) {
	return nil, errors.New("connection reset")
}

func TestPushManagementFailure(t *testing.T) {
	svc := newService(&fakeDB{}, &fakeManagement{})
	svc.Management = &failingManagement{}

	_, err := svc.Push(context.Background(), Update{TableName: "cf_blog_posts", Cfid: "e1"})
	assert.ErrorContains(t, err, "connection reset")
}

func TestVersionUnmarshal(t *testing.T) {
	var v Version
	require.NoError(t, json.Unmarshal([]byte(`12`), &v))
	assert.Equal(t, Version(12), v)
	require.NoError(t, json.Unmarshal([]byte(`"13"`), &v))
	assert.Equal(t, Version(13), v)
	assert.Error(t, json.Unmarshal([]byte(`"x"`), &v))
}
