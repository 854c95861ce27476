package supabase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"testing"
)

func TestListTemplates_QueryShape(t *testing.T) {
	var gotQuery url.Values
	c := newTestSupabase(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/templates" {
			t.Errorf("path=%s", r.URL.Path)
		}
		gotQuery = r.URL.Query()
		_, _ = rw.Write([]byte(`[{"id":"t1","title":"Castle","tags":["medieval"]}]`))
	}))

	rows, err := c.ListTemplates(context.Background(), "tok", TemplateFilter{
		Search: "castle",
		Tags:   []string{"medieval", "stone"},
		Limit:  5,
		Offset: 10,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 || rows[0].Title != "Castle" {
		t.Fatalf("rows=%+v", rows)
	}
	if gotQuery.Get("or") != "(title.ilike.*castle*,description.ilike.*castle*)" {
		t.Fatalf("or=%q", gotQuery.Get("or"))
	}
	if gotQuery.Get("tags") != "cs.{medieval,stone}" {
		t.Fatalf("tags=%q", gotQuery.Get("tags"))
	}
	if gotQuery.Get("limit") != "5" || gotQuery.Get("offset") != "10" {
		t.Fatalf("paging: limit=%q offset=%q", gotQuery.Get("limit"), gotQuery.Get("offset"))
	}
}

func TestCreateTemplate_ReturnsRepresentation(t *testing.T) {
	c := newTestSupabase(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Prefer") != "return=representation" {
			t.Errorf("prefer=%q", r.Header.Get("Prefer"))
		}
		var in Template
		_ = json.NewDecoder(r.Body).Decode(&in)
		in.ID = "t-new"
		rw.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(rw).Encode([]Template{in})
	}))
	created, err := c.CreateTemplate(context.Background(), "tok", Template{Title: "Keep", OwnerID: "u1"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.ID != "t-new" || created.Title != "Keep" {
		t.Fatalf("created=%+v", created)
	}
}

func TestGetTemplate_NotFound(t *testing.T) {
	c := newTestSupabase(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		_, _ = rw.Write([]byte(`[]`))
	}))
	if _, err := c.GetTemplate(context.Background(), "tok", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
}

func TestActivateTemplateVersion_TwoPhase(t *testing.T) {
	type patch struct {
		query url.Values
		body  map[string]any
	}
	var patches []patch
	c := newTestSupabase(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPatch || r.URL.Path != "/rest/v1/template_versions" {
			t.Errorf("%s %s", r.Method, r.URL.Path)
		}
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		patches = append(patches, patch{query: r.URL.Query(), body: body})
		_, _ = rw.Write([]byte(`[{"id":"v2","template_id":"t1","version":2,"is_active":true}]`))
	}))

	v, err := c.ActivateTemplateVersion(context.Background(), "tok", "t1", "v2")
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if !v.IsActive || v.ID != "v2" {
		t.Fatalf("version=%+v", v)
	}
	if len(patches) != 2 {
		t.Fatalf("patches=%d want 2", len(patches))
	}
	// First pass deactivates the siblings.
	if patches[0].query.Get("id") != "neq.v2" || patches[0].body["is_active"] != false {
		t.Fatalf("deactivate patch: %+v", patches[0])
	}
	// Second flips the target on.
	if patches[1].query.Get("id") != "eq.v2" || patches[1].body["is_active"] != true {
		t.Fatalf("activate patch: %+v", patches[1])
	}
}

func TestFavorites(t *testing.T) {
	c := newTestSupabase(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost:
			var f Favorite
			_ = json.NewDecoder(r.Body).Decode(&f)
			_ = json.NewEncoder(rw).Encode([]Favorite{f})
		case r.Method == http.MethodDelete:
			if r.URL.Query().Get("user_id") != "eq.u1" {
				t.Errorf("delete query=%v", r.URL.Query())
			}
			_, _ = rw.Write([]byte(`[{"user_id":"u1","template_id":"t1"}]`))
		default:
			_, _ = rw.Write([]byte(`[{"user_id":"u1","template_id":"t1"},{"user_id":"u1","template_id":"t2"}]`))
		}
	}))

	f, err := c.AddFavorite(context.Background(), "tok", "u1", "t1")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if f.TemplateID != "t1" {
		t.Fatalf("favorite=%+v", f)
	}
	if err := c.RemoveFavorite(context.Background(), "tok", "u1", "t1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	favs, err := c.ListFavorites(context.Background(), "tok", "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(favs) != 2 {
		t.Fatalf("favorites=%d", len(favs))
	}
}

func TestDecodeAPIError_PostgRESTShape(t *testing.T) {
	c := newTestSupabase(t, http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(http.StatusConflict)
		_, _ = rw.Write([]byte(`{"code":"23505","message":"duplicate key value violates unique constraint"}`))
	}))
	_, err := c.CreateTemplate(context.Background(), "tok", Template{Title: "dup"})
	var ae *APIError
	if !errors.As(err, &ae) {
		t.Fatalf("want APIError, got %v", err)
	}
	if ae.Status != http.StatusConflict || ae.Code != "23505" {
		t.Fatalf("apierror=%+v", ae)
	}
}
