package confluence

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func contentClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := Config{SiteURL: srv.URL, Email: "dev@example.com", APIToken: "token", SpaceKey: "CDEMO"}
	return NewClient(cfg, Options{
		BaseDelay: time.Millisecond,
		Limiter:   rate.NewLimiter(rate.Inf, 0),
		Out:       &bytes.Buffer{},
	}), srv
}

func TestGetSpace(t *testing.T) {
	c, _ := contentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/wiki/api/v2/spaces" {
			t.Errorf("path: got %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("keys"); got != "CDEMO" {
			t.Errorf("keys param: got %q", got)
		}
		fmt.Fprint(w, `{"results": [{"id": "777", "key": "CDEMO", "name": "Demo"}]}`)
	}))

	sp, found, err := c.GetSpace(context.Background(), "CDEMO")
	if err != nil || !found {
		t.Fatalf("GetSpace: found=%t err=%v", found, err)
	}
	if sp.ID != "777" || sp.Name != "Demo" {
		t.Fatalf("space: got %+v", sp)
	}
}

func TestGetSpace_NotFound(t *testing.T) {
	c, _ := contentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": []}`)
	}))
	_, found, err := c.GetSpace(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("GetSpace: %v", err)
	}
	if found {
		t.Fatalf("found: got true want false")
	}
}

func TestCreateSpace_ConflictFallsBackToLookup(t *testing.T) {
	c, _ := contentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusConflict)
			return
		}
		fmt.Fprint(w, `{"results": [{"id": "42", "key": "CDEMO", "name": "Demo"}]}`)
	}))

	sp, err := c.CreateSpace(context.Background(), "CDEMO", "Demo", "desc")
	if err != nil {
		t.Fatalf("CreateSpace: %v", err)
	}
	if sp.ID != "42" {
		t.Fatalf("space id: got %q want 42", sp.ID)
	}
}

func TestCreatePage(t *testing.T) {
	var payload map[string]any
	c, _ := contentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		fmt.Fprint(w, `{"id": "1001", "title": "API Reference"}`)
	}))

	body := map[string]any{"type": "doc", "version": 1}
	page, err := c.CreatePage(context.Background(), NewPage{
		SpaceID:  "777",
		Title:    "API Reference",
		ParentID: "1000",
		Body:     body,
	})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if page.ID != "1001" {
		t.Fatalf("page id: got %q", page.ID)
	}
	if payload["spaceId"] != "777" || payload["parentId"] != "1000" || payload["status"] != "current" {
		t.Fatalf("payload: got %v", payload)
	}
	bodyField, ok := payload["body"].(map[string]any)
	if !ok || bodyField["representation"] != "atlas_doc_format" {
		t.Fatalf("body field: got %v", payload["body"])
	}
	if _, ok := bodyField["value"].(string); !ok {
		t.Fatalf("adf value must be embedded as a JSON string, got %T", bodyField["value"])
	}
}

func TestAddLabel_AlreadyPresentIsOK(t *testing.T) {
	c, _ := contentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	if err := c.AddLabel(context.Background(), "1001", "demo"); err != nil {
		t.Fatalf("AddLabel: %v", err)
	}
}

func TestPageLabels(t *testing.T) {
	c, _ := contentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{"name": "demo"}, {"name": "docs"}]}`)
	}))
	labels, err := c.PageLabels(context.Background(), "1001")
	if err != nil {
		t.Fatalf("PageLabels: %v", err)
	}
	if len(labels) != 2 || labels[0] != "demo" || labels[1] != "docs" {
		t.Fatalf("labels: got %v", labels)
	}
}

func TestListPages_FollowsPagination(t *testing.T) {
	var paths []string
	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/api/v2/spaces/777/pages", func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.String())
		if r.URL.Query().Get("cursor") == "p2" {
			fmt.Fprint(w, `{"results": [{"id": "3", "title": "Third"}]}`)
			return
		}
		fmt.Fprint(w, `{"results": [{"id": "1", "title": "First"}, {"id": "2", "title": "Second"}],
			"_links": {"next": "/wiki/api/v2/spaces/777/pages?cursor=p2"}}`)
	})
	c, _ := contentClient(t, mux)

	pages, err := c.ListPages(context.Background(), "777")
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if len(pages) != 3 {
		t.Fatalf("pages: got %d want 3", len(pages))
	}
	if pages[2].ID != "3" {
		t.Fatalf("last page: got %+v", pages[2])
	}
	if len(paths) != 2 {
		t.Fatalf("requests: got %v", paths)
	}
	if got := paths[0]; got != "/wiki/api/v2/spaces/777/pages?limit=100" {
		t.Fatalf("first request: got %q", got)
	}
}

func TestDeletePage_AcceptsNoContent(t *testing.T) {
	c, _ := contentClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("method: got %s", r.Method)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	if err := c.DeletePage(context.Background(), "1001"); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
}

func TestFooterComments(t *testing.T) {
	var deleted []string
	mux := http.NewServeMux()
	mux.HandleFunc("/wiki/api/v2/pages/1001/footer-comments", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"results": [{"id": "c1"}, {"id": "c2"}]}`)
	})
	mux.HandleFunc("/wiki/api/v2/footer-comments/", func(w http.ResponseWriter, r *http.Request) {
		deleted = append(deleted, r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})
	c, _ := contentClient(t, mux)

	comments, err := c.FooterComments(context.Background(), "1001")
	if err != nil {
		t.Fatalf("FooterComments: %v", err)
	}
	if len(comments) != 2 {
		t.Fatalf("comments: got %d want 2", len(comments))
	}
	for _, cm := range comments {
		if err := c.DeleteFooterComment(context.Background(), cm.ID); err != nil {
			t.Fatalf("DeleteFooterComment: %v", err)
		}
	}
	if len(deleted) != 2 || deleted[0] != "/wiki/api/v2/footer-comments/c1" {
		t.Fatalf("deleted: got %v", deleted)
	}
}
