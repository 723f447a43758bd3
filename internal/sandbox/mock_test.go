package sandbox

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/danshapiro/refinery/internal/confluence"
	"github.com/danshapiro/refinery/internal/mockstate"
)

func mockStore(t *testing.T) *mockstate.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mock_state_confluence.json")
	return mockstate.NewStore("confluence", func(key string) (string, bool) {
		if key == mockstate.EnvStateFile {
			return path, true
		}
		return "", false
	})
}

func TestMockClient_Baseline(t *testing.T) {
	c := NewMockClient(mockStore(t))
	ctx := context.Background()

	sp, found, err := c.GetSpace(ctx, "CDEMO")
	if err != nil || !found {
		t.Fatalf("GetSpace: found=%t err=%v", found, err)
	}
	if sp.ID != "DEMO_SPACE" || sp.Name != "Confluence Demo Space" {
		t.Fatalf("space: got %+v", sp)
	}

	pages, err := c.ListPages(ctx, sp.ID)
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	if len(pages) != 1 || pages[0].ID != "DEMO_HOME" {
		t.Fatalf("baseline pages: got %+v", pages)
	}
	labels, err := c.PageLabels(ctx, "DEMO_HOME")
	if err != nil || len(labels) != 1 || labels[0] != "demo" {
		t.Fatalf("home labels: got %v err=%v", labels, err)
	}
}

func TestMockClient_CreatePagePersists(t *testing.T) {
	store := mockStore(t)
	ctx := context.Background()

	c := NewMockClient(store)
	page, err := c.CreatePage(ctx, confluence.NewPage{
		SpaceID: "DEMO_SPACE",
		Title:   "Persisted Page",
		Body:    MarkdownToADF("# Persisted"),
	})
	if err != nil {
		t.Fatalf("CreatePage: %v", err)
	}
	if page.ID != "100" {
		t.Fatalf("page id: got %q want 100", page.ID)
	}

	reloaded := NewMockClient(store)
	pages, err := reloaded.ListPages(ctx, "DEMO_SPACE")
	if err != nil {
		t.Fatalf("ListPages: %v", err)
	}
	var titles []string
	for _, p := range pages {
		titles = append(titles, p.Title)
	}
	if len(pages) != 2 || !strings.Contains(strings.Join(titles, ","), "Persisted Page") {
		t.Fatalf("reloaded pages: got %v", titles)
	}
}

func TestMockClient_SeedKeysNotPersisted(t *testing.T) {
	store := mockStore(t)
	c := NewMockClient(store)
	if _, err := c.CreatePage(context.Background(), confluence.NewPage{
		SpaceID: "DEMO_SPACE",
		Title:   "User Page",
	}); err != nil {
		t.Fatalf("CreatePage: %v", err)
	}

	raw, err := os.ReadFile(store.Path())
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	for _, seedKey := range []string{"CDEMO", "DEMO_HOME", "DEMO_SPACE"} {
		if strings.Contains(string(raw), `"`+seedKey+`":`) {
			t.Fatalf("snapshot contains seed key %s:\n%s", seedKey, raw)
		}
	}
}

func TestMockClient_IDAllocationSurvivesReload(t *testing.T) {
	store := mockStore(t)
	ctx := context.Background()

	c := NewMockClient(store)
	p1, _ := c.CreatePage(ctx, confluence.NewPage{SpaceID: "DEMO_SPACE", Title: "One"})
	p2, _ := c.CreatePage(ctx, confluence.NewPage{SpaceID: "DEMO_SPACE", Title: "Two"})
	if p1.ID != "100" || p2.ID != "101" {
		t.Fatalf("ids: got %q, %q", p1.ID, p2.ID)
	}

	p3, err := NewMockClient(store).CreatePage(ctx, confluence.NewPage{SpaceID: "DEMO_SPACE", Title: "Three"})
	if err != nil {
		t.Fatalf("CreatePage after reload: %v", err)
	}
	if p3.ID != "102" {
		t.Fatalf("id after reload: got %q want 102", p3.ID)
	}
}

func TestMockClient_Labels(t *testing.T) {
	c := NewMockClient(mockStore(t))
	ctx := context.Background()
	page, _ := c.CreatePage(ctx, confluence.NewPage{SpaceID: "DEMO_SPACE", Title: "Labeled"})

	if err := c.AddLabel(ctx, page.ID, "demo"); err != nil {
		t.Fatalf("AddLabel: %v", err)
	}
	if err := c.AddLabel(ctx, page.ID, "demo"); err != nil {
		t.Fatalf("AddLabel repeat: %v", err)
	}
	labels, err := c.PageLabels(ctx, page.ID)
	if err != nil {
		t.Fatalf("PageLabels: %v", err)
	}
	if len(labels) != 1 || labels[0] != "demo" {
		t.Fatalf("labels: got %v", labels)
	}

	if err := c.AddLabel(ctx, "9999", "demo"); err == nil {
		t.Fatalf("AddLabel on missing page: want error")
	}
}

func TestMockClient_ChildWebUINestsUnderParent(t *testing.T) {
	c := NewMockClient(mockStore(t))
	ctx := context.Background()

	parent, err := c.CreatePage(ctx, confluence.NewPage{SpaceID: "DEMO_SPACE", Title: "Parent"})
	if err != nil {
		t.Fatalf("create parent: %v", err)
	}
	child, err := c.CreatePage(ctx, confluence.NewPage{SpaceID: "DEMO_SPACE", Title: "Child", ParentID: parent.ID})
	if err != nil {
		t.Fatalf("create child: %v", err)
	}
	if !strings.HasPrefix(child.Links.WebUI, parent.Links.WebUI+"/") {
		t.Fatalf("child webui %q does not nest under parent %q", child.Links.WebUI, parent.Links.WebUI)
	}
	if strings.Count(child.Links.WebUI, "/") <= strings.Count(parent.Links.WebUI, "/") {
		t.Fatalf("child depth: %q vs %q", child.Links.WebUI, parent.Links.WebUI)
	}
}

func TestMockClient_DeletePage(t *testing.T) {
	store := mockStore(t)
	ctx := context.Background()

	c := NewMockClient(store)
	page, _ := c.CreatePage(ctx, confluence.NewPage{SpaceID: "DEMO_SPACE", Title: "Doomed"})
	if err := c.DeletePage(ctx, page.ID); err != nil {
		t.Fatalf("DeletePage: %v", err)
	}
	if err := c.DeletePage(ctx, page.ID); err == nil {
		t.Fatalf("second delete: want error")
	}

	pages, _ := NewMockClient(store).ListPages(ctx, "DEMO_SPACE")
	for _, p := range pages {
		if p.ID == page.ID {
			t.Fatalf("deleted page persisted: %+v", p)
		}
	}
}

func TestSeedThenClean_MockRoundTrip(t *testing.T) {
	store := mockStore(t)
	ctx := context.Background()

	seeder := &Seeder{Client: NewMockClient(store), SpaceKey: "CDEMO", Out: &bytes.Buffer{}}
	stats, err := seeder.Seed(ctx)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if stats.Created != 8 {
		t.Fatalf("seed stats: got %+v", stats)
	}

	// A scenario run leaves an unlabeled page behind.
	working := NewMockClient(store)
	scratch, err := working.CreatePage(ctx, confluence.NewPage{SpaceID: "DEMO_SPACE", Title: "Scratch Output"})
	if err != nil {
		t.Fatalf("create scratch: %v", err)
	}

	cleaner := &Cleaner{Client: NewMockClient(store), SpaceKey: "CDEMO", Out: &bytes.Buffer{}}
	cleanStats, err := cleaner.Clean(ctx)
	if err != nil {
		t.Fatalf("Clean: %v", err)
	}
	if cleanStats.Deleted != 1 || cleanStats.Preserved != 9 {
		t.Fatalf("clean stats: got %+v", cleanStats)
	}

	pages, _ := NewMockClient(store).ListPages(ctx, "DEMO_SPACE")
	for _, p := range pages {
		if p.ID == scratch.ID {
			t.Fatalf("scratch page survived cleanup")
		}
	}
	if len(pages) != 9 {
		t.Fatalf("pages after cleanup: got %d want 9", len(pages))
	}
}
