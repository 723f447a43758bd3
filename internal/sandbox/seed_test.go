package sandbox

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/danshapiro/refinery/internal/confluence"
)

// fakeContent is an in-memory ContentClient with scriptable failures.
type fakeContent struct {
	spaces          map[string]confluence.Space
	pages           []confluence.Page
	labels          map[string][]string
	comments        map[string][]confluence.Comment
	deleted         []string
	deletedComments []string
	createdSpaces   []string
	failCreate      map[string]bool
	failLabelsFor   map[string]bool
	nextID          int
}

func newFakeContent() *fakeContent {
	return &fakeContent{
		spaces:   map[string]confluence.Space{},
		labels:   map[string][]string{},
		comments: map[string][]confluence.Comment{},
		nextID:   1000,
	}
}

func (f *fakeContent) addPage(id, title, webui string, labels ...string) {
	f.pages = append(f.pages, confluence.Page{
		ID:    id,
		Title: title,
		Links: confluence.PageLinks{WebUI: webui},
	})
	f.labels[id] = labels
}

func (f *fakeContent) GetSpace(ctx context.Context, key string) (confluence.Space, bool, error) {
	sp, ok := f.spaces[key]
	return sp, ok, nil
}

func (f *fakeContent) CreateSpace(ctx context.Context, key, name, description string) (confluence.Space, error) {
	f.createdSpaces = append(f.createdSpaces, key)
	sp := confluence.Space{ID: "space-" + key, Key: key, Name: name}
	f.spaces[key] = sp
	return sp, nil
}

func (f *fakeContent) CreatePage(ctx context.Context, p confluence.NewPage) (confluence.Page, error) {
	if f.failCreate[p.Title] {
		return confluence.Page{}, fmt.Errorf("status 500")
	}
	id := strconv.Itoa(f.nextID)
	f.nextID++
	page := confluence.Page{ID: id, Title: p.Title, ParentID: p.ParentID}
	f.pages = append(f.pages, page)
	return page, nil
}

func (f *fakeContent) AddLabel(ctx context.Context, pageID, label string) error {
	f.labels[pageID] = append(f.labels[pageID], label)
	return nil
}

func (f *fakeContent) PageLabels(ctx context.Context, pageID string) ([]string, error) {
	if f.failLabelsFor[pageID] {
		return nil, fmt.Errorf("status 503")
	}
	return f.labels[pageID], nil
}

func (f *fakeContent) ListPages(ctx context.Context, spaceID string) ([]confluence.Page, error) {
	return f.pages, nil
}

func (f *fakeContent) DeletePage(ctx context.Context, pageID string) error {
	f.deleted = append(f.deleted, pageID)
	return nil
}

func (f *fakeContent) FooterComments(ctx context.Context, pageID string) ([]confluence.Comment, error) {
	return f.comments[pageID], nil
}

func (f *fakeContent) DeleteFooterComment(ctx context.Context, commentID string) error {
	f.deletedComments = append(f.deletedComments, commentID)
	return nil
}

func TestDemoPages_Shape(t *testing.T) {
	roots := DemoPages()
	if len(roots) != 2 {
		t.Fatalf("roots: got %d want 2", len(roots))
	}
	if roots[0].Title != "Product Documentation" || roots[1].Title != "Team Resources" {
		t.Fatalf("root titles: got %q, %q", roots[0].Title, roots[1].Title)
	}
	for _, root := range roots {
		if len(root.Children) != 3 {
			t.Fatalf("%s children: got %d want 3", root.Title, len(root.Children))
		}
		if root.Labels[0] != "demo" {
			t.Fatalf("%s labels: got %v", root.Title, root.Labels)
		}
		for _, child := range root.Children {
			if child.Labels[0] != "demo" {
				t.Fatalf("%s labels: got %v", child.Title, child.Labels)
			}
		}
	}
	api := roots[0].Children[0]
	if api.Title != "API Reference" {
		t.Fatalf("first child: got %q", api.Title)
	}
	wantLabels := []string{"demo", "api", "technical"}
	for i, l := range wantLabels {
		if api.Labels[i] != l {
			t.Fatalf("api labels: got %v want %v", api.Labels, wantLabels)
		}
	}
}

func TestSeed_CreatesDemoTree(t *testing.T) {
	fake := newFakeContent()
	var out bytes.Buffer
	s := &Seeder{Client: fake, SpaceKey: "CDEMO", SiteURL: "https://example.atlassian.net", Out: &out}

	stats, err := s.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if stats.Created != 8 || stats.Failed != 0 {
		t.Fatalf("stats: got %+v", stats)
	}
	if len(fake.createdSpaces) != 1 || fake.createdSpaces[0] != "CDEMO" {
		t.Fatalf("created spaces: got %v", fake.createdSpaces)
	}
	if len(fake.pages) != 8 {
		t.Fatalf("pages: got %d want 8", len(fake.pages))
	}

	byTitle := map[string]confluence.Page{}
	for _, p := range fake.pages {
		byTitle[p.Title] = p
	}
	root := byTitle["Product Documentation"]
	if root.ParentID != "" {
		t.Fatalf("root parent: got %q", root.ParentID)
	}
	child := byTitle["API Reference"]
	if child.ParentID != root.ID {
		t.Fatalf("child parent: got %q want %q", child.ParentID, root.ID)
	}
	if labels := fake.labels[child.ID]; len(labels) != 3 || labels[1] != "api" {
		t.Fatalf("child labels: got %v", labels)
	}

	text := out.String()
	for _, want := range []string{
		"Confluence Demo Data Seeder",
		"Site: https://example.atlassian.net",
		"Space: CDEMO (Confluence Demo Space)",
		"Created space: CDEMO",
		"Creating demo content...",
		"  Created page: Product Documentation",
		"    Added label: demo",
		"Demo data seeding complete!",
		"Visit: https://example.atlassian.net/wiki/spaces/CDEMO",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestSeed_ExistingSpace(t *testing.T) {
	fake := newFakeContent()
	fake.spaces["CDEMO"] = confluence.Space{ID: "777", Key: "CDEMO", Name: "Confluence Demo Space"}
	var out bytes.Buffer
	s := &Seeder{Client: fake, SpaceKey: "CDEMO", Out: &out}

	if _, err := s.Seed(context.Background()); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(fake.createdSpaces) != 0 {
		t.Fatalf("created spaces: got %v want none", fake.createdSpaces)
	}
	if !strings.Contains(out.String(), "Space CDEMO already exists (ID: 777)") {
		t.Fatalf("output missing exists line:\n%s", out.String())
	}
}

func TestSeed_PageFailureSkipsChildren(t *testing.T) {
	fake := newFakeContent()
	fake.failCreate = map[string]bool{"Team Resources": true}
	var out bytes.Buffer
	s := &Seeder{Client: fake, SpaceKey: "CDEMO", Out: &out}

	stats, err := s.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if stats.Created != 4 || stats.Failed != 1 {
		t.Fatalf("stats: got %+v", stats)
	}
	for _, p := range fake.pages {
		if p.Title == "Q1 Planning" {
			t.Fatalf("child of failed root was created")
		}
	}
	if !strings.Contains(out.String(), `Failed to create page "Team Resources"`) {
		t.Fatalf("output missing failure line:\n%s", out.String())
	}
}

func TestSeed_CustomPages(t *testing.T) {
	fake := newFakeContent()
	s := &Seeder{
		Client:   fake,
		SpaceKey: "CDEMO",
		Pages:    []DemoPage{{Title: "Only Page", Labels: []string{"demo"}, Body: "# Only"}},
		Out:      &bytes.Buffer{},
	}
	stats, err := s.Seed(context.Background())
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if stats.Created != 1 {
		t.Fatalf("stats: got %+v", stats)
	}
	if fake.pages[0].Title != "Only Page" {
		t.Fatalf("page: got %+v", fake.pages[0])
	}
}

func TestSeed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fake := newFakeContent()
	fake.spaces["CDEMO"] = confluence.Space{ID: "777", Key: "CDEMO"}
	s := &Seeder{Client: fake, SpaceKey: "CDEMO", Out: &bytes.Buffer{}}

	if _, err := s.Seed(ctx); err == nil {
		t.Fatalf("Seed: want context error")
	}
	if len(fake.pages) != 0 {
		t.Fatalf("pages created after cancel: %v", fake.pages)
	}
}
