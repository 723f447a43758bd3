package sandbox

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"sort"
	"strconv"

	"github.com/danshapiro/refinery/internal/confluence"
	"github.com/danshapiro/refinery/internal/mockstate"
)

// Baseline fixture identifiers. These match the mock library's built-in
// demo data inside the test container and are excluded from snapshots.
const (
	mockSpaceKey   = "CDEMO"
	mockSpaceID    = "DEMO_SPACE"
	mockHomePageID = "DEMO_HOME"
)

// mockRecord is one object in the snapshot: a space or a page.
type mockRecord struct {
	Kind     string   `json:"kind"`
	ID       string   `json:"id"`
	Key      string   `json:"key,omitempty"`
	Name     string   `json:"name,omitempty"`
	Title    string   `json:"title,omitempty"`
	SpaceID  string   `json:"space_id,omitempty"`
	ParentID string   `json:"parent_id,omitempty"`
	Labels   []string `json:"labels,omitempty"`
	Body     string   `json:"body,omitempty"`
	WebUI    string   `json:"webui,omitempty"`
}

// MockClient implements ContentClient against the persistent mock state
// instead of the wiki API. It starts from the built-in demo baseline
// (the CDEMO space and its labeled home page) and overlays whatever
// earlier invocations persisted, so created content survives across
// separate CLI runs the same way it does inside the test container.
type MockClient struct {
	store *mockstate.Store
	state mockstate.State
}

var _ ContentClient = (*MockClient)(nil)

// NewMockClient loads the snapshot for the store's platform and layers
// the baseline fixtures under it.
func NewMockClient(store *mockstate.Store) *MockClient {
	c := &MockClient{store: store, state: store.Load()}
	c.ensureBaseline()
	return c
}

// ensureBaseline installs the demo space and home page when absent.
// They live under seed keys, which Save never writes out, so they are
// rebuilt fresh on every load.
func (c *MockClient) ensureBaseline() {
	if _, ok := c.state.Data[mockSpaceKey]; !ok {
		c.setRecord(mockSpaceKey, mockRecord{
			Kind: "space",
			ID:   mockSpaceID,
			Key:  mockSpaceKey,
			Name: DefaultSpaceName,
		})
	}
	if _, ok := c.state.Data[mockHomePageID]; !ok {
		c.setRecord(mockHomePageID, mockRecord{
			Kind:    "page",
			ID:      mockHomePageID,
			Title:   "Demo Home",
			SpaceID: mockSpaceID,
			Labels:  []string{DefaultPreserveLabel},
			WebUI:   "/wiki/spaces/" + mockSpaceKey + "/pages/" + mockHomePageID,
		})
	}
}

func (c *MockClient) record(key string) (mockRecord, bool) {
	raw, ok := c.state.Data[key]
	if !ok {
		return mockRecord{}, false
	}
	var rec mockRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return mockRecord{}, false
	}
	return rec, true
}

func (c *MockClient) setRecord(key string, rec mockRecord) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	c.state.Data[key] = raw
}

func (c *MockClient) save() error {
	return c.store.Save(c.state)
}

func (c *MockClient) nextID() string {
	id := strconv.Itoa(c.state.NextID)
	c.state.NextID++
	return id
}

// GetSpace looks the space up by key.
func (c *MockClient) GetSpace(ctx context.Context, key string) (confluence.Space, bool, error) {
	rec, ok := c.record(key)
	if !ok || rec.Kind != "space" {
		return confluence.Space{}, false, nil
	}
	return confluence.Space{ID: rec.ID, Key: rec.Key, Name: rec.Name}, true, nil
}

// CreateSpace creates the space, or returns the existing one when the
// key is already taken.
func (c *MockClient) CreateSpace(ctx context.Context, key, name, description string) (confluence.Space, error) {
	if existing, found, _ := c.GetSpace(ctx, key); found {
		return existing, nil
	}
	sp := confluence.Space{ID: c.nextID(), Key: key, Name: name}
	c.setRecord(key, mockRecord{Kind: "space", ID: sp.ID, Key: key, Name: name})
	return sp, c.save()
}

// CreatePage allocates an identifier and stores the page. The webui link
// nests under the parent's so page depth is observable.
func (c *MockClient) CreatePage(ctx context.Context, p confluence.NewPage) (confluence.Page, error) {
	space, ok := c.spaceByID(p.SpaceID)
	if !ok {
		return confluence.Page{}, fmt.Errorf("create page: unknown space %s", p.SpaceID)
	}

	body, err := json.Marshal(p.Body)
	if err != nil {
		return confluence.Page{}, fmt.Errorf("create page: encode body: %w", err)
	}

	id := c.nextID()
	webui := "/wiki/spaces/" + space.Key + "/pages/" + id
	if p.ParentID != "" {
		parent, ok := c.record(p.ParentID)
		if !ok || parent.Kind != "page" {
			return confluence.Page{}, fmt.Errorf("create page: unknown parent %s", p.ParentID)
		}
		webui = parent.WebUI + "/" + id
	}

	c.setRecord(id, mockRecord{
		Kind:     "page",
		ID:       id,
		Title:    p.Title,
		SpaceID:  p.SpaceID,
		ParentID: p.ParentID,
		Body:     string(body),
		WebUI:    webui,
	})
	page := confluence.Page{
		ID:       id,
		Title:    p.Title,
		ParentID: p.ParentID,
		Links:    confluence.PageLinks{WebUI: webui},
	}
	return page, c.save()
}

// AddLabel attaches a label to a page. Adding a label that is already
// present is fine.
func (c *MockClient) AddLabel(ctx context.Context, pageID, label string) error {
	rec, ok := c.record(pageID)
	if !ok || rec.Kind != "page" {
		return fmt.Errorf("add label: page %s not found", pageID)
	}
	if slices.Contains(rec.Labels, label) {
		return nil
	}
	rec.Labels = append(rec.Labels, label)
	c.setRecord(pageID, rec)
	return c.save()
}

// PageLabels returns the labels attached to a page.
func (c *MockClient) PageLabels(ctx context.Context, pageID string) ([]string, error) {
	rec, ok := c.record(pageID)
	if !ok || rec.Kind != "page" {
		return nil, fmt.Errorf("page labels: page %s not found", pageID)
	}
	return slices.Clone(rec.Labels), nil
}

// ListPages returns every page in the space, ordered by identifier.
func (c *MockClient) ListPages(ctx context.Context, spaceID string) ([]confluence.Page, error) {
	var pages []confluence.Page
	for key := range c.state.Data {
		rec, ok := c.record(key)
		if !ok || rec.Kind != "page" || rec.SpaceID != spaceID {
			continue
		}
		pages = append(pages, confluence.Page{
			ID:       rec.ID,
			Title:    rec.Title,
			ParentID: rec.ParentID,
			Links:    confluence.PageLinks{WebUI: rec.WebUI},
		})
	}
	sort.Slice(pages, func(i, j int) bool { return pages[i].ID < pages[j].ID })
	return pages, nil
}

// DeletePage removes a page.
func (c *MockClient) DeletePage(ctx context.Context, pageID string) error {
	rec, ok := c.record(pageID)
	if !ok || rec.Kind != "page" {
		return fmt.Errorf("delete page: page %s not found", pageID)
	}
	delete(c.state.Data, pageID)
	return c.save()
}

// FooterComments returns no comments; the mock surface has none.
func (c *MockClient) FooterComments(ctx context.Context, pageID string) ([]confluence.Comment, error) {
	return nil, nil
}

// DeleteFooterComment rejects unknown comments, which in the mock is
// all of them.
func (c *MockClient) DeleteFooterComment(ctx context.Context, commentID string) error {
	return fmt.Errorf("delete comment: comment %s not found", commentID)
}

func (c *MockClient) spaceByID(spaceID string) (mockRecord, bool) {
	for key := range c.state.Data {
		rec, ok := c.record(key)
		if ok && rec.Kind == "space" && rec.ID == spaceID {
			return rec, true
		}
	}
	return mockRecord{}, false
}
