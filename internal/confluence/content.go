package confluence

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Space is a Confluence space as returned by the v2 API.
type Space struct {
	ID   string `json:"id"`
	Key  string `json:"key"`
	Name string `json:"name"`
}

// Page is the subset of v2 page fields the sandbox tooling needs.
type Page struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	ParentID string    `json:"parentId,omitempty"`
	Links    PageLinks `json:"_links"`
}

// PageLinks carries the page's web location; the path depth orders
// deletions child-first.
type PageLinks struct {
	WebUI string `json:"webui"`
}

// Comment is a footer comment on a page.
type Comment struct {
	ID string `json:"id"`
}

// NewPage describes a page to create.
type NewPage struct {
	SpaceID  string
	Title    string
	ParentID string

	// Body is the page content as an Atlassian document (ADF) value.
	Body any
}

type resultPage[T any] struct {
	Results []T `json:"results"`
	Links   struct {
		Next string `json:"next"`
	} `json:"_links"`
}

// GetSpace looks a space up by key. found is false when the key does
// not exist.
func (c *Client) GetSpace(ctx context.Context, key string) (Space, bool, error) {
	resp, err := c.get(ctx, "/wiki/api/v2/spaces", url.Values{"keys": {key}})
	if err != nil {
		return Space{}, false, err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return Space{}, false, apiError("get space", resp)
	}
	var out resultPage[Space]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Space{}, false, fmt.Errorf("decode space list: %w", err)
	}
	if len(out.Results) == 0 {
		return Space{}, false, nil
	}
	return out.Results[0], true, nil
}

// CreateSpace creates a space, or returns the existing one when the key
// is already taken.
func (c *Client) CreateSpace(ctx context.Context, key, name, description string) (Space, error) {
	payload := map[string]any{
		"key":  key,
		"name": name,
		"description": map[string]any{
			"plain": map[string]any{
				"value":          description,
				"representation": "plain",
			},
		},
	}
	resp, err := c.post(ctx, "/wiki/api/v2/spaces", payload)
	if err != nil {
		return Space{}, err
	}
	defer drain(resp)
	switch resp.StatusCode {
	case http.StatusOK:
		var sp Space
		if err := json.NewDecoder(resp.Body).Decode(&sp); err != nil {
			return Space{}, fmt.Errorf("decode space: %w", err)
		}
		return sp, nil
	case http.StatusConflict:
		sp, found, err := c.GetSpace(ctx, key)
		if err != nil {
			return Space{}, err
		}
		if !found {
			return Space{}, fmt.Errorf("create space: key %s conflicts but cannot be fetched", key)
		}
		return sp, nil
	default:
		return Space{}, apiError("create space", resp)
	}
}

// CreatePage creates a page with ADF content.
func (c *Client) CreatePage(ctx context.Context, p NewPage) (Page, error) {
	adf, err := json.Marshal(p.Body)
	if err != nil {
		return Page{}, fmt.Errorf("marshal page body: %w", err)
	}
	payload := map[string]any{
		"spaceId": p.SpaceID,
		"status":  "current",
		"title":   p.Title,
		"body": map[string]any{
			"representation": "atlas_doc_format",
			"value":          string(adf),
		},
	}
	if p.ParentID != "" {
		payload["parentId"] = p.ParentID
	}
	resp, err := c.post(ctx, "/wiki/api/v2/pages", payload)
	if err != nil {
		return Page{}, err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return Page{}, apiError(fmt.Sprintf("create page %q", p.Title), resp)
	}
	var page Page
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return Page{}, fmt.Errorf("decode page: %w", err)
	}
	return page, nil
}

// AddLabel attaches a label to a page. A 400 response means the label
// is already present and is not an error.
func (c *Client) AddLabel(ctx context.Context, pageID, label string) error {
	resp, err := c.post(ctx, "/wiki/api/v2/pages/"+pageID+"/labels", map[string]string{"name": label})
	if err != nil {
		return err
	}
	defer drain(resp)
	switch resp.StatusCode {
	case http.StatusOK, http.StatusBadRequest:
		return nil
	default:
		return apiError(fmt.Sprintf("add label %q", label), resp)
	}
}

// PageLabels returns the label names on a page.
func (c *Client) PageLabels(ctx context.Context, pageID string) ([]string, error) {
	resp, err := c.get(ctx, "/wiki/api/v2/pages/"+pageID+"/labels", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("get labels", resp)
	}
	var out resultPage[struct {
		Name string `json:"name"`
	}]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode labels: %w", err)
	}
	names := make([]string, 0, len(out.Results))
	for _, l := range out.Results {
		names = append(names, l.Name)
	}
	return names, nil
}

// ListPages returns every page in a space, following pagination links.
func (c *Client) ListPages(ctx context.Context, spaceID string) ([]Page, error) {
	endpoint := "/wiki/api/v2/spaces/" + spaceID + "/pages"
	params := url.Values{"limit": {"100"}}

	var pages []Page
	for endpoint != "" {
		resp, err := c.get(ctx, endpoint, params)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			err := apiError("list pages", resp)
			drain(resp)
			return nil, err
		}
		var out resultPage[Page]
		err = json.NewDecoder(resp.Body).Decode(&out)
		drain(resp)
		if err != nil {
			return nil, fmt.Errorf("decode page list: %w", err)
		}
		pages = append(pages, out.Results...)

		// The next link is a site-relative URL with the cursor baked in.
		endpoint = out.Links.Next
		params = nil
	}
	return pages, nil
}

// DeletePage removes a page.
func (c *Client) DeletePage(ctx context.Context, pageID string) error {
	resp, err := c.delete(ctx, "/wiki/api/v2/pages/"+pageID)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return apiError("delete page", resp)
	}
	return nil
}

// FooterComments lists the footer comments on a page.
func (c *Client) FooterComments(ctx context.Context, pageID string) ([]Comment, error) {
	resp, err := c.get(ctx, "/wiki/api/v2/pages/"+pageID+"/footer-comments", nil)
	if err != nil {
		return nil, err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return nil, apiError("get footer comments", resp)
	}
	var out resultPage[Comment]
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode comments: %w", err)
	}
	return out.Results, nil
}

// DeleteFooterComment removes one footer comment.
func (c *Client) DeleteFooterComment(ctx context.Context, commentID string) error {
	resp, err := c.delete(ctx, "/wiki/api/v2/footer-comments/"+commentID)
	if err != nil {
		return err
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return apiError("delete footer comment", resp)
	}
	return nil
}
