package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"strings"

	"github.com/danshapiro/refinery/internal/confluence"
)

// DefaultPreserveLabel marks pages the cleaner must not delete.
const DefaultPreserveLabel = "demo"

// EnvPreserveLabel overrides the preserve label.
const EnvPreserveLabel = "DEMO_PRESERVE_LABEL"

// Cleaner removes user-created pages from the demo space while keeping
// every page carrying the preserve label. Comments on preserved pages
// are deleted so each run starts from clean seed content.
type Cleaner struct {
	Client        ContentClient
	SpaceKey      string
	PreserveLabel string
	SiteURL       string
	DryRun        bool
	Out           io.Writer
}

// CleanStats summarizes one cleanup pass.
type CleanStats struct {
	Found     int
	Preserved int
	Deleted   int
	Failed    int
}

// Clean lists every page in the space, preserves labeled pages, and
// deletes the rest deepest-first so parents are removed after their
// children. With DryRun set, nothing is deleted and the pass only
// reports what would happen.
func (c *Cleaner) Clean(ctx context.Context) (CleanStats, error) {
	out := c.out()
	label := c.PreserveLabel
	if label == "" {
		label = DefaultPreserveLabel
	}

	fmt.Fprintln(out, "Confluence Demo Sandbox Cleanup")
	fmt.Fprintln(out, strings.Repeat("=", 40))
	if c.SiteURL != "" {
		fmt.Fprintf(out, "Site: %s\n", c.SiteURL)
	}
	fmt.Fprintf(out, "Space: %s\n", c.SpaceKey)
	fmt.Fprintf(out, "Preserving pages with label: %s\n", label)

	space, found, err := c.Client.GetSpace(ctx, c.SpaceKey)
	if err != nil {
		return CleanStats{}, fmt.Errorf("look up space %s: %w", c.SpaceKey, err)
	}
	if !found {
		return CleanStats{}, fmt.Errorf("space %s not found", c.SpaceKey)
	}
	fmt.Fprintf(out, "\nSpace ID: %s\n", space.ID)

	pages, err := c.Client.ListPages(ctx, space.ID)
	if err != nil {
		return CleanStats{}, fmt.Errorf("list pages: %w", err)
	}
	fmt.Fprintf(out, "Found %d pages\n", len(pages))

	stats := CleanStats{Found: len(pages)}
	var doomed []confluence.Page
	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		labels, err := c.Client.PageLabels(ctx, page.ID)
		if err != nil {
			// Unverifiable pages are left alone rather than deleted.
			fmt.Fprintf(out, "  Warning: cannot read labels for %s, skipping: %v\n", page.Title, err)
			continue
		}
		if slices.Contains(labels, label) {
			stats.Preserved++
			fmt.Fprintf(out, "  Preserving: %s\n", page.Title)
			if !c.DryRun {
				c.deleteComments(ctx, page)
			}
		} else {
			doomed = append(doomed, page)
		}
	}

	fmt.Fprintf(out, "\nPages to preserve: %d\n", stats.Preserved)
	fmt.Fprintf(out, "Pages to delete: %d\n", len(doomed))

	// Deeper pages first; more path segments in the webui link means deeper.
	sort.SliceStable(doomed, func(i, j int) bool {
		return strings.Count(doomed[i].Links.WebUI, "/") > strings.Count(doomed[j].Links.WebUI, "/")
	})

	for _, page := range doomed {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if c.DryRun {
			fmt.Fprintf(out, "  Would delete: %s (ID: %s)\n", page.Title, page.ID)
			continue
		}
		fmt.Fprintf(out, "  Deleting: %s (ID: %s)\n", page.Title, page.ID)
		if err := c.Client.DeletePage(ctx, page.ID); err != nil {
			stats.Failed++
			fmt.Fprintf(out, "    Failed to delete %s: %v\n", page.Title, err)
			continue
		}
		stats.Deleted++
	}

	if c.DryRun {
		fmt.Fprintln(out, "\nDry run complete!")
		fmt.Fprintf(out, "  Would delete: %d pages\n", len(doomed))
	} else {
		fmt.Fprintln(out, "\nCleanup complete!")
		fmt.Fprintf(out, "  Deleted: %d pages\n", stats.Deleted)
	}
	fmt.Fprintf(out, "  Preserved: %d pages\n", stats.Preserved)
	return stats, nil
}

// deleteComments removes footer comments from a preserved page. Failures
// are tolerated; comments are best-effort hygiene, not state.
func (c *Cleaner) deleteComments(ctx context.Context, page confluence.Page) {
	comments, err := c.Client.FooterComments(ctx, page.ID)
	if err != nil {
		return
	}
	for _, cm := range comments {
		if err := c.Client.DeleteFooterComment(ctx, cm.ID); err != nil {
			continue
		}
		fmt.Fprintf(c.out(), "    Deleted comment: %s\n", cm.ID)
	}
}

func (c *Cleaner) out() io.Writer {
	if c.Out != nil {
		return c.Out
	}
	return os.Stdout
}
