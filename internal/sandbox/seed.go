// Package sandbox seeds and cleans the demo wiki space that scenario
// runs exercise. Seeding builds a small labeled page tree under the demo
// space; cleanup removes whatever a run created on top of it while
// preserving the labeled seed pages. Both tools speak to the wiki through
// the ContentClient interface, so they run against the real REST API or
// against the persistent mock backend interchangeably.
package sandbox

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/danshapiro/refinery/internal/confluence"
)

// DefaultSpaceName names the demo space when DEMO_SPACE_NAME is unset.
const DefaultSpaceName = "Confluence Demo Space"

// EnvSpaceName overrides the demo space display name.
const EnvSpaceName = "DEMO_SPACE_NAME"

const spaceDescription = "Demo space for Confluence Assistant Skills"

// ContentClient is the wiki surface the sandbox tools need.
// *confluence.Client implements it against the real API and *MockClient
// against the persistent mock state.
type ContentClient interface {
	GetSpace(ctx context.Context, key string) (confluence.Space, bool, error)
	CreateSpace(ctx context.Context, key, name, description string) (confluence.Space, error)
	CreatePage(ctx context.Context, p confluence.NewPage) (confluence.Page, error)
	AddLabel(ctx context.Context, pageID, label string) error
	PageLabels(ctx context.Context, pageID string) ([]string, error)
	ListPages(ctx context.Context, spaceID string) ([]confluence.Page, error)
	DeletePage(ctx context.Context, pageID string) error
	FooterComments(ctx context.Context, pageID string) ([]confluence.Comment, error)
	DeleteFooterComment(ctx context.Context, commentID string) error
}

var _ ContentClient = (*confluence.Client)(nil)

// DemoPage is one node of the built-in demo content tree.
type DemoPage struct {
	Title    string
	Labels   []string
	Body     string
	Children []DemoPage
}

// DemoPages returns the built-in demo content: two labeled root pages,
// each with three children. Bodies are markdown; the seeder converts
// them to ADF on create.
func DemoPages() []DemoPage {
	return []DemoPage{
		{
			Title:  "Product Documentation",
			Labels: []string{"demo", "docs", "root"},
			Body: "# Product Documentation\n\n" +
				"Welcome to our product documentation. This space contains all technical and user documentation.",
			Children: []DemoPage{
				{
					Title:  "API Reference",
					Labels: []string{"demo", "api", "technical"},
					Body: "# API Reference\n\n" +
						"## Overview\n\n" +
						"This document describes our REST API endpoints.\n\n" +
						"## Authentication\n\n" +
						"All API requests require Bearer token authentication.\n\n" +
						"## Endpoints\n\n" +
						"- `GET /api/v1/users` - List users\n" +
						"- `POST /api/v1/users` - Create user\n" +
						"- `GET /api/v1/products` - List products",
				},
				{
					Title:  "Getting Started Guide",
					Labels: []string{"demo", "guide", "onboarding"},
					Body: "# Getting Started\n\n" +
						"## Prerequisites\n\n" +
						"- Node.js 18+\n" +
						"- npm or yarn\n\n" +
						"## Installation\n\n" +
						"```bash\nnpm install our-product\n```\n\n" +
						"## Quick Start\n\n" +
						"1. Initialize the project\n" +
						"2. Configure settings\n" +
						"3. Run the application",
				},
				{
					Title:  "Release Notes v2.0",
					Labels: []string{"demo", "release", "v2"},
					Body: "# Release Notes v2.0\n\n" +
						"## New Features\n\n" +
						"- Dark mode support\n" +
						"- Improved search\n" +
						"- New API endpoints\n\n" +
						"## Bug Fixes\n\n" +
						"- Fixed login issues\n" +
						"- Resolved performance problems\n\n" +
						"## Breaking Changes\n\n" +
						"- Removed deprecated endpoints",
				},
			},
		},
		{
			Title:  "Team Resources",
			Labels: []string{"demo", "team", "root"},
			Body: "# Team Resources\n\n" +
				"Central hub for team documentation, meeting notes, and planning.",
			Children: []DemoPage{
				{
					Title:  "Meeting Notes Template",
					Labels: []string{"demo", "template", "meetings"},
					Body: "# Meeting Notes\n\n" +
						"**Date:** [Date]\n**Attendees:** [List]\n\n" +
						"## Agenda\n\n" +
						"1. Item 1\n2. Item 2\n\n" +
						"## Discussion\n\n" +
						"[Notes here]\n\n" +
						"## Action Items\n\n" +
						"- [ ] Task 1 - Owner\n- [ ] Task 2 - Owner",
				},
				{
					Title:  "Q1 Planning",
					Labels: []string{"demo", "planning", "q1"},
					Body: "# Q1 Planning\n\n" +
						"## Goals\n\n" +
						"1. Launch new feature\n2. Improve performance by 20%\n3. Reduce support tickets\n\n" +
						"## Timeline\n\n" +
						"- January: Design phase\n" +
						"- February: Development\n" +
						"- March: Testing and launch",
				},
				{
					Title:  "Architecture Diagram",
					Labels: []string{"demo", "architecture", "technical"},
					Body: "# System Architecture\n\n" +
						"## Overview\n\n" +
						"Our system uses a microservices architecture.\n\n" +
						"## Components\n\n" +
						"- **API Gateway**: Routes requests\n" +
						"- **Auth Service**: Handles authentication\n" +
						"- **Core Service**: Business logic\n" +
						"- **Database**: PostgreSQL",
				},
			},
		},
	}
}

// Seeder populates the demo space. Zero values fall back to the built-in
// demo tree, the default space name, and stdout.
type Seeder struct {
	Client    ContentClient
	SpaceKey  string
	SpaceName string
	SiteURL   string
	Pages     []DemoPage
	Out       io.Writer
}

// SeedStats counts page creations during one Seed pass.
type SeedStats struct {
	Created int
	Failed  int
}

// Seed ensures the demo space exists and creates the demo page tree in
// it. Individual page failures are reported and skipped (along with
// their children); only setup failures abort the pass.
func (s *Seeder) Seed(ctx context.Context) (SeedStats, error) {
	out := s.out()
	name := s.SpaceName
	if name == "" {
		name = DefaultSpaceName
	}

	fmt.Fprintln(out, "Confluence Demo Data Seeder")
	fmt.Fprintln(out, strings.Repeat("=", 40))
	if s.SiteURL != "" {
		fmt.Fprintf(out, "Site: %s\n", s.SiteURL)
	}
	fmt.Fprintf(out, "Space: %s (%s)\n", s.SpaceKey, name)

	space, found, err := s.Client.GetSpace(ctx, s.SpaceKey)
	if err != nil {
		return SeedStats{}, fmt.Errorf("look up space %s: %w", s.SpaceKey, err)
	}
	if found {
		fmt.Fprintf(out, "\nSpace %s already exists (ID: %s)\n", s.SpaceKey, space.ID)
	} else {
		space, err = s.Client.CreateSpace(ctx, s.SpaceKey, name, spaceDescription)
		if err != nil {
			return SeedStats{}, fmt.Errorf("create space %s: %w", s.SpaceKey, err)
		}
		fmt.Fprintf(out, "Created space: %s\n", s.SpaceKey)
	}

	fmt.Fprintln(out, "\nCreating demo content...")

	var stats SeedStats
	pages := s.Pages
	if pages == nil {
		pages = DemoPages()
	}
	for _, root := range pages {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		page, ok := s.createPage(ctx, &stats, space.ID, root, "")
		if !ok {
			continue
		}
		for _, child := range root.Children {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
			s.createPage(ctx, &stats, space.ID, child, page.ID)
		}
	}

	fmt.Fprintln(out, "\nDemo data seeding complete!")
	if s.SiteURL != "" {
		fmt.Fprintf(out, "Visit: %s/wiki/spaces/%s\n", s.SiteURL, s.SpaceKey)
	}
	return stats, nil
}

func (s *Seeder) createPage(ctx context.Context, stats *SeedStats, spaceID string, dp DemoPage, parentID string) (confluence.Page, bool) {
	out := s.out()
	page, err := s.Client.CreatePage(ctx, confluence.NewPage{
		SpaceID:  spaceID,
		Title:    dp.Title,
		ParentID: parentID,
		Body:     MarkdownToADF(dp.Body),
	})
	if err != nil {
		stats.Failed++
		fmt.Fprintf(out, "  Failed to create page %q: %v\n", dp.Title, err)
		return confluence.Page{}, false
	}
	stats.Created++
	fmt.Fprintf(out, "  Created page: %s (ID: %s)\n", dp.Title, page.ID)

	for _, label := range dp.Labels {
		if err := s.Client.AddLabel(ctx, page.ID, label); err != nil {
			fmt.Fprintf(out, "    Failed to add label %q: %v\n", label, err)
			continue
		}
		fmt.Fprintf(out, "    Added label: %s\n", label)
	}
	return page, true
}

func (s *Seeder) out() io.Writer {
	if s.Out != nil {
		return s.Out
	}
	return os.Stdout
}
