package sandbox

import (
	"encoding/json"
	"testing"
)

func docContent(t *testing.T, doc map[string]any) []any {
	t.Helper()
	if doc["type"] != "doc" {
		t.Fatalf("doc type: got %v", doc["type"])
	}
	if doc["version"] != 1 {
		t.Fatalf("doc version: got %v", doc["version"])
	}
	content, ok := doc["content"].([]any)
	if !ok {
		t.Fatalf("content: got %T", doc["content"])
	}
	return content
}

func nodeText(t *testing.T, node any) string {
	t.Helper()
	m, ok := node.(map[string]any)
	if !ok {
		t.Fatalf("node: got %T", node)
	}
	inner, ok := m["content"].([]any)
	if !ok || len(inner) == 0 {
		t.Fatalf("node content: got %v", m["content"])
	}
	text, ok := inner[0].(map[string]any)
	if !ok || text["type"] != "text" {
		t.Fatalf("text node: got %v", inner[0])
	}
	return text["text"].(string)
}

func TestMarkdownToADF_Headings(t *testing.T) {
	doc := MarkdownToADF("# Title\n\n## Subsection\n\nBody text here.")
	content := docContent(t, doc)
	if len(content) != 3 {
		t.Fatalf("nodes: got %d want 3", len(content))
	}

	h1 := content[0].(map[string]any)
	if h1["type"] != "heading" {
		t.Fatalf("first node: got %v", h1["type"])
	}
	if attrs := h1["attrs"].(map[string]any); attrs["level"] != 1 {
		t.Fatalf("h1 level: got %v", attrs["level"])
	}
	if got := nodeText(t, h1); got != "Title" {
		t.Fatalf("h1 text: got %q", got)
	}

	h2 := content[1].(map[string]any)
	if attrs := h2["attrs"].(map[string]any); attrs["level"] != 2 {
		t.Fatalf("h2 level: got %v", attrs["level"])
	}
	if got := nodeText(t, h2); got != "Subsection" {
		t.Fatalf("h2 text: got %q", got)
	}

	para := content[2].(map[string]any)
	if para["type"] != "paragraph" {
		t.Fatalf("third node: got %v", para["type"])
	}
	if got := nodeText(t, para); got != "Body text here." {
		t.Fatalf("paragraph text: got %q", got)
	}
}

func TestMarkdownToADF_CodeBlock(t *testing.T) {
	doc := MarkdownToADF("```bash\nnpm install our-product\n```")
	content := docContent(t, doc)
	if len(content) != 1 {
		t.Fatalf("nodes: got %d want 1", len(content))
	}
	block := content[0].(map[string]any)
	if block["type"] != "codeBlock" {
		t.Fatalf("node type: got %v", block["type"])
	}
	if attrs := block["attrs"].(map[string]any); attrs["language"] != "bash" {
		t.Fatalf("language: got %v", attrs["language"])
	}
	if got := nodeText(t, block); got != "npm install our-product" {
		t.Fatalf("code: got %q", got)
	}
}

func TestMarkdownToADF_EmptyFence(t *testing.T) {
	doc := MarkdownToADF("```\n```")
	content := docContent(t, doc)
	if got := nodeText(t, content[0]); got != "" {
		t.Fatalf("code: got %q want empty", got)
	}
}

func TestMarkdownToADF_BulletList(t *testing.T) {
	doc := MarkdownToADF("- Dark mode support\n- Improved search\n- New API endpoints")
	content := docContent(t, doc)
	list := content[0].(map[string]any)
	if list["type"] != "bulletList" {
		t.Fatalf("node type: got %v", list["type"])
	}
	items := list["content"].([]any)
	if len(items) != 3 {
		t.Fatalf("items: got %d want 3", len(items))
	}
	first := items[0].(map[string]any)
	if first["type"] != "listItem" {
		t.Fatalf("item type: got %v", first["type"])
	}
	para := first["content"].([]any)[0].(map[string]any)
	if para["type"] != "paragraph" {
		t.Fatalf("item child: got %v", para["type"])
	}
	if got := nodeText(t, para); got != "Dark mode support" {
		t.Fatalf("item text: got %q", got)
	}
}

func TestMarkdownToADF_NumberedLinesStayOneParagraph(t *testing.T) {
	doc := MarkdownToADF("1. Initialize the project\n2. Configure settings\n3. Run the application")
	content := docContent(t, doc)
	if len(content) != 1 {
		t.Fatalf("nodes: got %d want 1", len(content))
	}
	para := content[0].(map[string]any)
	if para["type"] != "paragraph" {
		t.Fatalf("node type: got %v", para["type"])
	}
	if got := nodeText(t, para); got != "1. Initialize the project\n2. Configure settings\n3. Run the application" {
		t.Fatalf("text: got %q", got)
	}
}

func TestMarkdownToADF_Empty(t *testing.T) {
	doc := MarkdownToADF("")
	content := docContent(t, doc)
	if len(content) != 1 {
		t.Fatalf("nodes: got %d want 1", len(content))
	}
	para := content[0].(map[string]any)
	if para["type"] != "paragraph" {
		t.Fatalf("fallback node: got %v", para["type"])
	}
	if inner := para["content"].([]any); len(inner) != 0 {
		t.Fatalf("fallback content: got %v", inner)
	}
}

func TestMarkdownToADF_Serializes(t *testing.T) {
	for _, root := range DemoPages() {
		pages := append([]DemoPage{root}, root.Children...)
		for _, p := range pages {
			if _, err := json.Marshal(MarkdownToADF(p.Body)); err != nil {
				t.Fatalf("marshal %s: %v", p.Title, err)
			}
		}
	}
}
