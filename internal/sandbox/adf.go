package sandbox

import "strings"

// MarkdownToADF converts a small markdown subset to an Atlassian document.
// Blocks are separated by blank lines; the leading token of each block
// selects the node type: "# " and "## " headings, "```" code fences,
// "- " bullet lists. Anything else becomes a plain paragraph.
func MarkdownToADF(markdown string) map[string]any {
	var content []any
	for _, block := range strings.Split(markdown, "\n\n") {
		switch {
		case strings.HasPrefix(block, "# "):
			content = append(content, heading(1, strings.TrimPrefix(block, "# ")))
		case strings.HasPrefix(block, "## "):
			content = append(content, heading(2, strings.TrimPrefix(block, "## ")))
		case strings.HasPrefix(block, "```"):
			content = append(content, codeBlock(fenceBody(block)))
		case strings.HasPrefix(block, "- "):
			content = append(content, bulletList(block))
		case strings.TrimSpace(block) != "":
			content = append(content, paragraph(block))
		}
	}
	if len(content) == 0 {
		content = []any{map[string]any{"type": "paragraph", "content": []any{}}}
	}
	return map[string]any{"type": "doc", "version": 1, "content": content}
}

// fenceBody strips the opening and closing fence lines.
func fenceBody(block string) string {
	lines := strings.Split(block, "\n")
	if len(lines) <= 2 {
		return ""
	}
	return strings.Join(lines[1:len(lines)-1], "\n")
}

func heading(level int, text string) map[string]any {
	return map[string]any{
		"type":    "heading",
		"attrs":   map[string]any{"level": level},
		"content": []any{textNode(text)},
	}
}

func codeBlock(code string) map[string]any {
	return map[string]any{
		"type":    "codeBlock",
		"attrs":   map[string]any{"language": "bash"},
		"content": []any{textNode(code)},
	}
}

func bulletList(block string) map[string]any {
	var items []any
	for _, line := range strings.Split(block, "\n") {
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		items = append(items, map[string]any{
			"type":    "listItem",
			"content": []any{paragraph(strings.TrimPrefix(line, "- "))},
		})
	}
	return map[string]any{"type": "bulletList", "content": items}
}

func paragraph(text string) map[string]any {
	return map[string]any{"type": "paragraph", "content": []any{textNode(text)}}
}

func textNode(text string) map[string]any {
	return map[string]any{"type": "text", "text": text}
}
