package fixer

import (
	"strings"

	"github.com/danshapiro/refinery/internal/jsonx"
)

// reply is the JSON envelope the editing agent prints with
// --output-format json: a session identifier plus either a result string
// or a list of typed content blocks.
type reply struct {
	SessionID string         `json:"session_id"`
	Result    any            `json:"result"`
	Content   []contentBlock `json:"content"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// parseReply extracts the continuation token and displayable text from
// the agent's raw output. Unparseable output keeps the prior token and
// returns the raw text unchanged; an empty session in a parsed reply
// also keeps the prior token so an established session is never lost.
func parseReply(raw, priorSession string) (sessionID, text string) {
	var r reply
	if !jsonx.ExtractInto(raw, &r) {
		return priorSession, raw
	}

	sessionID = r.SessionID
	if sessionID == "" {
		sessionID = priorSession
	}

	if s, ok := r.Result.(string); ok {
		return sessionID, s
	}
	if r.Content != nil {
		var parts []string
		for _, block := range r.Content {
			if block.Type == "text" {
				parts = append(parts, block.Text)
			}
		}
		return sessionID, strings.Join(parts, "\n")
	}
	return sessionID, raw
}
