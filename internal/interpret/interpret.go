// Package interpret normalizes raw language-model output into exactly one
// action. It is deliberately lenient: small or uncooperative models rarely
// emit clean JSON, so every input degrades to a usable action rather than a
// parse error.
package interpret

import (
	"encoding/json"
	"regexp"
	"strings"
)

// ActionChat is the degenerate action used when the reply is conversational
// text or could not be interpreted as anything else.
const ActionChat = "chat"

// ActionClarify asks the user a question before acting.
const ActionClarify = "clarify"

// Action is the normalized interpretation of one model reply.
type Action struct {
	Action      string
	Parameters  map[string]any
	Explanation string
}

var (
	fencedJSONRe = regexp.MustCompile("(?si)```json\\s*(.*?)\\s*```")
	// Last-resort scan for a loose single-level object literal carrying an
	// "action" field.
	looseObjectRe = regexp.MustCompile(`\{[^{}]*"action"[^{}]*\}`)
)

// Parse extracts one Action from raw model output. It never fails: the
// fallback chain ends in a synthetic chat action whose explanation is the
// trimmed input.
func Parse(raw string) Action {
	// Stage 1: fenced ```json blocks, first actionable one wins.
	var blocks []map[string]any
	for _, match := range fencedJSONRe.FindAllStringSubmatch(raw, -1) {
		if obj := normalize(extractFirstJSON(match[1])); obj != nil {
			blocks = append(blocks, obj)
		}
	}
	for _, block := range blocks {
		if action, ok := toAction(block); ok {
			return action
		}
	}
	if len(blocks) > 0 {
		// Blocks parsed but none carried an action (e.g. the model emitted a
		// task plan instead). Degrade to chat with the full reply.
		return chatAction(raw)
	}

	// Stage 2: the whole reply as JSON.
	if obj := normalize(extractFirstJSON(raw)); obj != nil {
		if action, ok := toAction(obj); ok {
			return action
		}
		return chatAction(raw)
	}

	// Stage 3: loose object literal anywhere in the text.
	if match := looseObjectRe.FindString(raw); match != "" {
		var obj map[string]any
		if err := json.Unmarshal([]byte(match), &obj); err == nil {
			if action, ok := toAction(obj); ok {
				return action
			}
		}
	}

	return chatAction(raw)
}

// extractFirstJSON parses text as JSON with three attempts: strict,
// newline-delimited, then the first value ignoring trailing garbage.
func extractFirstJSON(text string) any {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err == nil {
		return v
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if err := json.Unmarshal([]byte(line), &v); err == nil {
			return v
		}
	}

	dec := json.NewDecoder(strings.NewReader(strings.TrimLeft(text, " \t\r\n")))
	if err := dec.Decode(&v); err == nil {
		return v
	}
	return nil
}

// normalize reduces a parsed JSON value to a single object: lists yield
// their first non-empty object member, objects pass through, everything
// else is discarded.
func normalize(v any) map[string]any {
	switch obj := v.(type) {
	case []any:
		for _, item := range obj {
			if m, ok := item.(map[string]any); ok && len(m) > 0 {
				return m
			}
		}
		return nil
	case map[string]any:
		return obj
	default:
		return nil
	}
}

// toAction converts an object into an Action when it carries a usable
// "action" field.
func toAction(obj map[string]any) (Action, bool) {
	name, ok := obj["action"].(string)
	if !ok || name == "" {
		return Action{}, false
	}

	params, _ := obj["parameters"].(map[string]any)
	if params == nil {
		params = map[string]any{}
	}
	explanation, _ := obj["explanation"].(string)

	return Action{Action: name, Parameters: params, Explanation: explanation}, true
}

func chatAction(raw string) Action {
	return Action{
		Action:      ActionChat,
		Parameters:  map[string]any{},
		Explanation: strings.TrimSpace(raw),
	}
}
