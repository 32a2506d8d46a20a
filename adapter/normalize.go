package adapter

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"

	"github.com/skosovsky/chatbridge"
)

// rawJSONer is implemented by SDK response types that keep their wire bytes
// (openai-go and anthropic-sdk-go).
type rawJSONer interface {
	RawJSON() string
}

// textKeys are probed, in order, when reducing an arbitrary JSON value to text.
// They cover OpenAI messages and deltas, Anthropic content blocks and deltas,
// Gemini candidates and Ollama chat and generate responses.
var textKeys = []string{"content", "text", "delta", "parts", "candidates.0.content", "response", "message"}

// firstChoiceTextPaths are tried on choices[0] before any generic fallback.
var firstChoiceTextPaths = []string{"message.content", "delta.content", "text"}

// NormalizeText reduces a raw backend response or chunk to its text.
// Extraction order, first non-empty wins:
//
//  1. choices[0] message (or delta) content, when the shape has a choices list;
//  2. the textual representation of the message;
//  3. the textual representation of the whole object;
//  4. "".
//
// Only the first choice is considered. Plain strings that are not JSON objects are
// returned as-is.
func NormalizeText(raw any) string {
	doc, text, isText := document(raw)
	if isText {
		return text
	}
	first := firstChoice(doc)
	if first.Exists() {
		for _, path := range firstChoiceTextPaths {
			if c := first.Get(path); c.Type == gjson.String && c.Str != "" {
				return c.Str
			}
		}
	}
	if t := textOf(messageOf(doc, first)); t != "" {
		return t
	}
	return textOf(doc)
}

// NormalizeResponse wraps the normalized text of raw in an assistant ChatResponse.
func NormalizeResponse(raw any) *chatbridge.ChatResponse {
	return &chatbridge.ChatResponse{
		Message: chatbridge.NewMessage(chatbridge.RoleAssistant, NormalizeText(raw)),
		Raw:     raw,
	}
}

// NormalizeUpdate converts one raw chunk into one update. The role is read from the
// chunk when present and defaults to assistant.
func NormalizeUpdate(raw any) chatbridge.ChatResponseUpdate {
	u := chatbridge.ChatResponseUpdate{
		Role:      chatbridge.RoleAssistant,
		TextDelta: NormalizeText(raw),
		Raw:       raw,
	}
	if doc, _, isText := document(raw); !isText {
		if r := messageOf(doc, firstChoice(doc)).Get("role"); r.Type == gjson.String {
			if role, err := chatbridge.ParseRole(r.Str); err == nil {
				u.Role = role
			}
		}
	}
	return u
}

// UsableResult reports whether data is a JSON value worth normalizing: non-empty,
// well-formed and not null.
func UsableResult(data []byte) bool {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !gjson.ValidBytes(trimmed) {
		return false
	}
	return gjson.ParseBytes(trimmed).Type != gjson.Null
}

// document turns raw into a JSON document, or into plain text when raw is a string
// that is not a JSON object or array.
func document(raw any) (doc gjson.Result, text string, isText bool) {
	switch v := raw.(type) {
	case nil:
		return gjson.Result{}, "", true
	case string:
		return fromBytes([]byte(v))
	case []byte:
		return fromBytes(v)
	case json.RawMessage:
		return fromBytes(v)
	case rawJSONer:
		if s := v.RawJSON(); s != "" {
			return fromBytes([]byte(s))
		}
	case fmt.Stringer:
		return gjson.Result{}, v.String(), true
	}
	b, err := json.Marshal(raw)
	if err != nil {
		return gjson.Result{}, "", true
	}
	return gjson.ParseBytes(b), "", false
}

func fromBytes(b []byte) (gjson.Result, string, bool) {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || !gjson.ValidBytes(trimmed) {
		return gjson.Result{}, string(b), true
	}
	doc := gjson.ParseBytes(trimmed)
	switch {
	case doc.IsObject(), doc.IsArray():
		return doc, "", false
	case doc.Type == gjson.String:
		return gjson.Result{}, doc.Str, true
	case doc.Type == gjson.Null:
		return gjson.Result{}, "", true
	default:
		return gjson.Result{}, string(b), true
	}
}

func firstChoice(doc gjson.Result) gjson.Result {
	choices := doc.Get("choices")
	if !choices.IsArray() {
		return gjson.Result{}
	}
	return choices.Get("0")
}

// messageOf returns the message of the first choice (or its delta), falling back to a
// top-level message.
func messageOf(doc, first gjson.Result) gjson.Result {
	if first.Exists() {
		if m := first.Get("message"); m.Exists() {
			return m
		}
		if d := first.Get("delta"); d.Exists() {
			return d
		}
	}
	return doc.Get("message")
}

// textOf returns the textual representation of v: a string as-is, an array as the
// concatenation of its elements, an object as the first non-empty text key.
func textOf(v gjson.Result) string {
	switch {
	case v.Type == gjson.String:
		return v.Str
	case v.IsArray():
		var out []byte
		for _, e := range v.Array() {
			out = append(out, textOf(e)...)
		}
		return string(out)
	case v.IsObject():
		for _, key := range textKeys {
			if t := textOf(v.Get(key)); t != "" {
				return t
			}
		}
	}
	return ""
}
