// Package extract recovers structured JSON from free-text model responses.
//
// The extractors are heuristics: they cut from the first opening bracket to
// the last closing one and do not track nesting depth, so a response with
// several independent objects, or unbalanced braces inside string values,
// is mis-extracted and fails to decode downstream.
package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	jsonFence  = "```json"
	thinkOpen  = "<think>"
	thinkClose = "</think>"
)

var (
	ErrNoJSONObject = errors.New("no JSON object in response")
	ErrNoJSONArray  = errors.New("no JSON array in response")
)

// SplitThinking separates a <think>...</think> preamble from the answer.
// The answer starts after the last closing tag. Without a closing tag the
// whole response is the answer.
func SplitThinking(response string) (thinking string, content string) {
	end := strings.LastIndex(response, thinkClose)
	if end < 0 {
		return "", response
	}
	content = response[end+len(thinkClose):]
	if start := strings.Index(response, thinkOpen); start >= 0 && start < end {
		thinking = response[start+len(thinkOpen) : end]
	}
	return thinking, content
}

// JSONText returns the span from the first '{' to the last '}', after
// dropping anything before a ```json fence. When no such span exists the
// text is returned unchanged.
func JSONText(response string) string {
	return bracketSpan(response, '{', '}')
}

// JSONArrayText is JSONText for responses whose payload is a top-level array.
func JSONArrayText(response string) string {
	return bracketSpan(response, '[', ']')
}

// IsArrayPayload reports whether the response's payload is a top-level
// array, that is a '[' comes before any '{'.
func IsArrayPayload(response string) bool {
	content := afterFence(response)
	l := strings.IndexByte(content, '[')
	if l < 0 {
		return false
	}
	brace := strings.IndexByte(content, '{')
	return brace < 0 || l < brace
}

func afterFence(response string) string {
	if pos := strings.Index(response, jsonFence); pos >= 0 {
		return response[pos:]
	}
	return response
}

func bracketSpan(response string, open, close byte) string {
	content := afterFence(response)
	l := strings.IndexByte(content, open)
	r := strings.LastIndexByte(content, close)
	if l >= 0 && l < r {
		return content[l : r+1]
	}
	return content
}

// Object decodes text as a JSON object.
func Object(text string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoJSONObject, err)
	}
	if obj == nil {
		return nil, ErrNoJSONObject
	}
	return obj, nil
}

// Array decodes text as a JSON array.
func Array(text string) ([]any, error) {
	var arr []any
	if err := json.Unmarshal([]byte(text), &arr); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNoJSONArray, err)
	}
	if arr == nil {
		return nil, ErrNoJSONArray
	}
	return arr, nil
}
