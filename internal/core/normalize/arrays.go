// Copyright 2024 Google, LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package normalize turns free-form model text into structured values. Every
// extractor is a pure function over the text; the exported entry points run
// them in a fixed order and the first one that succeeds wins. Array extraction
// never fails: when nothing usable is found it degrades to a single default
// value and says so in the result.
package normalize

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
)

// ArrayStrategy tries to pull at least n strings out of text.
type ArrayStrategy func(text string, n int) ([]string, bool)

// NamedArrayStrategy pairs a strategy with the name reported in ArrayResult.
type NamedArrayStrategy struct {
	Name    string
	Extract ArrayStrategy
}

// Strategy names, in cascade order.
const (
	StrategyDirect   = "direct"
	StrategyBracket  = "bracket"
	StrategyQuoted   = "quoted"
	StrategyLines    = "lines"
	StrategyFallback = "fallback"
)

// DefaultArrayStrategies is the cascade used by ExtractStringArray.
var DefaultArrayStrategies = []NamedArrayStrategy{
	{Name: StrategyDirect, Extract: DirectArray},
	{Name: StrategyBracket, Extract: BracketArray},
	{Name: StrategyQuoted, Extract: QuotedLiterals},
	{Name: StrategyLines, Extract: ListLines},
}

// ArrayResult is the outcome of ExtractStringArray.
type ArrayResult struct {
	Items    []string
	Strategy string
}

// Fallback reports whether the synthetic default was used.
func (r *ArrayResult) Fallback() bool {
	return r.Strategy == StrategyFallback
}

var (
	fencePattern   = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
	bracketLazy    = regexp.MustCompile(`(?s)\[.*?\]`)
	bracketGreedy  = regexp.MustCompile(`(?s)\[.*\]`)
	quotedPattern  = regexp.MustCompile(`"((?:[^"\\\n]|\\.)*)"`)
	listMarker     = regexp.MustCompile(`^(?:[-*•+]+|\(?\d+[.):]|[a-zA-Z][.)])\s+`)
	numberedMarker = regexp.MustCompile(`^\d+[.):]\s*`)
)

// ExtractStringArray returns exactly n strings from text using the default
// cascade, or a single fallback item when no strategy finds n candidates.
func ExtractStringArray(text string, n int, fallback string) *ArrayResult {
	return ExtractStringArrayWith(DefaultArrayStrategies, text, n, fallback)
}

// ExtractStringArrayWith runs a custom cascade.
func ExtractStringArrayWith(strategies []NamedArrayStrategy, text string, n int, fallback string) *ArrayResult {
	if n > 0 {
		for _, s := range strategies {
			if items, ok := s.Extract(text, n); ok {
				return &ArrayResult{Items: items, Strategy: s.Name}
			}
		}
	}
	return &ArrayResult{Items: []string{fallback}, Strategy: StrategyFallback}
}

// StripFences removes a surrounding markdown code fence, if any.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(trimmed); m != nil {
		return strings.TrimSpace(m[1])
	}
	return trimmed
}

// DirectArray parses the whole text as a JSON array of strings.
func DirectArray(text string, n int) ([]string, bool) {
	return parseArray(StripFences(text), n)
}

// BracketArray parses the first bracket-delimited literal that holds at least
// n strings. The lazy match is tried before the greedy one so that prose with
// several small arrays still resolves to the first.
func BracketArray(text string, n int) ([]string, bool) {
	for _, candidate := range bracketLazy.FindAllString(text, -1) {
		if items, ok := parseArray(candidate, n); ok {
			return items, true
		}
	}
	if candidate := bracketGreedy.FindString(text); candidate != "" {
		return parseArray(candidate, n)
	}
	return nil, false
}

// QuotedLiterals takes the first n double-quoted strings in document order.
func QuotedLiterals(text string, n int) ([]string, bool) {
	out := make([]string, 0, n)
	for _, m := range quotedPattern.FindAllStringSubmatch(text, -1) {
		value, err := strconv.Unquote(`"` + m[1] + `"`)
		if err != nil {
			value = m[1]
		}
		if value = strings.TrimSpace(value); value == "" {
			continue
		}
		out = append(out, value)
		if len(out) == n {
			return out, true
		}
	}
	return nil, false
}

// ListLines splits text into lines, strips list markers and quotes, drops
// lines that mention json or carry array brackets, and takes the first n.
// When enough lines carry list markers, unmarked lines (usually a preamble
// such as "Here are five ideas:") are ignored.
func ListLines(text string, n int) ([]string, bool) {
	marked := make([]string, 0)
	all := make([]string, 0)
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" || strings.HasPrefix(line, "```") {
			continue
		}
		lower := strings.ToLower(line)
		if strings.Contains(lower, "json") || strings.ContainsAny(line, "[]") {
			continue
		}
		isMarked := listMarker.MatchString(line) || numberedMarker.MatchString(line)
		line = listMarker.ReplaceAllString(line, "")
		line = numberedMarker.ReplaceAllString(line, "")
		line = cleanItem(line)
		if line == "" {
			continue
		}
		if isMarked {
			marked = append(marked, line)
		}
		all = append(all, line)
	}
	if len(marked) >= n {
		return marked[:n], true
	}
	if len(all) >= n {
		return all[:n], true
	}
	return nil, false
}

// ListItems splits a section body into items. Bulleted or numbered bodies
// yield one item per line; a single comma separated line is split on commas.
func ListItems(body string) []string {
	out := make([]string, 0)
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) == 1 && !listMarker.MatchString(strings.TrimSpace(lines[0])) && strings.Contains(lines[0], ",") {
		for _, part := range strings.Split(lines[0], ",") {
			if item := cleanItem(part); item != "" {
				out = append(out, item)
			}
		}
		return out
	}
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		line = listMarker.ReplaceAllString(line, "")
		line = numberedMarker.ReplaceAllString(line, "")
		if item := cleanItem(line); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func cleanItem(in string) string {
	out := strings.TrimSpace(in)
	out = strings.TrimSuffix(out, ",")
	out = strings.Trim(out, "\"'`*_ ")
	return strings.TrimSpace(out)
}

func parseArray(text string, n int) ([]string, bool) {
	var raw []interface{}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		switch t := v.(type) {
		case string:
			if s := strings.TrimSpace(t); s != "" {
				out = append(out, s)
			}
		case float64, bool:
			out = append(out, strings.TrimSpace(strings.Trim(mustJSON(t), `"`)))
		}
	}
	if len(out) < n {
		return nil, false
	}
	return out[:n], true
}

func mustJSON(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}
