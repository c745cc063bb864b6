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

package normalize

import (
	"regexp"
	"sort"
	"strings"
)

// Sections is the result of heading-based extraction.
type Sections struct {
	Headings []string
	Bodies   map[string]string
	Matched  int
}

// Get returns the body of heading, or "".
func (s *Sections) Get(heading string) string {
	return s.Bodies[heading]
}

// Structured reports whether at least one heading was found.
func (s *Sections) Structured() bool {
	return s.Matched > 0
}

type headingMatch struct {
	heading string
	start   int
	end     int
}

// headingPattern matches a heading on its own line, optionally decorated with
// markdown hashes, numbering or bold markers, and followed by a colon or the
// end of the line.
func headingPattern(heading string) *regexp.Regexp {
	name := strings.Join(strings.Fields(regexp.QuoteMeta(heading)), `[ \t]+`)
	return regexp.MustCompile(`(?im)^[ \t]*(?:#{1,6}[ \t]*)?(?:\d+[.)][ \t]*)?(?:\*\*|__)?[ \t]*` +
		name +
		`[ \t]*(?:\*\*|__)?[ \t]*(?::[ \t]*(?:\*\*|__)?|$)`)
}

// ExtractSections splits text by the known headings. Each heading's body runs
// from the end of its first occurrence to the start of the next known heading
// or the end of text. Headings that are not found stay empty. When none is
// found the whole text becomes the body of the first heading.
func ExtractSections(text string, headings []string) *Sections {
	out := &Sections{Headings: headings, Bodies: make(map[string]string, len(headings))}
	matches := make([]headingMatch, 0, len(headings))
	for _, h := range headings {
		loc := headingPattern(h).FindStringIndex(text)
		if loc == nil {
			continue
		}
		matches = append(matches, headingMatch{heading: h, start: loc[0], end: loc[1]})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].start < matches[j].start })

	for i, m := range matches {
		stop := len(text)
		for _, next := range matches[i+1:] {
			if next.start >= m.end {
				stop = next.start
				break
			}
		}
		out.Bodies[m.heading] = strings.TrimSpace(text[m.end:stop])
	}
	out.Matched = len(matches)

	if out.Matched == 0 && len(headings) > 0 {
		out.Bodies[headings[0]] = strings.TrimSpace(text)
	}
	return out
}
