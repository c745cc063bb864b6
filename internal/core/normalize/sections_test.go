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

package normalize_test

import (
	"errors"
	"testing"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/normalize"
	"github.com/stretchr/testify/assert"
	zassert "github.com/zeebo/assert"
)

const sevenSections = `## Observations
Short recipe videos outperform long vlogs.

**Key Takeaways:**
Lead with the finished dish.

3. Sample Script
"Under 500 calories? Let's build it."

Technical Specs: 9:16 vertical, 15 to 30 seconds.

### CONTENT THEMES
- recipes
- myth busting

Hashtag Strategy
#healthyeating #mealprep

Posting Frequency:
4 times per week.`

func TestExtractSectionsAllSeven(t *testing.T) {
	s := normalize.ExtractSections(sevenSections, model.DefaultStrategyHeadings)

	assert.Equal(t, 7, s.Matched)
	assert.True(t, s.Structured())
	assert.Equal(t, "Short recipe videos outperform long vlogs.", s.Get("Observations"))
	assert.Equal(t, "Lead with the finished dish.", s.Get("Key Takeaways"))
	assert.Equal(t, `"Under 500 calories? Let's build it."`, s.Get("Sample Script"))
	assert.Equal(t, "9:16 vertical, 15 to 30 seconds.", s.Get("Technical Specs"))
	assert.Equal(t, "- recipes\n- myth busting", s.Get("Content Themes"))
	assert.Equal(t, "#healthyeating #mealprep", s.Get("Hashtag Strategy"))
	assert.Equal(t, "4 times per week.", s.Get("Posting Frequency"))
}

func TestExtractSectionsPartial(t *testing.T) {
	s := normalize.ExtractSections("Observations: a\nPosting Frequency: daily", model.DefaultStrategyHeadings)
	assert.Equal(t, 2, s.Matched)
	assert.Equal(t, "a", s.Get("Observations"))
	assert.Equal(t, "daily", s.Get("Posting Frequency"))
	assert.Equal(t, "", s.Get("Sample Script"))
}

func TestExtractSectionsNoHeadings(t *testing.T) {
	text := "Just post more bowls.\nPeople like bowls."
	s := normalize.ExtractSections(text, model.DefaultStrategyHeadings)
	zassert.Equal(t, 0, s.Matched)
	zassert.False(t, s.Structured())
	zassert.Equal(t, text, s.Get("Observations"))
}

func TestExtractSectionsIgnoresInlineMentions(t *testing.T) {
	// The heading word inside a sentence is not a heading.
	s := normalize.ExtractSections("Our observations suggest bowls win.", model.DefaultStrategyHeadings)
	zassert.Equal(t, 0, s.Matched)
}

func TestDecodeObject(t *testing.T) {
	var out model.VideoAnalysis
	text := "Here is the analysis:\n{\n  \"summary\": \"bowl video\",\n  \"hooks\": [\"{not a brace issue}\"]\n}\nThanks!"
	zassert.NoError(t, normalize.DecodeObject(text, &out))
	zassert.Equal(t, "bowl video", out.Summary)
	zassert.Equal(t, 1, len(out.Hooks))

	err := normalize.DecodeObject("no object at all", &out)
	zassert.True(t, errors.Is(err, model.ErrMalformedResponse))

	err = normalize.DecodeObject("{ broken", &out)
	zassert.True(t, errors.Is(err, model.ErrMalformedResponse))
}
