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
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/jaycherian/gcp-go-trend-strategist/internal/core/model"
)

// objectSpan is greedy across newlines: first "{" to last "}".
var objectSpan = regexp.MustCompile(`(?s)\{.*\}`)

// FindObject returns the first "{...}" span of text.
func FindObject(text string) (string, bool) {
	span := objectSpan.FindString(text)
	return span, span != ""
}

// DecodeObject decodes the JSON object carried by text into out. The whole
// text is tried first, then the greedy object span. Failure is reported as
// model.ErrMalformedResponse.
func DecodeObject(text string, out interface{}) error {
	cleaned := StripFences(text)
	if err := json.Unmarshal([]byte(cleaned), out); err == nil {
		return nil
	}
	span, ok := FindObject(cleaned)
	if !ok {
		return fmt.Errorf("%w: no JSON object in model output", model.ErrMalformedResponse)
	}
	if err := json.Unmarshal([]byte(span), out); err != nil {
		return fmt.Errorf("%w: %v", model.ErrMalformedResponse, err)
	}
	return nil
}
