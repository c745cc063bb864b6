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

package model

// GetExampleAnalysis returns the analysis used as the output example in the
// video analysis prompt.
func GetExampleAnalysis() *VideoAnalysis {
	return &VideoAnalysis{
		Summary: "A creator plates a rainbow grain bowl in under 20 seconds, calling out the calorie count of each topping as it lands.",
		Hooks: []string{
			"Opens on the finished bowl with the text 'under 500 calories?'",
			"Fast cuts synced to the beat for every ingredient",
		},
		CallsToAction: []string{
			"Comment your favourite topping",
			"Follow for a new bowl every Monday",
		},
		ContentStyle: "fast-paced recipe tutorial",
		SuccessFactors: []string{
			"Clear value promise in the first second",
			"Trending audio",
			"Bright overhead lighting",
		},
		Transcript: "Under five hundred calories? Let's build it. Quinoa, roasted chickpeas, avocado...",
	}
}

// DefaultStrategyHeadings are the section labels the synthesis prompt asks for,
// in the order they are expected to appear.
var DefaultStrategyHeadings = []string{
	"Observations",
	"Key Takeaways",
	"Sample Script",
	"Technical Specs",
	"Content Themes",
	"Hashtag Strategy",
	"Posting Frequency",
}
