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

package test

import (
	"fmt"
	"strings"
)

// MP4Header is the start of an ISO base media file, enough for content
// sniffing to classify the payload as video/mp4.
func MP4Header() []byte {
	return []byte{
		0x00, 0x00, 0x00, 0x20, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm',
		0x00, 0x00, 0x02, 0x00, 'i', 's', 'o', 'm', 'i', 's', 'o', '2',
		'a', 'v', 'c', '1', 'm', 'p', '4', '1', 0x00, 0x00, 0x00, 0x08,
		'f', 'r', 'e', 'e',
	}
}

// HTMLPage is what a watch page URL returns instead of media.
func HTMLPage() []byte {
	return []byte("<!DOCTYPE html><html><head><title>watch</title></head><body></body></html>")
}

// GetFeedSearchPayload is a feed-shaped search answer. Every item of
// mediaBases becomes one video; an empty base yields a video without play
// and wmplay URLs.
func GetFeedSearchPayload(mediaBases ...string) string {
	items := make([]string, 0, len(mediaBases))
	for i, base := range mediaBases {
		play := ""
		if base != "" {
			play = fmt.Sprintf("%s/media/v%d.mp4", base, i+1)
		}
		items = append(items, fmt.Sprintf(`{
      "video_id": "73%02d",
      "title": "Healthy bowl idea number %d #mealprep",
      "play": %q,
      "wmplay": "",
      "duration": 21,
      "digg_count": %d,
      "comment_count": 12,
      "share_count": 4,
      "play_count": %d,
      "create_time": 1718000000,
      "music_info": {"title": "original sound"},
      "author": {"unique_id": "chef_%d"}
    }`, i+1, i+1, play, 1000+i, 50000+i, i+1))
	}
	return fmt.Sprintf(`{"code": 0, "msg": "success", "data": {"videos": [%s]}}`, strings.Join(items, ","))
}

// GetTrendingSearchPayload is a trending-shaped search answer.
func GetTrendingSearchPayload() string {
	return `{
  "data": {
    "stats": [
      {
        "videoId": "9001",
        "authorName": "fitfoodie",
        "description": "3 lunches under 10 dollars",
        "videoUrl": "https://www.tiktok.com/@fitfoodie/video/9001",
        "likes": 2100,
        "comments": 87,
        "shares": 40,
        "views": 120000,
        "duration": 34,
        "musicName": "lofi beat",
        "createTime": 1718100000
      }
    ]
  }
}`
}

// GetQueriesAnswer is a text model answer listing n search terms in a fenced
// JSON block.
func GetQueriesAnswer(n int) string {
	terms := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		terms = append(terms, fmt.Sprintf("%q", fmt.Sprintf("healthy meal prep %d", i)))
	}
	return "```json\n[" + strings.Join(terms, ", ") + "]\n```"
}

// GetAnalysisAnswer is a multimodal answer with prose around the JSON.
func GetAnalysisAnswer(style string) string {
	return fmt.Sprintf(`Here is the breakdown you asked for:
{
  "summary": "A creator assembles a bowl in twenty seconds.",
  "hooks": ["Calorie count in the first frame"],
  "callsToAction": ["Follow for more"],
  "contentStyle": %q,
  "successFactors": ["Fast cuts", "Trending audio"],
  "transcript": "Under five hundred calories, let's go."
}
Let me know if you need more.`, style)
}

// GetStrategyAnswer is a heading-delimited strategy document.
func GetStrategyAnswer() string {
	return `## Observations
Short recipe clips with on-screen calorie counts dominate the niche.

## Key Takeaways
Lead with the price or calorie number.

## Sample Script
Hook: "Lunch for under five dollars?" Then show three ingredients.

## Technical Specs
Vertical 9:16, 15 to 30 seconds, captions burned in.

## Content Themes
- Budget bowls
- Five ingredient lunches
- Prep once, eat all week

## Hashtag Strategy
#mealprep #healthylunch plus one local tag.

## Posting Frequency
Four times a week, late morning.`
}

// GetWorkflowRequestMessage is a Pub/Sub payload that starts a run.
func GetWorkflowRequestMessage() string {
	return `{
  "businessDescription": "A meal prep delivery service for busy professionals in Austin",
  "ownerId": "auth0|owner-1",
  "videosPerQuery": 2
}`
}
