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

package services

// BigQuery SQL used by the analytics service. The %s verb is the fully
// qualified analyses table; values are passed as named query parameters.
const (
	// QryStyleHistory ranks an owner's content styles by how often they were
	// seen in analyzed videos, with their average view count.
	QryStyleHistory = "SELECT content_style, COUNT(*) AS videos, AVG(views) AS avg_views FROM `%s` " +
		"WHERE owner_id = @owner_id AND content_style != '' " +
		"GROUP BY content_style ORDER BY videos DESC, avg_views DESC LIMIT @limit"

	// QryRunAnalyses returns the analytics rows written for one run.
	QryRunAnalyses = "SELECT * FROM `%s` WHERE run_id = @run_id ORDER BY create_date"
)
