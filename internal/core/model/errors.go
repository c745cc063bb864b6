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

import "errors"

// Error taxonomy. Callers wrap these with fmt.Errorf("...: %w", ...) and test
// for them with errors.Is.
var (
	// ErrUpstreamUnavailable covers network failures and non-2xx answers from
	// the search, storage and model providers. Scope: one item.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrMalformedResponse means a provider answered but the payload did not
	// contain what we asked for. Scope: one item.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrMissingReference is returned when an owner could neither be found
	// nor created as a placeholder.
	ErrMissingReference = errors.New("missing reference")

	// ErrEmptyBatch stops a run when a stage has nothing to hand downstream.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrNoRowReturned is a failed insert read-back.
	ErrNoRowReturned = errors.New("no row returned after insert")
)
