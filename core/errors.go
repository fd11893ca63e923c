// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package core

import "errors"

// Error taxonomy shared by every stage and capability.
var (
	// ErrTransient indicates a retryable failure (network, timeout, rate limit).
	ErrTransient = errors.New("transient failure")

	// ErrPermanent indicates a failure that retrying cannot fix.
	ErrPermanent = errors.New("permanent failure")

	// ErrConflict indicates a compare-and-swap lost a race on a document status.
	ErrConflict = errors.New("status conflict")

	// ErrNotFound indicates a reference to a missing document, chunk or node.
	ErrNotFound = errors.New("not found")

	// ErrCancelled indicates the caller cancelled the operation.
	ErrCancelled = errors.New("cancelled")
)

// Domain validation errors
var (
	// ErrInvalidConfig indicates invalid chunking or processing settings.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidTransition indicates a status change the state machine does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidResponse indicates a capability returned a structurally invalid payload.
	ErrInvalidResponse = errors.New("invalid response")

	// ErrInvalidNode indicates a graph node failed schema validation.
	ErrInvalidNode = errors.New("invalid graph node")

	// ErrInvalidEdge indicates a graph edge failed schema validation or references a missing node.
	ErrInvalidEdge = errors.New("invalid graph edge")

	// ErrEmptyProvenance indicates a derived artifact without provenance.
	ErrEmptyProvenance = errors.New("provenance cannot be empty")
)
