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

// Package config loads the scriptorium application configuration from YAML.
//
// Zero fields are filled with defaults after decoding, and a small set of
// environment variables override file values:
//
//	SCRIPTORIUM_DB            database.path
//	SCRIPTORIUM_AI_HOST       every ai host
//	SCRIPTORIUM_VISION        ai.vision_backend
//	SCRIPTORIUM_GCS_BUCKET    blobs.bucket (and selects the gcs backend)
//	GOOGLE_CLOUD_PROJECT      ai.vertex_project when unset
//
// The API key itself is never stored; ai.api_key_env names the variable it
// is read from.
package config
