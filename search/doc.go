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

// Package search answers questions over processed documents.
//
// A Searcher queries the vector index, keeps only passages whose document is
// READY, and ranks them by index score with a boost for passages that
// contain every significant word of the question. Ask hands the top
// passages to the answer generator and returns its answer together with
// the citations it was given:
//
//	s, err := search.NewSearcher(documents, chunks, vectors, provider)
//	answer, err := s.Ask(ctx, "what relieved the paralysis?", 5)
//	for _, c := range answer.Citations {
//		fmt.Println(c.FileName, c.PageStart, c.PageEnd)
//	}
package search
