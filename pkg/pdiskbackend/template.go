/*
   Copyright 2022 The StratusLab pdisk Authors.

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       http://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package pdiskbackend

import (
	"sort"
	"strings"
)

// Placeholder returns the token form of name, e.g. %%UUID%%.
func Placeholder(name string) string {
	return "%%" + name + "%%"
}

// Detokenize replaces every %%NAME%% occurrence of the keys of values in
// each token. Placeholders without a value are passed through unchanged so
// that later stages can resolve them. tokens is not modified.
func Detokenize(tokens []string, values map[string]string) []string {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	// fixed order, values may themselves contain placeholders
	sort.Strings(names)

	out := make([]string, len(tokens))
	for i, token := range tokens {
		if strings.Contains(token, "%%") {
			for _, name := range names {
				token = strings.ReplaceAll(token, Placeholder(name), values[name])
			}
		}
		out[i] = token
	}
	return out
}

// unresolved returns the placeholder names still present in tokens.
func unresolved(tokens []string) []string {
	var names []string
	seen := map[string]bool{}
	for _, token := range tokens {
		rest := token
		for {
			start := strings.Index(rest, "%%")
			if start < 0 {
				break
			}
			end := strings.Index(rest[start+2:], "%%")
			if end < 0 {
				break
			}
			name := rest[start+2 : start+2+end]
			if name != "" && !strings.ContainsAny(name, " \t") && !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
			rest = rest[start+2+end+2:]
		}
	}
	return names
}
