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

package utils

import (
	"os"
	"strings"
)

func ContainsString(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}

// SplitList splits a separated configuration value, dropping blanks and
// repeated items while keeping the order.
func SplitList(s string, sep string) []string {
	result := []string{}
	for _, item := range strings.Split(s, sep) {
		item = strings.TrimSpace(item)
		if item == "" || ContainsString(result, item) {
			continue
		}
		result = append(result, item)
	}
	return result
}

// TrimList trims every item and drops blanks and repeats.
func TrimList(slice []string) []string {
	return SplitList(strings.Join(slice, "\x00"), "\x00")
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
