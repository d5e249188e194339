/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package version reports the build version injected with -ldflags.
package version

//nolint:gochecknoglobals // set via -ldflags "-X"
var (
	version = "dev"
	buildID = "dev"
)

// GetVersion returns the release version.
func GetVersion() string {
	return version
}

// GetBuildID returns the build identifier.
func GetBuildID() string {
	return buildID
}

// GetFullVersion returns the version followed by the build identifier.
func GetFullVersion() string {
	return version + " (build: " + buildID + ")"
}
