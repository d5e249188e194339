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

package watcher

// resolveProcessingScope returns the entities to check for stalled
// processing according to the selection strategy in cfg.
func resolveProcessingScope(cfg *ProcessingConfig, kind EntityKind, all []Entity) ([]Entity, error) {
	if !cfg.exclusive() {
		return nil, configErr(kind.String()+"_processing", conflictError(kind))
	}

	switch {
	case cfg.MonitorAll:
		return all, nil
	case len(cfg.Exempt) > 0:
		exempt := toSet(cfg.Exempt)
		out := make([]Entity, 0, len(all))

		for _, e := range all {
			if _, skip := exempt[e.Path]; !skip {
				out = append(out, e)
			}
		}

		return out, nil
	case len(cfg.Specific) > 0:
		return resolveExplicitScope(all, cfg.Specific), nil
	default:
		return nil, configErr(kind.String()+"_processing", errProcessingIncorrect)
	}
}

// resolveExplicitScope keeps the entities named in paths. Names the broker
// does not know are dropped. Each entity appears at most once, in the order
// of all.
func resolveExplicitScope(all []Entity, paths []string) []Entity {
	wanted := toSet(paths)
	emitted := make(map[string]struct{}, len(wanted))
	out := make([]Entity, 0, len(wanted))

	for _, e := range all {
		if _, ok := wanted[e.Path]; !ok {
			continue
		}

		if _, dup := emitted[e.Path]; dup {
			continue
		}

		emitted[e.Path] = struct{}{}
		out = append(out, e)
	}

	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}

	return set
}
