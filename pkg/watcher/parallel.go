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

import (
	"context"
	"slices"

	"golang.org/x/sync/errgroup"
)

type entityCheck func(ctx context.Context, entity Entity) ([]string, error)

// runChecks applies check to every entity and concatenates the findings in
// entity order, whatever order the checks complete in. The first error
// cancels the remaining checks.
func runChecks(ctx context.Context, limit int, entities []Entity, check entityCheck) ([]string, error) {
	if limit <= 1 || len(entities) <= 1 {
		var out []string

		for _, e := range entities {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			found, err := check(ctx, e)
			if err != nil {
				return nil, err
			}

			out = append(out, found...)
		}

		return out, nil
	}

	slots := make([][]string, len(entities))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	for i, e := range entities {
		g.Go(func() error {
			found, err := check(gctx, e)
			if err != nil {
				return err
			}

			slots[i] = found

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return slices.Concat(slots...), nil
}
