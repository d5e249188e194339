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
	"fmt"
)

// checkNewMessages reports every message id at the head of entity that has
// not been reported before. Peeking stops at an empty entity or at the first
// id that was already reported, since a peek never advances the head.
func (w *Watcher) checkNewMessages(ctx context.Context, entity Entity) ([]string, error) {
	seen, err := w.state.seenFor(keyOf(entity))
	if err != nil {
		return nil, fmt.Errorf("%s %q: %w", entity.Kind, entity.Path, err)
	}

	var found []string

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg, err := w.broker.Peek(ctx, entity)
		if err != nil {
			return nil, fmt.Errorf("failed to peek %s %q: %w", entity.Kind, entity.Path, err)
		}

		if msg == nil || seen.Contains(msg.ID) {
			return found, nil
		}

		seen.Add(msg.ID)
		w.recorder.RecordNewMessage(ctx, entity)

		w.logger.Debug().
			Str("watcher", w.name).
			Str("kind", entity.Kind.String()).
			Str("path", entity.Path).
			Str("message_id", msg.ID).
			Int("seen", seen.Len()).
			Msg("New message detected")

		found = append(found, newMessageMessage(entity, msg))
	}
}

func newMessageMessage(entity Entity, msg *Message) string {
	return fmt.Sprintf("The %s `%s` has one new message. Message Id `%s`. Content: ```%s```",
		entity.Kind, entity.Path, msg.ID, msg.Body)
}
