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

// checkStall peeks the head of entity and compares it with the head seen on
// the previous invocation. An unchanged head means nobody consumed it in
// between. The first observation of an entity only records a baseline.
func (w *Watcher) checkStall(ctx context.Context, entity Entity) (string, error) {
	msg, err := w.broker.Peek(ctx, entity)
	if err != nil {
		return "", fmt.Errorf("failed to peek %s %q: %w", entity.Kind, entity.Path, err)
	}

	if msg == nil {
		return "", nil
	}

	if !w.state.observeHead(keyOf(entity), msg.ID) {
		return "", nil
	}

	w.recorder.RecordStall(ctx, entity)

	w.logger.Debug().
		Str("watcher", w.name).
		Str("kind", entity.Kind.String()).
		Str("path", entity.Path).
		Str("message_id", msg.ID).
		Msg("Head message unchanged since last check")

	return stallMessage(entity, msg.ID), nil
}

func stallMessage(entity Entity, messageID string) string {
	return fmt.Sprintf("The %s `%s` seems to be stalling its processing. Message Id `%s`.",
		entity.Kind, entity.Path, messageID)
}
