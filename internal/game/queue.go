package game

import (
	"strings"

	"github.com/user/silent-god/internal/types"
)

// RevelationMarker tags a queued directive that exposes a secret
const RevelationMarker = ":::REVELATION:::"

const directiveSeparator = "\n\n"

// QueuedCommand is one pending directive
type QueuedCommand struct {
	Text     string
	SecretID string
}

// CommandQueue is a FIFO of player directives awaiting the next turn.
// It is not safe for concurrent use; the manager guards it.
type CommandQueue struct {
	entries []QueuedCommand
}

// Push appends a directive
func (q *CommandQueue) Push(cmd QueuedCommand) {
	q.entries = append(q.entries, cmd)
}

// Len returns the number of pending directives
func (q *CommandQueue) Len() int {
	return len(q.entries)
}

// Texts returns a copy of the pending directive texts in order
func (q *CommandQueue) Texts() []string {
	texts := make([]string, 0, len(q.entries))
	for _, e := range q.entries {
		texts = append(texts, e.Text)
	}
	return texts
}

// SecretIDs returns the secrets referenced by pending revelations
func (q *CommandQueue) SecretIDs() []string {
	ids := make([]string, 0)
	for _, e := range q.entries {
		if e.SecretID != "" {
			ids = append(ids, e.SecretID)
		}
	}
	return ids
}

// Drain composes the combined directive from the queue and an optional
// additional directive, emptying the queue in the same step. The drained
// entries are returned so callers can report them.
func (q *CommandQueue) Drain(additional *string) (*string, []QueuedCommand) {
	drained := q.entries
	q.entries = nil
	return ComposeDirective(drained, additional), drained
}

// ComposeDirective joins queued directives and an optional additional one.
// A nil result means divine silence.
func ComposeDirective(queued []QueuedCommand, additional *string) *string {
	parts := make([]string, 0, len(queued)+1)
	for _, e := range queued {
		parts = append(parts, e.Text)
	}
	if additional != nil && *additional != "" {
		parts = append(parts, *additional)
	}
	if len(parts) == 0 {
		return nil
	}
	combined := strings.Join(parts, directiveSeparator)
	return &combined
}

// ClassifyDirective strips the revelation marker and returns the log type
// the directive produces along with the cleaned text
func ClassifyDirective(directive string) (types.LogType, string) {
	if !strings.Contains(directive, RevelationMarker) {
		return types.LogChat, directive
	}
	cleaned := strings.TrimSpace(strings.ReplaceAll(directive, RevelationMarker, ""))
	return types.LogRevelation, cleaned
}

// RevelationDirective builds the directive that exposes a person's secret
func RevelationDirective(personName string, secret types.Secret) string {
	return RevelationMarker + "I, the Silent God, decree it: let the hidden sin of " +
		personName + ", \"" + secret.Title + "\", be laid bare before the world. \"" +
		secret.Description + "\" Let this truth be the spark of judgement."
}
