// Package conversation holds the per-thread state that survives between turns.
package conversation

import "strings"

// Version of the persisted Context layout.
const Version = 1

// Role of a thread message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a thread.
type Turn struct {
	Role    Role   `json:"role"`
	Speaker string `json:"speaker,omitempty"`
	Content string `json:"content"`
}

// Context is the state a thread carries from one turn to the next.
type Context struct {
	Version       int    `json:"version"`
	LastTaskID    string `json:"last_task_id,omitempty"`
	LastTaskName  string `json:"last_task_name,omitempty"`
	LastEventID   string `json:"last_event_id,omitempty"`
	LastMessageID string `json:"last_message_id,omitempty"` // email or chat message
	ThreadHistory []Turn `json:"thread_history,omitempty"`
}

// Delta is a partial update produced while handling a turn.
// Empty fields mean "unchanged".
type Delta struct {
	LastTaskID    string `json:"last_task_id,omitempty"`
	LastTaskName  string `json:"last_task_name,omitempty"`
	LastEventID   string `json:"last_event_id,omitempty"`
	LastMessageID string `json:"last_message_id,omitempty"`
}

// IsEmpty reports whether d changes nothing.
func (d Delta) IsEmpty() bool {
	return d == Delta{}
}

// Then returns d with every field set in next overwriting it.
func (d Delta) Then(next Delta) Delta {
	if next.LastTaskID != "" {
		d.LastTaskID = next.LastTaskID
		// A new task id invalidates a name from another task.
		d.LastTaskName = next.LastTaskName
	} else if next.LastTaskName != "" {
		d.LastTaskName = next.LastTaskName
	}
	if next.LastEventID != "" {
		d.LastEventID = next.LastEventID
	}
	if next.LastMessageID != "" {
		d.LastMessageID = next.LastMessageID
	}
	return d
}

// Merge applies delta to old and returns the new context. old is not modified.
func Merge(old Context, delta Delta) Context {
	next := old
	next.Version = Version
	next.ThreadHistory = append([]Turn(nil), old.ThreadHistory...)

	applied := Delta{
		LastTaskID:    old.LastTaskID,
		LastTaskName:  old.LastTaskName,
		LastEventID:   old.LastEventID,
		LastMessageID: old.LastMessageID,
	}.Then(delta)

	next.LastTaskID = applied.LastTaskID
	next.LastTaskName = applied.LastTaskName
	next.LastEventID = applied.LastEventID
	next.LastMessageID = applied.LastMessageID
	return next
}

// AppendTurns returns c with turns added to its history, keeping only the
// newest window entries. window <= 0 keeps everything.
func AppendTurns(c Context, window int, turns ...Turn) Context {
	history := make([]Turn, 0, len(c.ThreadHistory)+len(turns))
	history = append(history, c.ThreadHistory...)
	for _, t := range turns {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		history = append(history, t)
	}
	if window > 0 && len(history) > window {
		history = history[len(history)-window:]
	}
	c.ThreadHistory = history
	return c
}

// Normalize prepares a thread history for a model that requires strictly
// alternating roles starting with the user: consecutive same-role turns are
// joined with a newline, empty turns are dropped, and leading assistant
// turns are discarded.
func Normalize(history []Turn) []Turn {
	out := make([]Turn, 0, len(history))
	for _, t := range history {
		if strings.TrimSpace(t.Content) == "" {
			continue
		}
		if len(out) == 0 && t.Role != RoleUser {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == t.Role {
			out[n-1].Content += "\n" + t.Content
			if out[n-1].Speaker != t.Speaker {
				out[n-1].Speaker = ""
			}
			continue
		}
		out = append(out, t)
	}
	return out
}
