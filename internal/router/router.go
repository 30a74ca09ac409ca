// Package router implements the deterministic tier-classification rule
// memoryhub applies to every record at store time.
package router

import "strings"

// Tier is one of the four storage classes a record can be routed to.
type Tier string

const (
	// Session is the transient, in-memory tier; nothing routed here
	// survives process restart.
	Session Tier = "session"
	// Core is the durable relational tier for structured records.
	Core Tier = "core"
	// Application is the append-only log tier for operational text
	// (logs, traces).
	Application Tier = "application"
	// Archive is the append-only log tier for records explicitly
	// tagged for long-term retention.
	Archive Tier = "archive"
)

// Classify is a pure function of (content, tags) that returns the tier a
// record belongs to. Rules are matched in order; the first match wins:
//
//  1. content mentions "task_id" or "window_id" (case-insensitive)        -> Core
//  2. content mentions "log" or "trace" (case-insensitive)                -> Application
//  3. "archive" is among the lowercased tags                              -> Archive
//  4. otherwise                                                           -> Session
//
// context_path is never inspected. These rules are load-bearing: callers
// rely on the observable tier of a stored record, so do not reorder them.
func Classify(content string, tags []string) Tier {
	lower := strings.ToLower(content)

	if strings.Contains(lower, "task_id") || strings.Contains(lower, "window_id") {
		return Core
	}
	if strings.Contains(lower, "log") || strings.Contains(lower, "trace") {
		return Application
	}
	for _, t := range tags {
		if strings.EqualFold(t, "archive") {
			return Archive
		}
	}
	return Session
}
