package middleware

import (
	"strings"

	"github.com/taskboard/taskboard/internal/audit"
)

// EntityRef is the entity a request acted upon, resolved from its path
type EntityRef struct {
	Type      audit.EntityType
	ID        string
	SubAction string
}

// IsSystem reports whether the path matched no entity rule
func (r EntityRef) IsSystem() bool {
	return r.Type == audit.EntitySystem
}

// EntityRule maps a path prefix (segments below the API prefix) to an entity type. The id
// and sub-action are read at the given offsets past the prefix; a negative offset means
// the path carries none.
type EntityRule struct {
	Prefix          []string
	Type            audit.EntityType
	IDOffset        int
	SubActionOffset int
}

// EntityRules is evaluated in order; the first rule whose prefix matches wins, so nested
// prefixes must precede their parents. Keep it in sync with the task-board route surface.
var EntityRules = []EntityRule{
	{Prefix: []string{"auth"}, Type: audit.EntitySession, IDOffset: -1, SubActionOffset: 0},
	{Prefix: []string{"users"}, Type: audit.EntityUser, IDOffset: 0, SubActionOffset: 1},
	{Prefix: []string{"portfolios"}, Type: audit.EntityPortfolio, IDOffset: 0, SubActionOffset: 1},
	{Prefix: []string{"boards"}, Type: audit.EntityBoard, IDOffset: 0, SubActionOffset: 1},
	{Prefix: []string{"lists"}, Type: audit.EntityList, IDOffset: 0, SubActionOffset: 1},
	{Prefix: []string{"cards"}, Type: audit.EntityCard, IDOffset: 0, SubActionOffset: 1},
	{Prefix: []string{"checklist-items"}, Type: audit.EntityChecklistItem, IDOffset: 0, SubActionOffset: 1},
	{Prefix: []string{"checklists"}, Type: audit.EntityChecklist, IDOffset: 0, SubActionOffset: 1},
	{Prefix: []string{"comments"}, Type: audit.EntityComment, IDOffset: 0, SubActionOffset: 1},
	{Prefix: []string{"labels"}, Type: audit.EntityLabel, IDOffset: 0, SubActionOffset: 1},
	{Prefix: []string{"notifications"}, Type: audit.EntityNotification, IDOffset: 0, SubActionOffset: 1},
}

// ResolveEntity resolves the entity reference of path below apiPrefix using rules.
// Unmatched paths resolve to the system reference; that is not an error.
func ResolveEntity(rules []EntityRule, apiPrefix, path string) EntityRef {
	segments := splitPath(strings.TrimPrefix(path, strings.TrimRight(apiPrefix, "/")))

	for _, rule := range rules {
		if !hasSegmentPrefix(segments, rule.Prefix) {
			continue
		}
		rest := segments[len(rule.Prefix):]
		return EntityRef{
			Type:      rule.Type,
			ID:        segmentAt(rest, rule.IDOffset),
			SubAction: segmentAt(rest, rule.SubActionOffset),
		}
	}
	return EntityRef{Type: audit.EntitySystem, ID: audit.SystemEntityID}
}

func splitPath(path string) []string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// hasSegmentPrefix matches whole segments, so "cards" never matches "cardsets"
func hasSegmentPrefix(segments, prefix []string) bool {
	if len(segments) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if segments[i] != p {
			return false
		}
	}
	return true
}

func segmentAt(segments []string, i int) string {
	if i < 0 || i >= len(segments) {
		return ""
	}
	return segments[i]
}
