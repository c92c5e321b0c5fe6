// Package roster maps free-text assignee names onto a small closed roster of
// team members, using an alias table, normalization and fuzzy similarity.
package roster

import (
	"log/slog"
	"regexp"
	"strings"
	"sync"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// DefaultThreshold is the minimum similarity score accepted for a fuzzy
// match. Callers may override it per lookup.
const DefaultThreshold = 0.6

// DefaultMembers is the roster used when no members are configured.
var DefaultMembers = []string{
	"Nikhil J Prasad",
	"Kailas S S",
	"S Govind Krishnan",
	"Mukundan V S",
}

// defaultAliases maps canonical member names to known variations, including
// common mis-transcriptions.
var defaultAliases = map[string][]string{
	"Nikhil J Prasad":   {"nikhil", "nik", "nikhi", "n.j. prasad", "njp", "n j prasad"},
	"Kailas S S":        {"kailas", "kaila", "kyla", "kyle", "kailash", "k.s.s", "kss", "k s s"},
	"S Govind Krishnan": {"govind", "govin", "govi", "krishnan", "s.govind", "s govind", "sgk"},
	"Mukundan V S":      {"mukundan", "mukund", "muku", "vs", "v.s.", "v s", "mvs", "m.v.s"},
}

var noAssignee = map[string]bool{
	"":           true,
	"unassigned": true,
	"none":       true,
	"null":       true,
	"n/a":        true,
}

// Match is a resolved roster member with the score of the strategy that
// produced it.
type Match struct {
	Name  string
	Score float64
}

// Registry holds the process-wide roster and alias table. It is safe for
// concurrent use; mutation happens only through AddAlias and Replace.
type Registry struct {
	mu      sync.RWMutex
	members []string
	aliases map[string]string // normalized alias -> canonical name
	lev     *metrics.Levenshtein
}

// NewRegistry creates a registry for the given members, in declaration
// order. Declaration order is the tie-break for equal fuzzy scores.
func NewRegistry(members ...string) *Registry {
	r := &Registry{
		members: append([]string(nil), members...),
		aliases: make(map[string]string),
		lev:     metrics.NewLevenshtein(),
	}
	return r
}

// NewDefaultRegistry creates a registry with the default members and alias
// table.
func NewDefaultRegistry() *Registry {
	r := NewRegistry(DefaultMembers...)
	for member, aliases := range defaultAliases {
		for _, a := range aliases {
			r.AddAlias(member, a)
		}
	}
	return r
}

// Members returns a copy of the roster in declaration order.
func (r *Registry) Members() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.members...)
}

// AddAlias registers an alias for a member. Aliases are stored normalized
// and lowercased.
func (r *Registry) AddAlias(member, alias string) {
	n := Normalize(alias)
	if n == "" {
		return
	}
	r.mu.Lock()
	r.aliases[n] = member
	r.mu.Unlock()
	slog.Debug("added roster alias", "alias", alias, "member", member)
}

// Replace swaps the roster for a new member list. Aliases pointing at
// members no longer on the roster are dropped.
func (r *Registry) Replace(members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.members = append([]string(nil), members...)
	keep := make(map[string]bool, len(members))
	for _, m := range members {
		keep[m] = true
	}
	for alias, member := range r.aliases {
		if !keep[member] {
			delete(r.aliases, alias)
		}
	}
	slog.Info("roster replaced", "members", len(members))
}

// Resolve maps a raw name to a canonical roster member using the default
// threshold. The boolean is false for no-assignee sentinels and for names
// that match nothing.
func (r *Registry) Resolve(raw string) (string, bool) {
	m, ok := r.Match(raw, DefaultThreshold)
	if !ok {
		return "", false
	}
	return m.Name, true
}

// Match resolves a raw name with an explicit fuzzy threshold.
//
// Strategy order: alias table, exact normalized name, substring containment
// (accepted immediately at 0.85), then fuzzy similarity against each member
// and its aliases. Ties on fuzzy score go to the member declared first.
func (r *Registry) Match(raw string, threshold float64) (Match, bool) {
	if noAssignee[strings.ToLower(strings.TrimSpace(raw))] {
		return Match{}, false
	}

	input := Normalize(raw)
	if input == "" {
		return Match{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if member, ok := r.aliases[input]; ok {
		slog.Debug("alias match", "input", raw, "member", member)
		return Match{Name: member, Score: 1.0}, true
	}

	for _, member := range r.members {
		if input == Normalize(member) {
			return Match{Name: member, Score: 1.0}, true
		}
	}

	for _, member := range r.members {
		n := Normalize(member)
		if strings.Contains(n, input) || strings.Contains(input, n) {
			slog.Debug("substring match", "input", raw, "member", member)
			return Match{Name: member, Score: 0.85}, true
		}
	}

	best := Match{}
	for _, member := range r.members {
		score := r.similarity(input, Normalize(member))
		for alias, canonical := range r.aliases {
			if canonical == member {
				if s := r.similarity(input, alias); s > score {
					score = s
				}
			}
		}
		// Strictly greater: the first-declared member wins exact ties.
		if score > best.Score {
			best = Match{Name: member, Score: score}
		}
	}

	if best.Name != "" && best.Score >= threshold {
		slog.Debug("fuzzy match", "input", raw, "member", best.Name, "score", best.Score)
		return best, true
	}

	slog.Debug("no roster match", "input", raw, "best", best.Name, "score", best.Score)
	return Match{}, false
}

var (
	punctPattern    = regexp.MustCompile(`[.,;:\-_/\\]+`)
	spacePattern    = regexp.MustCompile(`\s+`)
	nonAlnumPattern = regexp.MustCompile(`[^a-z0-9 ]`)
)

// Normalize lowercases a name, collapses punctuation to spaces, collapses
// whitespace and strips anything not alphanumeric.
func Normalize(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = punctPattern.ReplaceAllString(n, " ")
	n = spacePattern.ReplaceAllString(n, " ")
	n = nonAlnumPattern.ReplaceAllString(n, "")
	return strings.TrimSpace(n)
}

// similarity scores two already-normalized names in [0,1]. Beyond the raw
// edit-distance ratio it rewards shared words and strong single-word
// matches, so "Nikhil Prasad" still scores high against "Nikhil J Prasad".
func (r *Registry) similarity(n1, n2 string) float64 {
	if n1 == "" || n2 == "" {
		return 0
	}
	if n1 == n2 {
		return 1
	}
	if strings.Contains(n1, n2) || strings.Contains(n2, n1) {
		return 0.85
	}

	base := strutil.Similarity(n1, n2, r.lev)

	parts1 := strings.Fields(n1)
	parts2 := strings.Fields(n2)

	common := 0
	for _, p1 := range parts1 {
		for _, p2 := range parts2 {
			if p1 == p2 {
				common++
				break
			}
		}
	}
	if common > 0 {
		longest := len(parts1)
		if len(parts2) > longest {
			longest = len(parts2)
		}
		if bonus := 0.5 + float64(common)/float64(longest)*0.3; bonus > base {
			base = bonus
		}
	}

	maxPart := 0.0
	for _, p1 := range parts1 {
		for _, p2 := range parts2 {
			if len(p1) > 1 && len(p2) > 1 {
				if s := strutil.Similarity(p1, p2, r.lev); s > maxPart {
					maxPart = s
				}
			}
		}
	}
	if maxPart > 0.8 && maxPart*0.9 > base {
		base = maxPart * 0.9
	}

	return base
}
