package game

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/user/silent-god/internal/types"
)

const (
	// DefaultBiographyThreshold is the length an incoming biography must exceed
	DefaultBiographyThreshold = 50

	minPower    = 0
	maxPower    = 100
	minAttitude = -100
	maxAttitude = 100
)

// ClampFaction forces power and attitude into their legal ranges
func ClampFaction(f types.Faction) types.Faction {
	f.Power = clamp(f.Power, minPower, maxPower)
	f.Attitude = clamp(f.Attitude, minAttitude, maxAttitude)
	return f
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// MergeFactions upserts the incoming factions into the current collection by
// name. Existing factions keep their position, new names are appended in the
// order they first appear, and duplicates in incoming resolve last-write-wins.
func MergeFactions(current, incoming []types.Faction) []types.Faction {
	merged := make([]types.Faction, 0, len(current)+len(incoming))
	index := make(map[string]int, len(current)+len(incoming))

	upsert := func(f types.Faction) {
		f = ClampFaction(f)
		if i, ok := index[f.Name]; ok {
			merged[i] = f
			return
		}
		index[f.Name] = len(merged)
		merged = append(merged, f)
	}

	for _, f := range current {
		upsert(f)
	}
	for _, f := range incoming {
		upsert(f)
	}
	return merged
}

// NormalizeName lowercases a name and removes every whitespace rune
func NormalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// NamesMatch reports whether two person names refer to the same person:
// equal after normalization, or one contained in the other.
func NamesMatch(a, b string) bool {
	na, nb := NormalizeName(a), NormalizeName(b)
	if na == "" || nb == "" {
		return false
	}
	return na == nb || strings.Contains(na, nb) || strings.Contains(nb, na)
}

// MatchByName returns the index of the first person whose name matches
func MatchByName(persons []types.Person, name string) (int, bool) {
	for i, p := range persons {
		if NamesMatch(p.Name, name) {
			return i, true
		}
	}
	return -1, false
}

// PersonMerger folds oracle figure updates into the person collection
type PersonMerger struct {
	// BiographyThreshold is the minimum length, exclusive, for an incoming
	// biography to replace the existing one
	BiographyThreshold int
}

// NewPersonMerger creates a merger with the given biography threshold
func NewPersonMerger(threshold int) *PersonMerger {
	if threshold <= 0 {
		threshold = DefaultBiographyThreshold
	}
	return &PersonMerger{BiographyThreshold: threshold}
}

// Merge applies every incoming record and returns the new authoritative
// collection. Lookup is by id first and falls back to fuzzy name matching;
// unmatched records are inserted as new persons.
func (pm *PersonMerger) Merge(current, incoming []types.Person) []types.Person {
	merged := make([]types.Person, len(current))
	copy(merged, current)

	index := make(map[string]int, len(merged))
	for i, p := range merged {
		index[p.ID] = i
	}

	for _, update := range incoming {
		i, found := index[update.ID]
		if !found {
			i, found = MatchByName(merged, update.Name)
			if found {
				// The oracle invented an id for a known person
				update.ID = merged[i].ID
			}
		}

		if found {
			merged[i] = pm.mergePerson(merged[i], update)
			continue
		}

		index[update.ID] = len(merged)
		merged = append(merged, update)
	}

	return merged
}

func (pm *PersonMerger) mergePerson(existing, update types.Person) types.Person {
	result := existing

	if update.Name != "" {
		result.Name = update.Name
	}
	if update.FactionName != "" {
		result.FactionName = update.FactionName
	}
	if update.Role != "" {
		result.Role = update.Role
	}
	if update.Description != "" {
		result.Description = update.Description
	}
	if update.BirthYear != 0 {
		result.BirthYear = update.BirthYear
	}
	if update.Status != "" {
		result.Status = update.Status
	}
	if update.Traits != nil {
		result.Traits = update.Traits
	}
	if update.DeathYear != nil {
		result.DeathYear = update.DeathYear
	}

	if utf8.RuneCountInString(update.Biography) > pm.BiographyThreshold {
		result.Biography = update.Biography
	}

	// Portraits are never produced by the oracle
	if existing.PortraitURL == "" {
		result.PortraitURL = update.PortraitURL
	}

	result.Secrets = unionSecrets(existing.Secrets, update.Secrets)
	result.Relationships = mergeRelationships(existing.Relationships, update.Relationships)
	return result
}

// unionSecrets keeps the first occurrence of every title, existing first
func unionSecrets(existing, incoming []types.Secret) []types.Secret {
	out := make([]types.Secret, 0, len(existing)+len(incoming))
	seen := make(map[string]struct{}, len(existing)+len(incoming))
	for _, list := range [][]types.Secret{existing, incoming} {
		for _, s := range list {
			if _, ok := seen[s.Title]; ok {
				continue
			}
			seen[s.Title] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// mergeRelationships keys by target id; incoming replaces in place and new
// targets are appended
func mergeRelationships(existing, incoming []types.Relationship) []types.Relationship {
	out := make([]types.Relationship, 0, len(existing)+len(incoming))
	index := make(map[string]int, len(existing)+len(incoming))
	for _, list := range [][]types.Relationship{existing, incoming} {
		for _, r := range list {
			if i, ok := index[r.TargetID]; ok {
				out[i] = r
				continue
			}
			index[r.TargetID] = len(out)
			out = append(out, r)
		}
	}
	return out
}
