package feed

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// A ReactionKind is one of the fixed reactions a message can receive.
type ReactionKind string

const (
	ReactionThumbsUp ReactionKind = "thumbsup"
	ReactionHeart    ReactionKind = "heart"
	ReactionLaugh    ReactionKind = "laugh"
	ReactionWow      ReactionKind = "wow"
	ReactionSad      ReactionKind = "sad"
)

// ReactionKinds lists every kind in display order.
var ReactionKinds = []ReactionKind{ReactionThumbsUp, ReactionHeart, ReactionLaugh, ReactionWow, ReactionSad}

// Emoji returns the emoji rendered for k.
func (k ReactionKind) Emoji() string {
	switch k {
	case ReactionThumbsUp:
		return "👍"
	case ReactionHeart:
		return "❤️"
	case ReactionLaugh:
		return "😂"
	case ReactionWow:
		return "😮"
	case ReactionSad:
		return "😢"
	}
	return ""
}

// Name returns a human readable name for k.
func (k ReactionKind) Name() string {
	switch k {
	case ReactionThumbsUp:
		return "Thumbs Up"
	case ReactionHeart:
		return "Heart"
	case ReactionLaugh:
		return "Laughing"
	case ReactionWow:
		return "Wow"
	case ReactionSad:
		return "Sad"
	}
	return ""
}

// Valid reports whether k is one of ReactionKinds.
func (k ReactionKind) Valid() bool {
	return k.Emoji() != ""
}

// ParseReactionKind accepts either the kind id or its emoji.
func ParseReactionKind(s string) (ReactionKind, error) {
	s = strings.TrimSpace(s)
	for _, k := range ReactionKinds {
		if strings.EqualFold(s, string(k)) || s == k.Emoji() {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown reaction %q", s)
}

// A Reaction is the aggregate of one kind on one message.
type Reaction struct {
	Users []string `json:"users"`
	Count int      `json:"count"`
}

// A ReactionSet maps each kind present on a message to the users who chose it.
// Kinds with no users are absent, and Count always equals len(Users).
type ReactionSet map[ReactionKind]Reaction

// NewReactionSet builds a set from kind to user ids, dropping duplicates and empty kinds.
func NewReactionSet(byKind map[ReactionKind][]string) ReactionSet {
	rs := make(ReactionSet, len(byKind))
	for kind, users := range byKind {
		u := normalizeUsers(users)
		if len(u) == 0 {
			continue
		}
		rs[kind] = Reaction{Users: u, Count: len(u)}
	}
	return rs
}

func normalizeUsers(users []string) []string {
	out := make([]string, 0, len(users))
	for _, u := range users {
		if u != "" {
			out = append(out, u)
		}
	}
	sort.Strings(out)
	return slices.Compact(out)
}

// Toggle adds userID to kind if absent and removes it if present. The receiver is not
// modified; the returned set shares no memory with it.
func (rs ReactionSet) Toggle(kind ReactionKind, userID string) ReactionSet {
	out := rs.Clone()
	if out == nil {
		out = ReactionSet{}
	}
	users := out[kind].Users
	if i, found := slices.BinarySearch(users, userID); found {
		users = slices.Delete(slices.Clone(users), i, i+1)
	} else {
		users = slices.Insert(slices.Clone(users), i, userID)
	}
	if len(users) == 0 {
		delete(out, kind)
		return out
	}
	out[kind] = Reaction{Users: users, Count: len(users)}
	return out
}

// Union returns a set holding every user of rs and other for each kind.
func (rs ReactionSet) Union(other ReactionSet) ReactionSet {
	byKind := make(map[ReactionKind][]string, len(rs)+len(other))
	for k, r := range rs {
		byKind[k] = append(byKind[k], r.Users...)
	}
	for k, r := range other {
		byKind[k] = append(byKind[k], r.Users...)
	}
	return NewReactionSet(byKind)
}

// Has reports whether userID reacted with kind.
func (rs ReactionSet) Has(kind ReactionKind, userID string) bool {
	_, found := slices.BinarySearch(rs[kind].Users, userID)
	return found
}

// Total returns the number of reactions across all kinds.
func (rs ReactionSet) Total() int {
	n := 0
	for _, r := range rs {
		n += r.Count
	}
	return n
}

// Clone returns a deep copy of rs.
func (rs ReactionSet) Clone() ReactionSet {
	if rs == nil {
		return nil
	}
	out := make(ReactionSet, len(rs))
	for k, r := range rs {
		out[k] = Reaction{Users: slices.Clone(r.Users), Count: r.Count}
	}
	return out
}

// Check verifies the set invariants.
func (rs ReactionSet) Check() error {
	for k, r := range rs {
		if r.Count != len(r.Users) {
			return fmt.Errorf("reaction %s: count %d, %d users", k, r.Count, len(r.Users))
		}
		if r.Count == 0 {
			return fmt.Errorf("reaction %s: empty entry", k)
		}
	}
	return nil
}
