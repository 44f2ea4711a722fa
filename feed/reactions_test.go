package feed

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestReactionSet_Toggle(t *testing.T) {
	tests := []struct {
		name string
		set  ReactionSet
		kind ReactionKind
		user string
		want ReactionSet
	}{
		{
			name: "AddToEmpty",
			set:  nil,
			kind: ReactionHeart,
			user: "u1",
			want: ReactionSet{ReactionHeart: {Users: []string{"u1"}, Count: 1}},
		},
		{
			name: "AddSecondUser",
			set:  NewReactionSet(map[ReactionKind][]string{ReactionThumbsUp: {"u2"}}),
			kind: ReactionThumbsUp,
			user: "u1",
			want: ReactionSet{ReactionThumbsUp: {Users: []string{"u1", "u2"}, Count: 2}},
		},
		{
			name: "RemoveLastUserDropsKind",
			set:  NewReactionSet(map[ReactionKind][]string{ReactionSad: {"u1"}, ReactionWow: {"u2"}}),
			kind: ReactionSad,
			user: "u1",
			want: ReactionSet{ReactionWow: {Users: []string{"u2"}, Count: 1}},
		},
		{
			name: "OtherKindsUntouched",
			set:  NewReactionSet(map[ReactionKind][]string{ReactionLaugh: {"u1", "u2"}}),
			kind: ReactionHeart,
			user: "u1",
			want: ReactionSet{
				ReactionLaugh: {Users: []string{"u1", "u2"}, Count: 2},
				ReactionHeart: {Users: []string{"u1"}, Count: 1},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.set.Clone()
			got := tt.set.Toggle(tt.kind, tt.user)
			if diff := cmp.Diff(tt.want, got, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Toggle() mismatch (-want +got):\n%s", diff)
			}
			if err := got.Check(); err != nil {
				t.Errorf("Check() = %v", err)
			}
			if diff := cmp.Diff(before, tt.set, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Toggle() modified its receiver (-before +after):\n%s", diff)
			}
			again := got.Toggle(tt.kind, tt.user)
			if diff := cmp.Diff(tt.set, again, cmpopts.EquateEmpty()); diff != "" {
				t.Errorf("Toggling twice is not a no-op (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReactionSet_TwoUsers(t *testing.T) {
	var rs ReactionSet
	rs = rs.Toggle(ReactionThumbsUp, "u1")
	rs = rs.Toggle(ReactionThumbsUp, "u2")
	if got := rs[ReactionThumbsUp]; got.Count != 2 || !cmp.Equal(got.Users, []string{"u1", "u2"}) {
		t.Errorf("After both users: %+v", got)
	}
	rs = rs.Toggle(ReactionThumbsUp, "u1")
	if got := rs[ReactionThumbsUp]; got.Count != 1 || !cmp.Equal(got.Users, []string{"u2"}) {
		t.Errorf("After u1 removed: %+v", got)
	}
	if rs.Has(ReactionThumbsUp, "u1") || !rs.Has(ReactionThumbsUp, "u2") {
		t.Error("Has() disagrees with users")
	}
	if rs.Total() != 1 {
		t.Errorf("Total() = %d, want 1", rs.Total())
	}
}

func TestReactionSet_Union(t *testing.T) {
	a := NewReactionSet(map[ReactionKind][]string{ReactionHeart: {"u1"}})
	b := NewReactionSet(map[ReactionKind][]string{ReactionHeart: {"u1", "u2"}, ReactionWow: {"u2"}})
	want := ReactionSet{
		ReactionHeart: {Users: []string{"u1", "u2"}, Count: 2},
		ReactionWow:   {Users: []string{"u2"}, Count: 1},
	}
	if diff := cmp.Diff(want, a.Union(b)); diff != "" {
		t.Errorf("Union() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewReactionSet(t *testing.T) {
	got := NewReactionSet(map[ReactionKind][]string{
		ReactionHeart: {"u2", "u1", "u2", ""},
		ReactionSad:   {},
	})
	want := ReactionSet{ReactionHeart: {Users: []string{"u1", "u2"}, Count: 2}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("NewReactionSet() mismatch (-want +got):\n%s", diff)
	}
}

func TestParseReactionKind(t *testing.T) {
	tests := []struct {
		in      string
		want    ReactionKind
		wantErr bool
	}{
		{in: "thumbsup", want: ReactionThumbsUp},
		{in: "HEART", want: ReactionHeart},
		{in: "😂", want: ReactionLaugh},
		{in: "angry", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseReactionKind(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseReactionKind() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseReactionKind() = %q, want %q", got, tt.want)
			}
		})
	}
	for _, k := range ReactionKinds {
		if k.Emoji() == "" || k.Name() == "" {
			t.Errorf("Kind %q has no display mapping", k)
		}
	}
}
