package feed

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestComposer_Take(t *testing.T) {
	var c Composer
	c.SetText("hi")
	c.SetImage("img/1.png")
	reply := &ReplyContext{ActivityID: "a1", Summary: "ran 5k"}
	c.SetReply(reply)
	reply.Summary = "changed"

	d, err := c.Take()
	if err != nil {
		t.Fatalf("Take() error = %v", err)
	}
	want := Draft{Text: "hi", ImageRef: "img/1.png", Reply: &ReplyContext{ActivityID: "a1", Summary: "ran 5k"}}
	if diff := cmp.Diff(want, d); diff != "" {
		t.Errorf("Take() mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(Draft{}, c.Draft()); diff != "" {
		t.Errorf("Draft() after Take mismatch (-want +got):\n%s", diff)
	}
}

func TestComposer_TakeInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
		want error
	}{
		{name: "Empty", text: "", want: ErrEmptyMessage},
		{name: "TooLong", text: strings.Repeat("a", MaxTextLength+1), want: ErrMessageTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c Composer
			c.SetText(tt.text)
			if _, err := c.Take(); !errors.Is(err, tt.want) {
				t.Errorf("Take() error = %v; want %v", err, tt.want)
			}
			if got := c.Draft().Text; got != tt.text {
				t.Errorf("draft text was cleared on invalid Take")
			}
		})
	}
}
