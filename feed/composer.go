package feed

import "sync"

// A Draft is a message the user is composing.
type Draft struct {
	Text     string        `json:"text"`
	ImageRef string        `json:"image_ref,omitempty"`
	Reply    *ReplyContext `json:"reply,omitempty"`
}

// Validate checks that the draft can be sent.
func (d Draft) Validate() error {
	return validateContent(d.Text, d.ImageRef)
}

// Composer holds the transient input of a conversation view.
type Composer struct {
	mu    sync.Mutex
	draft Draft
}

func (c *Composer) SetText(text string) {
	c.mu.Lock()
	c.draft.Text = text
	c.mu.Unlock()
}

func (c *Composer) SetImage(ref string) {
	c.mu.Lock()
	c.draft.ImageRef = ref
	c.mu.Unlock()
}

// SetReply attaches a reply context. A nil reply clears it.
func (c *Composer) SetReply(r *ReplyContext) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if r == nil {
		c.draft.Reply = nil
		return
	}
	cp := *r
	c.draft.Reply = &cp
}

// Draft returns the current draft.
func (c *Composer) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft.clone()
}

// Take validates the draft and clears the composer. An invalid draft is left in place.
func (c *Composer) Take() (Draft, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.draft.Validate(); err != nil {
		return Draft{}, err
	}
	d := c.draft.clone()
	c.draft = Draft{}
	return d, nil
}

func (d Draft) clone() Draft {
	if d.Reply != nil {
		r := *d.Reply
		d.Reply = &r
	}
	return d
}
