package models

// Conversation is an append-only transcript. It is not safe for concurrent
// use; the query controller that owns it serializes access.
type Conversation struct {
	messages []Message
}

// NewConversation returns a transcript seeded with the given messages.
func NewConversation(seed ...Message) *Conversation {
	c := &Conversation{messages: make([]Message, 0, len(seed)+8)}
	for _, m := range seed {
		c.Append(m)
	}
	return c
}

// Append adds a message to the end of the transcript.
func (c *Conversation) Append(m Message) {
	c.messages = append(c.messages, m.clone())
}

// Len returns the number of messages.
func (c *Conversation) Len() int {
	return len(c.messages)
}

// Messages returns a copy of the transcript in insertion order.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.clone()
	}
	return out
}

// Last returns the most recent message, if any.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1].clone(), true
}
