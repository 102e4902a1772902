package expressions

import "time"

// Context is the per-run accumulating state used for template
// resolution: the source fields plus an insertion-ordered mapping from
// output key to produced text. It is owned exclusively by the dispatcher
// invocation processing the run and is not safe for concurrent use.
type Context struct {
	SourceText string
	Title      string
	Date       time.Time
	AudioPath  string

	keys   []string
	values map[string]string
}

// NewContext builds an empty run context from the source fields.
func NewContext(sourceText, title string, date time.Time) *Context {
	return &Context{
		SourceText: sourceText,
		Title:      title,
		Date:       date,
		values:     make(map[string]string),
	}
}

// Set stores value under key. Reusing a key overwrites the previous
// value and makes the key the most recently inserted one, so "previous
// output" resolution always sees the last write.
func (c *Context) Set(key, value string) {
	if _, exists := c.values[key]; exists {
		for i, k := range c.keys {
			if k == key {
				c.keys = append(c.keys[:i], c.keys[i+1:]...)
				break
			}
		}
	}
	c.keys = append(c.keys, key)
	c.values[key] = value
}

// Get returns the value stored under key.
func (c *Context) Get(key string) (string, bool) {
	v, ok := c.values[key]
	return v, ok
}

// Keys returns the output keys in insertion order.
func (c *Context) Keys() []string {
	out := make([]string, len(c.keys))
	copy(out, c.keys)
	return out
}

// LastOutput returns the most recently inserted value, or the source
// text when no step has produced output yet.
func (c *Context) LastOutput() string {
	if len(c.keys) == 0 {
		return c.SourceText
	}
	return c.values[c.keys[len(c.keys)-1]]
}

// Len returns the number of stored outputs.
func (c *Context) Len() int { return len(c.keys) }

// Outputs returns a copy of the key → value map.
func (c *Context) Outputs() map[string]string {
	out := make(map[string]string, len(c.values))
	for k, v := range c.values {
		out[k] = v
	}
	return out
}

// Clone returns an independent copy. Concurrent sub-runs under parallel
// execute-workflows each receive their own clone.
func (c *Context) Clone() *Context {
	cp := NewContext(c.SourceText, c.Title, c.Date)
	cp.AudioPath = c.AudioPath
	cp.keys = make([]string, len(c.keys))
	copy(cp.keys, c.keys)
	for k, v := range c.values {
		cp.values[k] = v
	}
	return cp
}
