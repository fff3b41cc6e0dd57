package slots

// Cursor walks the date list of a View. Prev and Next are bounded: at the
// first or last date they leave the cursor where it is instead of wrapping
// or failing, which is what the date-strip UI expects.
type Cursor struct {
	dates []string
	idx   int
}

// NewCursor positions a cursor over dates at current. An unknown or empty
// current date starts the cursor at the first date.
func NewCursor(dates []string, current string) *Cursor {
	c := &Cursor{dates: dates}
	for i, d := range dates {
		if d == current {
			c.idx = i
			break
		}
	}
	return c
}

// Current returns the date under the cursor, or "" for an empty date list.
func (c *Cursor) Current() string {
	if len(c.dates) == 0 {
		return ""
	}
	return c.dates[c.idx]
}

// HasPrev reports whether Prev would move the cursor.
func (c *Cursor) HasPrev() bool {
	return c.idx > 0
}

// HasNext reports whether Next would move the cursor.
func (c *Cursor) HasNext() bool {
	return c.idx < len(c.dates)-1
}

// Prev steps back one date and returns the new current date. At the first
// date it is a no-op.
func (c *Cursor) Prev() string {
	if c.HasPrev() {
		c.idx--
	}
	return c.Current()
}

// Next steps forward one date and returns the new current date. At the
// last date it is a no-op.
func (c *Cursor) Next() string {
	if c.HasNext() {
		c.idx++
	}
	return c.Current()
}

// Seek jumps to a specific date and reports whether it is in the list.
func (c *Cursor) Seek(date string) bool {
	for i, d := range c.dates {
		if d == date {
			c.idx = i
			return true
		}
	}
	return false
}
