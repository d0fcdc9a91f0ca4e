// Package list provides list navigation helpers for the TUI views.
package list

// Cursor tracks the selected row and scroll window of a list.
type Cursor struct {
	count    int
	selected int
	offset   int
	visible  int
}

// NewCursor creates a cursor showing visible rows at a time.
func NewCursor(visible int) *Cursor {
	c := &Cursor{}
	c.SetVisible(visible)
	return c
}

// SetCount updates the number of rows, keeping the selection in range.
func (c *Cursor) SetCount(n int) {
	if n < 0 {
		n = 0
	}
	c.count = n
	if c.selected >= n {
		c.selected = n - 1
	}
	if c.selected < 0 {
		c.selected = 0
	}
	c.adjust()
}

// SetVisible sets how many rows fit on screen.
func (c *Cursor) SetVisible(visible int) {
	if visible < 1 {
		visible = 1
	}
	c.visible = visible
	c.adjust()
}

// Reset moves the selection to the first row.
func (c *Cursor) Reset() {
	c.selected = 0
	c.offset = 0
}

// Up moves the selection up.
func (c *Cursor) Up() {
	if c.selected > 0 {
		c.selected--
		c.adjust()
	}
}

// Down moves the selection down.
func (c *Cursor) Down() {
	if c.selected < c.count-1 {
		c.selected++
		c.adjust()
	}
}

// Selected returns the selected index, or -1 when the list is empty.
func (c *Cursor) Selected() int {
	if c.count == 0 {
		return -1
	}
	return c.selected
}

// SetSelected moves the selection to index if it is in range.
func (c *Cursor) SetSelected(index int) {
	if index >= 0 && index < c.count {
		c.selected = index
		c.adjust()
	}
}

// Window returns the half-open range of rows to render.
func (c *Cursor) Window() (start, end int) {
	start = c.offset
	end = start + c.visible
	if end > c.count {
		end = c.count
	}
	return start, end
}

// Scrolls reports whether the list is longer than the window.
func (c *Cursor) Scrolls() bool {
	return c.count > c.visible
}

// Count returns the number of rows.
func (c *Cursor) Count() int {
	return c.count
}

// adjust keeps the selected row inside the window.
func (c *Cursor) adjust() {
	if c.selected < c.offset {
		c.offset = c.selected
	} else if c.selected >= c.offset+c.visible {
		c.offset = c.selected - c.visible + 1
	}
	if maxOffset := c.count - c.visible; c.offset > maxOffset {
		c.offset = maxOffset
	}
	if c.offset < 0 {
		c.offset = 0
	}
}
