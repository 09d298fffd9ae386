// Package page tracks the current page of the viewed document.
package page

import "sync"

// State is a snapshot of navigation state. PageCount is 0 until the
// document resolves.
type State struct {
	CurrentPage int
	PageCount   int
}

// Known reports whether the page count has been resolved.
func (s State) Known() bool {
	return s.PageCount > 0
}

// Controller holds the current page and page count.
//
// SetPage does not clamp. Callers check bounds first, the way CanPrev and
// CanNext do; an out-of-range page is a caller error.
type Controller struct {
	mu        sync.Mutex
	state     State
	listeners []func(State)
}

// NewController returns a controller in the {1, unknown} state.
func NewController() *Controller {
	return &Controller{state: State{CurrentPage: 1}}
}

// State returns the current snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OnChange registers fn to be called after every state change.
func (c *Controller) OnChange(fn func(State)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

// SetPage moves to page n. It is a no-op while the page count is unknown.
func (c *Controller) SetPage(n int) {
	c.update(func(s *State) bool {
		if !s.Known() {
			return false
		}
		s.CurrentPage = n
		return true
	})
}

// OnDocumentResolved records the page count and returns to page 1.
func (c *Controller) OnDocumentResolved(pageCount int) {
	c.update(func(s *State) bool {
		s.PageCount = pageCount
		s.CurrentPage = 1
		return true
	})
}

// OnResourceChanged returns to page 1 and forgets the page count.
func (c *Controller) OnResourceChanged() {
	c.update(func(s *State) bool {
		s.PageCount = 0
		s.CurrentPage = 1
		return true
	})
}

// CanPrev reports whether there is a page before the current one.
func (c *Controller) CanPrev() bool {
	s := c.State()
	return s.Known() && s.CurrentPage-1 > 0
}

// CanNext reports whether there is a page after the current one.
func (c *Controller) CanNext() bool {
	s := c.State()
	return s.Known() && s.CurrentPage+1 <= s.PageCount
}

// Prev moves back one page if CanPrev.
func (c *Controller) Prev() bool {
	return c.update(func(s *State) bool {
		if !s.Known() || s.CurrentPage-1 <= 0 {
			return false
		}
		s.CurrentPage--
		return true
	})
}

// Next moves forward one page if CanNext.
func (c *Controller) Next() bool {
	return c.update(func(s *State) bool {
		if !s.Known() || s.CurrentPage+1 > s.PageCount {
			return false
		}
		s.CurrentPage++
		return true
	})
}

func (c *Controller) update(fn func(*State) bool) bool {
	c.mu.Lock()
	if !fn(&c.state) {
		c.mu.Unlock()
		return false
	}
	state := c.state
	listeners := append([]func(State){}, c.listeners...)
	c.mu.Unlock()

	for _, l := range listeners {
		l(state)
	}
	return true
}
