// Package variables resolves late-bound ${NAME} and %%NAME%% references in step settings.
package variables

import (
	"os"
	"strings"
	"sync"
)

// Space is a set of named variables safe for concurrent use.
type Space struct {
	mu     sync.RWMutex
	values map[string]string
	parent *Space
}

// New returns an empty space. Names missing from the space are looked up in parent, if any.
func New(parent *Space) *Space {
	return &Space{values: map[string]string{}, parent: parent}
}

// FromEnviron returns a space holding the process environment.
func FromEnviron() *Space {
	s := New(nil)
	for _, kv := range os.Environ() {
		name, value, ok := strings.Cut(kv, "=")
		if ok {
			s.Set(name, value)
		}
	}

	return s
}

// Set defines name in this space, hiding any value of the parent.
func (s *Space) Set(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values[name] = value
}

// Get returns the value of name.
func (s *Space) Get(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	s.mu.RLock()
	v, ok := s.values[name]
	s.mu.RUnlock()
	if ok {
		return v, true
	}

	return s.parent.Get(name)
}

// Substitute replaces every ${NAME} and %%NAME%% in text by the value of NAME. Unknown and
// unterminated references are left untouched.
func (s *Space) Substitute(text string) string {
	if !strings.Contains(text, "${") && !strings.Contains(text, "%%") {
		return text
	}
	text = s.expand(text, "${", "}")

	return s.expand(text, "%%", "%%")
}

func (s *Space) expand(text, open, closing string) string {
	var sb strings.Builder

	for {
		start := strings.Index(text, open)
		if start < 0 {
			break
		}
		end := strings.Index(text[start+len(open):], closing)
		if end < 0 {
			break
		}
		end += start + len(open)

		name := text[start+len(open) : end]
		sb.WriteString(text[:start])
		if v, ok := s.Get(name); ok && name != "" {
			sb.WriteString(v)
		} else {
			sb.WriteString(text[start : end+len(closing)])
		}
		text = text[end+len(closing):]
	}
	sb.WriteString(text)

	return sb.String()
}
