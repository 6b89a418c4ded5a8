package sniff

import (
	"io"
	"strings"
)

// Stage is one node of the decode chain: a readable byte source plus the
// stack of format labels peeled to reach it. A stage exclusively owns its
// parent; closing a stage closes the parent, so releasing the terminal
// stage releases the whole chain on every exit path.
type Stage struct {
	name    string
	rd      *peekReader
	parent  *Stage
	stack   []string
	meta    any
	desc    *Desc        // descriptor that produced this stage
	closer  func() error // stage-owned resource, released before the parent
	drained bool
	closed  bool
}

// NewSource wraps the raw input as stage zero of a chain.
func NewSource(name string, r io.Reader) *Stage {
	return &Stage{name: name, rd: newPeekReader(r)}
}

// WrapConfig describes the stage a descriptor builds on top of its parent.
type WrapConfig struct {
	// Label is appended to the parent's compressions stack. Empty marks a
	// transparent layer (generic single-member containers) that contributes
	// no stack entry.
	Label string
	// Name overrides the stage name, e.g. with a container member name.
	// Empty keeps the parent's name.
	Name string
	// Reader is the decoded byte source. The parent itself is a valid
	// reader for pass-through stages.
	Reader io.Reader
	// Closer releases stage-owned resources before the parent is closed.
	Closer func() error
	// Meta carries format-specific metadata captured at construction.
	Meta any
}

// Wrap builds the next stage of the chain on top of parent.
func Wrap(parent *Stage, cfg WrapConfig) *Stage {
	stack := make([]string, len(parent.stack), len(parent.stack)+1)
	copy(stack, parent.stack)
	if cfg.Label != "" {
		stack = append(stack, cfg.Label)
	}
	name := cfg.Name
	if name == "" {
		name = parent.name
	}
	return &Stage{
		name:   name,
		rd:     newPeekReader(cfg.Reader),
		parent: parent,
		stack:  stack,
		meta:   cfg.Meta,
		closer: cfg.Closer,
	}
}

func (s *Stage) Name() string { return s.name }

// Stack returns the ordered format labels peeled so far, outermost first.
// The last entry identifies the terminal payload kind.
func (s *Stage) Stack() []string {
	out := make([]string, len(s.stack))
	copy(out, s.stack)
	return out
}

// Meta returns the format-specific metadata captured when the stage was
// constructed, or nil.
func (s *Stage) Meta() any { return s.meta }

// Peek returns up to n bytes without advancing the read position.
func (s *Stage) Peek(n int) ([]byte, error) {
	return s.rd.Peek(n)
}

func (s *Stage) Read(p []byte) (int, error) {
	n, err := s.rd.Read(p)
	if err == io.EOF {
		s.drained = true
	}
	return n, err
}

// Drained reports whether the stage was read through to EOF.
func (s *Stage) Drained() bool { return s.drained }

// Close releases the stage and cascades to its parent. It is idempotent;
// the first error wins but the cascade always completes.
func (s *Stage) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	var err error
	if s.closer != nil {
		err = s.closer()
	}
	if s.parent != nil {
		if perr := s.parent.Close(); err == nil {
			err = perr
		}
	}
	return err
}

// TrimExt strips the first matching extension from name, mirroring how each
// peeled layer reveals the inner file's name.
func TrimExt(name string, exts ...string) string {
	for _, ext := range exts {
		if suf := "." + ext; strings.HasSuffix(name, suf) && len(name) > len(suf) {
			return strings.TrimSuffix(name, suf)
		}
	}
	return name
}
