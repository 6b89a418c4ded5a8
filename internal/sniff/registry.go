package sniff

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// PeekWindow is the bounded read-ahead every recognizer probes against.
// Generous enough for a full tar block followed by a complete archive
// header.
const PeekWindow = 64 << 10

// ErrDuplicateFormat is returned when two descriptors register the same
// canonical name.
var ErrDuplicateFormat = errors.New("format already registered")

// Desc is an immutable recognizer+constructor for one format. Descriptors
// are registered once at startup and never mutated after.
type Desc struct {
	// Name is the canonical unique id.
	Name string
	// Label is the stack entry recorded when this format is peeled. Empty
	// marks a transparent layer (generic single-member containers).
	Label string
	// Priority orders probing: lower probed first, ties broken by
	// registration order. Negative values probe before the generic
	// heuristics.
	Priority int
	// Mimes accepted by this format, matched against the sniffed hint.
	// Empty admits any mime type.
	Mimes []string
	// Extensions are the file-name suffixes this format conventionally
	// carries; the constructor strips them from the stage name.
	Extensions []string
	// NonRepeatable prevents re-application onto a stage this descriptor
	// itself produced.
	NonRepeatable bool
	// Sniff inspects the peek window. Nil means the mime prefilter alone
	// decides. It must not read past the window and must be side-effect
	// free.
	Sniff func(peek []byte, mime *mimetype.MIME) bool
	// Open constructs the next stage from the accepted parent. On error it
	// must release everything it created; the parent stays owned by the
	// caller.
	Open func(ctx context.Context, parent *Stage) (*Stage, error)
}

func (d *Desc) matches(mime *mimetype.MIME) bool {
	if len(d.Mimes) == 0 {
		return true
	}
	for _, m := range d.Mimes {
		if mime.Is(m) {
			return true
		}
	}
	return false
}

// Registry is the ordered descriptor set probed against every stage. Probe
// order is a pure function of (priority, registration order).
type Registry struct {
	entries []*Desc
	names   map[string]struct{}
	logger  *zap.Logger
}

func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{names: make(map[string]struct{}), logger: logger}
}

// Register inserts d maintaining priority order. Duplicate canonical names
// are rejected.
func (r *Registry) Register(d *Desc) error {
	if d.Name == "" {
		return errors.New("descriptor has no name")
	}
	if _, dup := r.names[d.Name]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateFormat, d.Name)
	}
	r.names[d.Name] = struct{}{}
	// stable insertion: equal priorities keep registration order
	pos := len(r.entries)
	for i, cur := range r.entries {
		if d.Priority < cur.Priority {
			pos = i
			break
		}
	}
	r.entries = append(r.entries, nil)
	copy(r.entries[pos+1:], r.entries[pos:])
	r.entries[pos] = d
	return nil
}

// MustRegister registers a fixed startup descriptor set and panics on a
// duplicate.
func (r *Registry) MustRegister(descs ...*Desc) {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Names returns the registered canonical names, sorted.
func (r *Registry) Names() []string {
	names := lo.Keys(r.names)
	slices.Sort(names)
	return names
}

// Resolve probes stage against every candidate in priority order and
// returns the first descriptor accepting it, or nil when the stage is
// terminal. Probing never advances the stage's read position.
func (r *Registry) Resolve(stage *Stage) (*Desc, error) {
	peek, err := stage.Peek(PeekWindow)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to peek %s: %w", stage.Name(), err)
	}
	if len(peek) == 0 {
		return nil, nil
	}
	hint := mimetype.Detect(peek)
	for _, d := range r.entries {
		if d.NonRepeatable && stage.desc == d {
			continue
		}
		if !d.matches(hint) {
			continue
		}
		if d.Sniff != nil && !d.Sniff(peek, hint) {
			continue
		}
		r.logger.Debug("format recognized",
			zap.String("format", d.Name),
			zap.String("mime", hint.String()),
			zap.String("name", stage.Name()))
		return d, nil
	}
	r.logger.Debug("stage is terminal",
		zap.String("mime", hint.String()),
		zap.Strings("stack", stage.Stack()))
	return nil, nil
}

// Open builds the full decode chain for the source: resolve and construct
// stages until no descriptor accepts, then return the terminal stage with
// its accumulated stack. The partial chain is closed on any error.
func (r *Registry) Open(ctx context.Context, name string, src io.Reader) (*Stage, error) {
	stage := NewSource(name, src)
	for {
		d, err := r.Resolve(stage)
		if err != nil {
			stage.Close()
			return nil, err
		}
		if d == nil {
			return stage, nil
		}
		next, err := d.Open(ctx, stage)
		if err != nil {
			stage.Close()
			return nil, fmt.Errorf("failed to open %s layer: %w", d.Name, err)
		}
		next.desc = d
		stage = next
	}
}
