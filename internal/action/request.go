package action

import (
	"fmt"

	iotagent "github.com/oriys/iotagent"
	"github.com/oriys/iotagent/internal/option"
	"github.com/oriys/iotagent/internal/value"
)

// ErrBadRequest is returned by Validate when the bound parameters
// violate the declared direction or type constraints.
var ErrBadRequest = iotagent.New(iotagent.BadRequest, "action: bad request")

// BoundParameter is one (name, Value) pair bound inside a Request. It
// mirrors Parameter but carries the actual Value rather than just a
// declared type.
type BoundParameter struct {
	Name  string
	Value value.Value
}

// Request is a bound invocation of an Action traveling through the
// dispatch queue. ActionName identifies the declared Action;
// Parameters holds the caller-supplied bindings plus, after dispatch,
// any Out parameters the handler appended.
type Request struct {
	ID         string
	ActionName string
	Parameters []BoundParameter
	Options    *option.Store
}

// NewRequest constructs an empty, unbound Request for actionName.
func NewRequest(id, actionName string) *Request {
	return &Request{ID: id, ActionName: actionName, Options: option.New()}
}

// Bind attaches value v to the named parameter, overwriting a prior
// binding of the same name.
func (r *Request) Bind(name string, v value.Value) {
	for i := range r.Parameters {
		if r.Parameters[i].Name == name {
			r.Parameters[i].Value = v
			return
		}
	}
	r.Parameters = append(r.Parameters, BoundParameter{Name: name, Value: v})
}

// Clone deep-copies r: its name, parameter array, and every owned
// string/raw payload are duplicated so the result shares no mutable
// state with r. This is the copy-into-arena semantics cross-thread
// request delivery requires — the dispatch package calls Clone when
// it deep-copies an incoming request into a queue slot.
func (r *Request) Clone() *Request {
	cp := &Request{
		ID:         r.ID,
		ActionName: r.ActionName,
		Parameters: make([]BoundParameter, len(r.Parameters)),
		Options:    option.New(),
	}
	for i, p := range r.Parameters {
		cp.Parameters[i] = BoundParameter{Name: p.Name, Value: p.Value.Copy()}
	}
	r.Options.Each(func(name string, v value.Value) bool {
		_ = cp.Options.Set(name, v.Copy())
		return true
	})
	return cp
}

// CopySize estimates the number of bytes Clone would need to copy r
// into a slot's arena: the sum of each parameter's Value payload
// length plus a fixed per-parameter overhead.
func (r *Request) CopySize() int {
	const perParamOverhead = 32
	size := len(r.ActionName) + len(r.ID)
	for _, p := range r.Parameters {
		size += perParamOverhead
		switch p.Value.Kind() {
		case value.KindString:
			if s, err := p.Value.String(); err == nil {
				size += len(s)
			}
		case value.KindRaw:
			if b, err := p.Value.Raw(); err == nil {
				size += len(b)
			}
		}
	}
	return size
}

// Get returns the bound Value for name, if any.
func (r *Request) Get(name string) (value.Value, bool) {
	for _, p := range r.Parameters {
		if p.Name == name {
			return p.Value, true
		}
	}
	return value.Value{}, false
}

// Validate checks req's bound parameters against decl's declared
// Parameters per their direction rules:
//
//   - InRequired: req must supply a HasValue==true Value of the
//     declared type, or a numeric value coercible to it.
//   - In: may be absent; if present, type must match (with coercion).
//   - Out: never required from the caller; the handler supplies it.
//   - InOut: both the In and Out constraints apply, so it behaves like
//     In for validation purposes.
//
// Extra parameters in req beyond decl's declarations are permitted —
// they become the handler's additional Out bindings.
func Validate(decl *Action, req *Request) error {
	for _, p := range decl.Parameters {
		if p.Direction == Out {
			continue
		}
		bound, ok := req.Get(p.Name)
		if !ok || !bound.HasValue() {
			if p.Direction == InRequired {
				return fmt.Errorf("%w: missing required parameter %q", ErrBadRequest, p.Name)
			}
			continue
		}
		if !typeCompatible(bound.Kind(), p.Type) {
			return fmt.Errorf("%w: parameter %q has type %s, want %s", ErrBadRequest, p.Name, bound.Kind(), p.Type)
		}
	}
	return nil
}

func typeCompatible(got, want value.Kind) bool {
	if got == want {
		return true
	}
	return got.IsNumeric() && want.IsNumeric()
}
