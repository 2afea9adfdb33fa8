package action

import (
	"errors"
	"testing"

	"github.com/oriys/iotagent/internal/value"
)

func echoAction() *Action {
	a := New("echo")
	_ = a.AddParameter(Parameter{Name: "in", Direction: InRequired, Type: value.KindString})
	_ = a.AddParameter(Parameter{Name: "out", Direction: Out, Type: value.KindString})
	return a
}

func TestValidateRequiredPresent(t *testing.T) {
	a := echoAction()
	req := NewRequest("r1", "echo")
	req.Bind("in", value.OwnedString("hello"))
	if err := Validate(a, req); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRequiredMissing(t *testing.T) {
	a := echoAction()
	req := NewRequest("r1", "echo")
	if err := Validate(a, req); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("got %v, want ErrBadRequest", err)
	}
}

func TestValidateTypeMismatch(t *testing.T) {
	a := echoAction()
	req := NewRequest("r1", "echo")
	req.Bind("in", value.Int32(5))
	if err := Validate(a, req); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("got %v, want ErrBadRequest for type mismatch", err)
	}
}

func TestValidateOptionalInMayBeAbsent(t *testing.T) {
	a := New("greet")
	_ = a.AddParameter(Parameter{Name: "title", Direction: In, Type: value.KindString})
	req := NewRequest("r1", "greet")
	if err := Validate(a, req); err != nil {
		t.Fatalf("Validate with absent optional In: %v", err)
	}
}

func TestValidateNumericCoercionAcrossDeclaredTypes(t *testing.T) {
	a := New("set")
	_ = a.AddParameter(Parameter{Name: "n", Direction: InRequired, Type: value.KindInt64})
	req := NewRequest("r1", "set")
	req.Bind("n", value.Uint8(5))
	if err := Validate(a, req); err != nil {
		t.Fatalf("Validate numeric cross-type: %v", err)
	}
}

func TestTooManyParametersRejected(t *testing.T) {
	a := New("overflow")
	for i := 0; i < ParameterMax; i++ {
		if err := a.AddParameter(Parameter{Name: "p", Direction: In, Type: value.KindBool}); err != nil {
			t.Fatalf("AddParameter #%d: %v", i, err)
		}
	}
	if err := a.AddParameter(Parameter{Name: "overflow", Direction: In, Type: value.KindBool}); !errors.Is(err, ErrTooManyParameters) {
		t.Fatalf("got %v, want ErrTooManyParameters", err)
	}
}
