package value

import (
	"errors"
	"testing"
)

func TestEmptyHasNoValue(t *testing.T) {
	v := Empty()
	if v.HasValue() {
		t.Fatal("zero Value must have HasValue() == false")
	}
	if _, err := v.Int64(true); !errors.Is(err, ErrNoValue) {
		t.Fatalf("reading empty Value: got %v, want ErrNoValue", err)
	}
}

func TestNullIsDistinctFromEmpty(t *testing.T) {
	n := Null()
	if !n.HasValue() {
		t.Fatal("Null() must have HasValue() == true")
	}
	if n.Kind() != KindNull {
		t.Fatalf("Kind() = %v, want KindNull", n.Kind())
	}
}

func TestExactTypeRoundTrip(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		get  func(Value) (any, error)
		want any
	}{
		{"bool", Bool(true), func(v Value) (any, error) { return v.Bool() }, true},
		{"int64", Int64(-7), func(v Value) (any, error) { return v.Int64(false) }, int64(-7)},
		{"uint64", Uint64(7), func(v Value) (any, error) { return v.Uint64(false) }, uint64(7)},
		{"float64", Float64(1.5), func(v Value) (any, error) { return v.Float64(false) }, 1.5},
		{"string", OwnedString("hi"), func(v Value) (any, error) { return v.String() }, "hi"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got, err := c.get(c.v)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != c.want {
				t.Fatalf("got %v, want %v", got, c.want)
			}
		})
	}
}

func TestMismatchedExactTypeFails(t *testing.T) {
	v := Int32(5)
	if _, err := v.String(); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("got %v, want ErrTypeMismatch", err)
	}
}

func TestConvertOnReadNumericWidening(t *testing.T) {
	v := Uint8(200)
	got, err := v.Int64(true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 200 {
		t.Fatalf("got %d, want 200", got)
	}
}

func TestConvertOnReadRejectsOutOfRange(t *testing.T) {
	v := Int64(-1)
	if _, err := v.Uint64(true); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("got %v, want ErrTypeMismatch for negative->uint64", err)
	}
}

func TestConvertOnReadNeverCoercesFloatToInt(t *testing.T) {
	v := Float64(3.5)
	if _, err := v.Int64(true); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("got %v, want ErrTypeMismatch for float->int", err)
	}
}

func TestCopyMakesStringOwned(t *testing.T) {
	src := "borrowed"
	v := BorrowedString(src)
	if v.Owned() {
		t.Fatal("BorrowedString must not be Owned")
	}
	cp := v.Copy()
	if !cp.Owned() {
		t.Fatal("Copy() of a String Value must be Owned")
	}
	got, _ := cp.String()
	if got != src {
		t.Fatalf("got %q, want %q", got, src)
	}
}

func TestCopyMakesRawOwned(t *testing.T) {
	buf := []byte{1, 2, 3}
	v := BorrowedRaw(buf)
	cp := v.Copy()
	buf[0] = 0xFF
	got, _ := cp.Raw()
	if got[0] != 1 {
		t.Fatalf("Copy() of Raw must be independent of source mutation, got %v", got)
	}
}
