package command

import (
	"context"
	"strings"
	"testing"

	"github.com/oriys/iotagent/internal/action"
	"github.com/oriys/iotagent/internal/value"
)

func TestMarshalEscapesStringParameter(t *testing.T) {
	decl := action.New("run")
	_ = decl.AddParameter(action.Parameter{Name: "msg", Direction: action.InRequired, Type: value.KindString})
	req := action.NewRequest("r1", "run")
	req.Bind("msg", value.OwnedString("a\"b\nc"))

	args, err := Marshal(decl, req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := `--msg="a\"b\nc"`
	if len(args) != 1 || args[0] != want {
		t.Fatalf("args = %v, want [%q]", args, want)
	}
}

func TestMarshalOmitsAbsentOptionalParameter(t *testing.T) {
	decl := action.New("run")
	_ = decl.AddParameter(action.Parameter{Name: "title", Direction: action.In, Type: value.KindString})
	req := action.NewRequest("r1", "run")

	args, err := Marshal(decl, req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if len(args) != 0 {
		t.Fatalf("args = %v, want empty", args)
	}
}

func TestMarshalBoolIntFloatRaw(t *testing.T) {
	decl := action.New("run")
	_ = decl.AddParameter(action.Parameter{Name: "b", Direction: action.In, Type: value.KindBool})
	_ = decl.AddParameter(action.Parameter{Name: "n", Direction: action.In, Type: value.KindInt32})
	_ = decl.AddParameter(action.Parameter{Name: "f", Direction: action.In, Type: value.KindFloat64})
	_ = decl.AddParameter(action.Parameter{Name: "r", Direction: action.In, Type: value.KindRaw})

	req := action.NewRequest("r1", "run")
	req.Bind("b", value.Bool(true))
	req.Bind("n", value.Int32(-5))
	req.Bind("f", value.Float64(1.5))
	req.Bind("r", value.OwnedRaw([]byte{1, 2, 3}))

	args, err := Marshal(decl, req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	joined := strings.Join(args, " ")
	for _, want := range []string{"--b=1", "--n=-5", "--f=1.5", "--r=AQID"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("args %v missing %q", args, want)
		}
	}
}

func TestMarshalNullAndLocation(t *testing.T) {
	decl := action.New("run")
	_ = decl.AddParameter(action.Parameter{Name: "x", Direction: action.In, Type: value.KindString})
	_ = decl.AddParameter(action.Parameter{Name: "loc", Direction: action.In, Type: value.KindLocation})

	req := action.NewRequest("r1", "run")
	req.Bind("x", value.Null())
	req.Bind("loc", value.LocationValue(1.5, -2.5))

	args, err := Marshal(decl, req)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	joined := strings.Join(args, " ")
	if !strings.Contains(joined, "--x=[NULL]") {
		t.Fatalf("args %v missing null token", args)
	}
	if !strings.Contains(joined, "--loc=[1.5,-2.5]") {
		t.Fatalf("args %v missing location token", args)
	}
}

func TestRunCapturesExitCodeAndOutput(t *testing.T) {
	decl := action.New("run")
	decl.Handler = action.Handler{Kind: action.HandlerExternalCommand, ExternalCommand: "/bin/sh"}
	r := Run(context.Background(), decl, []string{"-c", "echo hello; exit 3"})
	if r.Retval != 3 {
		t.Fatalf("Retval = %d, want 3", r.Retval)
	}
	if strings.TrimSpace(r.Stdout) != "hello" {
		t.Fatalf("Stdout = %q, want %q", r.Stdout, "hello")
	}
}

func TestRunFailureToStartYieldsNegativeOneRetval(t *testing.T) {
	decl := action.New("run")
	decl.Handler = action.Handler{Kind: action.HandlerExternalCommand, ExternalCommand: "/no/such/binary"}
	r := Run(context.Background(), decl, nil)
	if r.Retval != -1 {
		t.Fatalf("Retval = %d, want -1", r.Retval)
	}
	if r.Stderr == "" {
		t.Fatal("expected Stderr to carry the OS error")
	}
}

func TestToOutParametersBindsThreeSyntheticParameters(t *testing.T) {
	req := action.NewRequest("r1", "run")
	ToOutParameters(req, Result{Retval: 0, Stdout: "out", Stderr: "err"})
	for _, name := range []string{"retval", "stdout", "stderr"} {
		if _, ok := req.Get(name); !ok {
			t.Fatalf("missing synthetic parameter %q", name)
		}
	}
}
