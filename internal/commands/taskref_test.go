package commands

import (
	"errors"
	"testing"
)

func TestParseTaskRef_Number(t *testing.T) {
	ref, rest, err := ParseTaskRef([]string{"5", "done"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Num != 5 || ref.ID != "" {
		t.Errorf("expected number 5, got %+v", ref)
	}
	if len(rest) != 1 || rest[0] != "done" {
		t.Errorf("expected remaining [done], got %v", rest)
	}
}

func TestParseTaskRef_ID(t *testing.T) {
	tests := []struct {
		arg  string
		want string
	}{
		{"3f2a-11", "3f2a-11"},
		{"#42", "42"},
		{"#task-9", "task-9"},
		{" abc ", "abc"},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			ref, _, err := ParseTaskRef([]string{tt.arg})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if ref.ID != tt.want || ref.Num != 0 {
				t.Errorf("expected id %q, got %+v", tt.want, ref)
			}
			if ref.String() != tt.want {
				t.Errorf("expected String %q, got %q", tt.want, ref.String())
			}
		})
	}
}

func TestParseTaskRef_Required(t *testing.T) {
	for _, args := range [][]string{nil, {}, {"  "}} {
		_, _, err := ParseTaskRef(args)
		if !errors.Is(err, ErrTaskRefRequired) {
			t.Errorf("args %q: expected ErrTaskRefRequired, got %v", args, err)
		}
	}
}

func TestParseTaskRef_Invalid(t *testing.T) {
	for _, arg := range []string{"#", "a b"} {
		_, _, err := ParseTaskRef([]string{arg})
		if err == nil {
			t.Fatalf("expected error for %q", arg)
		}
		want := "invalid task reference: " + arg
		if err.Error() != want {
			t.Errorf("expected %q, got %q", want, err.Error())
		}
	}
}

func TestParseTaskRef_ZeroIsANumber(t *testing.T) {
	ref, _, err := ParseTaskRef([]string{"0"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ref.Num != 0 || ref.ID != "" {
		t.Errorf("expected number 0, got %+v", ref)
	}
}
