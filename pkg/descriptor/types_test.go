package descriptor

import "testing"

func TestParseField(t *testing.T) {
	tests := []struct {
		in       string
		wantKind Kind
		wantN    int
	}{
		{"I", KindInt, 1},
		{"J", KindLong, 1},
		{"Ljava/lang/String;", KindObject, 18},
		{"[I", KindArray, 2},
		{"[[Ljava/lang/String;", KindArray, 20},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			ft, n, err := ParseField(tt.in)
			if err != nil {
				t.Fatalf("ParseField(%q): %v", tt.in, err)
			}
			if ft.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", ft.Kind, tt.wantKind)
			}
			if n != tt.wantN {
				t.Errorf("consumed = %d, want %d", n, tt.wantN)
			}
			if ft.String() != tt.in {
				t.Errorf("round-trip = %q, want %q", ft.String(), tt.in)
			}
		})
	}
}

func TestParseMethod(t *testing.T) {
	md, err := ParseMethod("(ILjava/lang/String;J)D")
	if err != nil {
		t.Fatal(err)
	}
	if len(md.Params) != 3 {
		t.Fatalf("params = %d, want 3", len(md.Params))
	}
	if md.ParamSize != 4 { // I=1, L=1, J=2
		t.Errorf("ParamSize = %d, want 4", md.ParamSize)
	}
	if md.Return == nil || md.Return.Kind != KindDouble {
		t.Errorf("Return = %v, want double", md.Return)
	}
	if md.ArgSlots(true) != 5 {
		t.Errorf("ArgSlots(true) = %d, want 5", md.ArgSlots(true))
	}
}

func TestParseMethodVoid(t *testing.T) {
	md, err := ParseMethod("([Ljava/lang/String;)V")
	if err != nil {
		t.Fatal(err)
	}
	if md.Return != nil {
		t.Errorf("Return = %v, want nil (void)", md.Return)
	}
	if md.ParamSize != 1 {
		t.Errorf("ParamSize = %d, want 1", md.ParamSize)
	}
}

func TestParseMethodMalformed(t *testing.T) {
	if _, err := ParseMethod("III)V"); err == nil {
		t.Error("expected error for missing '('")
	}
	if _, err := ParseMethod("(III"); err == nil {
		t.Error("expected error for missing ')'")
	}
}
