package vm

import "testing"

func TestMatchesTypeArrayToArrayRequiresExactDescriptor(t *testing.T) {
	m := newTestMachine()
	if !m.matchesType("[I", "[I") {
		t.Error("[I should match [I")
	}
	if m.matchesType("[I", "[J") {
		t.Error("[I should not match [J")
	}
	if m.matchesType("[Ljava/lang/String;", "[I") {
		t.Error("[Ljava/lang/String; should not match [I")
	}
}

func TestMatchesTypeArrayAgainstObjectSupertypes(t *testing.T) {
	m := newTestMachine()
	for _, target := range []string{"java/lang/Object", "java/lang/Cloneable", "java/io/Serializable"} {
		if !m.matchesType("[I", target) {
			t.Errorf("[I should be assignable to %s", target)
		}
	}
	if m.matchesType("[I", "java/lang/Number") {
		t.Error("[I should not be assignable to java/lang/Number")
	}
}
