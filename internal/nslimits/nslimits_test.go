package nslimits

import "testing"

func TestSplitProcValue(t *testing.T) {
	name, value, err := splitProcValue("max_user_namespaces=0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if name != "max_user_namespaces" || value != 0 {
		t.Fatalf("got (%q, %d)", name, value)
	}

	if _, _, err := splitProcValue("malformed"); err == nil {
		t.Fatal("expected error for malformed pair")
	}
}

func TestIsSelfApplyInvocation(t *testing.T) {
	if IsSelfApplyInvocation([]string{"bubblejail"}) {
		t.Fatal("expected false for short argv")
	}
	if !IsSelfApplyInvocation([]string{"bubblejail", selfApplyFlag, "123"}) {
		t.Fatal("expected true when flag present")
	}
}
