package obslog

import "testing"

func TestIsTruthy(t *testing.T) {
	cases := map[string]bool{
		"1": true, "true": true, "TRUE": true, "yes": true,
		"0": false, "false": false, "": false, "nope": false,
	}
	for in, want := range cases {
		if got := isTruthy(in); got != want {
			t.Errorf("isTruthy(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestLevelFromEnv(t *testing.T) {
	t.Setenv("TASKGRAPH_LOG_LEVEL", "debug")
	if levelFromEnv().Level().String() != "DEBUG" {
		t.Fatalf("expected DEBUG level")
	}

	t.Setenv("TASKGRAPH_LOG_LEVEL", "")
	if levelFromEnv().Level().String() != "INFO" {
		t.Fatalf("expected INFO as the default level")
	}
}
