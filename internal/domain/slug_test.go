package domain

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"My Cool App!!", "my-cool-app"},
		{"my-cool-app", "my-cool-app"},
		{"Hello_World", "hello-world"},
		{"  spaced  out  ", "spaced-out"},
		{"--already--hyphenated--", "already-hyphenated"},
		{"App 2.0 (beta)", "app-2-0-beta"},
		{"!!!", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := Slugify(tc.in); got != tc.want {
			t.Fatalf("Slugify(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestServiceStatusValues(t *testing.T) {
	statuses := []string{ServiceStatusRunning, ServiceStatusStopped, ServiceStatusError}
	seen := make(map[string]bool, len(statuses))
	for _, s := range statuses {
		if s == "" {
			t.Fatal("service status must not be empty")
		}
		if seen[s] {
			t.Fatalf("duplicate service status %q", s)
		}
		seen[s] = true
	}
	if !ValidServiceAction(ActionEnable) {
		t.Fatal("enable is a dispatchable action")
	}
	if ValidGlobalAction(ActionEnable) {
		t.Fatal("enable must stay per-service")
	}
	if !ValidGlobalAction(ActionRestart) {
		t.Fatal("restart is a global action")
	}
}
