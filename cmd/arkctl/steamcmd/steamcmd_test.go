package steamcmd

import "testing"

func TestParseProgress(t *testing.T) {
	cases := []struct {
		line    string
		want    int
		wantOk  bool
	}{
		{"Update state (0x61) downloading, progress: 42.17 (123456 / 789012)", 42, true},
		{"Update state (0x5) finalizing, progress: 99.99 (1 / 1)", 99, true},
		{"Success! App '2430930' fully installed.", 0, false},
	}
	for _, c := range cases {
		got, ok := parseProgress(c.line)
		if ok != c.wantOk {
			t.Fatalf("parseProgress(%q) ok = %v, want %v", c.line, ok, c.wantOk)
		}
		if ok && got != c.want {
			t.Fatalf("parseProgress(%q) = %d, want %d", c.line, got, c.want)
		}
	}
}

func TestRingBufferCaps(t *testing.T) {
	r := newRingBuffer(3)
	for _, l := range []string{"a", "b", "c", "d", "e"} {
		r.add(l)
	}
	got := r.lines()
	want := []string{"c", "d", "e"}
	if len(got) != len(want) {
		t.Fatalf("lines() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("lines()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
