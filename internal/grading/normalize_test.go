package grading

import "testing"

func TestNormalizeAnswer(t *testing.T) {
	opts := []string{"Berlin", "Paris", "Rome"}
	cases := []struct {
		name    string
		answer  string
		options []string
		want    string
	}{
		{"index resolves", "1", opts, "Paris"},
		{"first option", "0", opts, "Berlin"},
		{"out of range", "3", opts, "3"},
		{"negative", "-1", opts, "-1"},
		{"free text", "Paris", opts, "Paris"},
		{"no options", "42", nil, "42"},
		{"empty", "", opts, ""},
		{"padded index is text", " 1", opts, " 1"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeAnswer(tc.answer, tc.options); got != tc.want {
				t.Fatalf("NormalizeAnswer(%q) = %q, want %q", tc.answer, got, tc.want)
			}
		})
	}
}

func TestNormalizeAnswerPtrKeepsNil(t *testing.T) {
	if got := NormalizeAnswerPtr(nil, []string{"a"}); got != nil {
		t.Fatalf("want nil, got %q", *got)
	}
	a := "0"
	got := NormalizeAnswerPtr(&a, []string{"a"})
	if got == nil || *got != "a" {
		t.Fatalf("want a, got %v", got)
	}
	if a != "0" {
		t.Fatalf("input modified: %q", a)
	}
}
