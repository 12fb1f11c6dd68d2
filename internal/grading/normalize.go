package grading

import "strconv"

// NormalizeAnswer resolves a submitted answer to the text that gets stored.
// A valid option index becomes the option text; everything else (free text,
// negative or out-of-range index, no options) is kept verbatim.
func NormalizeAnswer(answer string, options []string) string {
	idx, err := strconv.Atoi(answer)
	if err != nil {
		return answer
	}
	if idx < 0 || idx >= len(options) {
		return answer
	}
	return options[idx]
}

// NormalizeAnswerPtr is NormalizeAnswer for nullable answers; nil stays nil.
func NormalizeAnswerPtr(answer *string, options []string) *string {
	if answer == nil {
		return nil
	}
	v := NormalizeAnswer(*answer, options)
	return &v
}
