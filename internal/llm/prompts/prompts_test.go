package prompts

import (
	"strings"
	"testing"

	"github.com/examforge/examforge/internal/model"
)

func TestGenerate(t *testing.T) {
	p := Generate("kubernetes networking", 7)

	for _, want := range []string{
		"kubernetes networking",
		"exactly 7 multiple-choice questions",
		`"questions"`,
		`"is_correct"`,
		`"resolution"`,
	} {
		if !strings.Contains(p, want) {
			t.Errorf("generate prompt missing %q", want)
		}
	}
}

func TestSubstitute(t *testing.T) {
	set := `{"0": {"question": "a"}, "1": {"question": "b"}}`
	p := Substitute(set, "1", "sql joins")

	for _, want := range []string{
		set,
		`position "1"`,
		`{"1": {"question"`,
		"sql joins",
		"must not repeat",
	} {
		if !strings.Contains(p, want) {
			t.Errorf("substitute prompt missing %q", want)
		}
	}
}

func TestVerify(t *testing.T) {
	payload := `{"question": "2+2?", "options": ["A) 4", "B) 5"]}`
	p := Verify(payload, "B) 5")

	for _, want := range []string{
		payload,
		"CHOSEN OPTION: B) 5",
		`"is_correct"`,
		`"explanation_chosen"`,
		`"explanation_correct"`,
	} {
		if !strings.Contains(p, want) {
			t.Errorf("verify prompt missing %q", want)
		}
	}
}

func TestFeedback(t *testing.T) {
	s := model.Summary{Topic: "http caching", Correct: 3, Wrong: 2, Total: 5, Score: 6.0}

	p := Feedback(s)
	for _, want := range []string{
		"http caching",
		"3 correct and 2 wrong out of 5",
		"score 6.0 of 10",
		`"feedback"`,
	} {
		if !strings.Contains(p, want) {
			t.Errorf("feedback prompt missing %q", want)
		}
	}
	if strings.Contains(p, "time limit expired") {
		t.Error("non-expired summary mentions expiry")
	}

	s.Expired = true
	if !strings.Contains(Feedback(s), "time limit expired") {
		t.Error("expired summary does not mention expiry")
	}
}
