// Package session implements the assessment session engine: the question
// set store, answer ledger, countdown timer, session controller, and result
// projector for one running assessment attempt.
package session

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/examforge/examforge/internal/model"
)

// Generator output is duck-typed: different prompt revisions emitted
// different field names. All alias handling lives here; after ingestion the
// rest of the engine only sees canonical model.Question records.
var (
	promptAliases      = []string{"question", "text", "prompt", "enunciado"}
	optionsAliases     = []string{"options", "alternativas", "choices"}
	optionTextAliases  = []string{"option", "text", "value"}
	explanationAliases = []string{"resolution", "explanation", "explicacao"}
	correctAliases     = []string{"correct_option", "correctAnswer", "answer"}
)

var optionLabels = []string{"A", "B", "C", "D", "E", "F", "G", "H"}

// Normalize converts one raw generator payload into a canonical Question.
// The raw payload is kept verbatim for later evaluator calls. An error means
// the entry is malformed (no prompt or no options) and must be filtered out.
func Normalize(raw json.RawMessage) (model.Question, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Question{}, fmt.Errorf("decode question payload: %w", err)
	}

	q := model.Question{Raw: append(json.RawMessage(nil), raw...)}

	for _, key := range promptAliases {
		if s, ok := stringField(fields, key); ok && s != "" {
			q.Prompt = s
			break
		}
	}
	if q.Prompt == "" {
		return model.Question{}, fmt.Errorf("question payload has no prompt field")
	}

	if s, ok := stringField(fields, "id"); ok {
		q.ID = s
	}

	for _, key := range optionsAliases {
		rawList, ok := fields[key]
		if !ok {
			continue
		}
		opts, err := parseOptions(rawList)
		if err != nil {
			return model.Question{}, fmt.Errorf("parse %q: %w", key, err)
		}
		q.Options = opts
		break
	}
	if len(q.Options) == 0 {
		return model.Question{}, fmt.Errorf("question payload has no options")
	}

	for _, key := range explanationAliases {
		if s, ok := stringField(fields, key); ok && s != "" {
			q.Explanation = s
			break
		}
	}

	for _, key := range correctAliases {
		if s, ok := stringField(fields, key); ok && s != "" {
			q.CorrectOption = s
			break
		}
	}
	if q.CorrectOption == "" {
		for _, opt := range q.Options {
			if opt.Correct {
				q.CorrectOption = opt.Text
				break
			}
		}
	}

	return q, nil
}

func parseOptions(raw json.RawMessage) ([]model.Option, error) {
	var entries []json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("options is not a list: %w", err)
	}

	var opts []model.Option
	for i, entry := range entries {
		var text string
		var correct bool

		var s string
		if err := json.Unmarshal(entry, &s); err == nil {
			text = s
		} else {
			var obj map[string]json.RawMessage
			if err := json.Unmarshal(entry, &obj); err != nil {
				return nil, fmt.Errorf("option %d has unsupported shape", i)
			}
			for _, key := range optionTextAliases {
				if v, ok := stringField(obj, key); ok && v != "" {
					text = v
					break
				}
			}
			for _, key := range []string{"is_correct", "correct"} {
				if rawFlag, ok := obj[key]; ok {
					_ = json.Unmarshal(rawFlag, &correct)
					break
				}
			}
		}
		if text == "" {
			continue
		}
		opts = append(opts, model.Option{
			Label:   optionLabel(text, len(opts)),
			Text:    text,
			Correct: correct,
		})
	}
	return opts, nil
}

// optionLabel extracts a leading "A)" style marker when present, otherwise
// assigns the next label by position.
func optionLabel(text string, index int) string {
	if len(text) >= 2 && text[1] == ')' {
		letter := strings.ToUpper(text[:1])
		if letter >= "A" && letter <= "Z" {
			return letter
		}
	}
	if index < len(optionLabels) {
		return optionLabels[index]
	}
	return strconv.Itoa(index + 1)
}

func stringField(fields map[string]json.RawMessage, key string) (string, bool) {
	raw, ok := fields[key]
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Tolerate numeric ids.
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", false
		}
		return n.String(), true
	}
	return s, true
}

// QuestionSet holds the ordered questions of one session. Identities are
// stable across replacement of other slots; replacing a slot keeps the
// slot's original identity.
type QuestionSet struct {
	items []model.Question
}

// NewQuestionSet ingests the generator's raw output, filtering out malformed
// entries while preserving the relative order of the remainder. Entries
// without an id get an assigned one; identities are unique within the set,
// so an assigned id never shadows an explicit one (and a repeated explicit
// id is replaced rather than letting two slots share a ledger identity).
func NewQuestionSet(raw []json.RawMessage) *QuestionSet {
	qs := &QuestionSet{}
	used := make(map[string]bool)
	var unassigned []int
	for _, payload := range raw {
		q, err := Normalize(payload)
		if err != nil {
			continue
		}
		if q.ID != "" && used[q.ID] {
			q.ID = ""
		}
		if q.ID == "" {
			unassigned = append(unassigned, len(qs.items))
		} else {
			used[q.ID] = true
		}
		qs.items = append(qs.items, q)
	}

	next := 1
	for _, pos := range unassigned {
		var id string
		for {
			id = fmt.Sprintf("q%d", next)
			next++
			if !used[id] {
				break
			}
		}
		used[id] = true
		qs.items[pos].ID = id
	}
	return qs
}

// Len returns the number of questions in the set.
func (qs *QuestionSet) Len() int { return len(qs.items) }

// ByPosition returns a copy of the question at the given 0-indexed position.
func (qs *QuestionSet) ByPosition(pos int) (model.Question, bool) {
	if pos < 0 || pos >= len(qs.items) {
		return model.Question{}, false
	}
	return copyQuestion(qs.items[pos]), true
}

// ByID returns a copy of the question with the given identity.
func (qs *QuestionSet) ByID(id string) (model.Question, bool) {
	for _, q := range qs.items {
		if q.ID == id {
			return copyQuestion(q), true
		}
	}
	return model.Question{}, false
}

// Replace splices a replacement payload into the given slot, preserving the
// slot's identity and leaving every other slot untouched. The payload must
// normalize to a valid question.
func (qs *QuestionSet) Replace(pos int, raw json.RawMessage) error {
	if pos < 0 || pos >= len(qs.items) {
		return fmt.Errorf("replace position %d out of range [0,%d)", pos, len(qs.items))
	}
	q, err := Normalize(raw)
	if err != nil {
		return err
	}
	q.ID = qs.items[pos].ID
	qs.items[pos] = q
	return nil
}

// Questions returns a deep copy of the ordered set.
func (qs *QuestionSet) Questions() []model.Question {
	out := make([]model.Question, len(qs.items))
	for i, q := range qs.items {
		out[i] = copyQuestion(q)
	}
	return out
}

// RawSet returns the original payloads keyed by 0-based position, the shape
// the generator's substitution operation consumes.
func (qs *QuestionSet) RawSet() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(qs.items))
	for i, q := range qs.items {
		out[strconv.Itoa(i)] = append(json.RawMessage(nil), q.Raw...)
	}
	return out
}

func copyQuestion(q model.Question) model.Question {
	out := q
	out.Options = append([]model.Option(nil), q.Options...)
	out.Raw = append(json.RawMessage(nil), q.Raw...)
	return out
}
