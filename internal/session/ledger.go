package session

import "github.com/examforge/examforge/internal/model"

// Ledger records the user's selected options and confirmed verdicts by
// question identity. It is owned exclusively by the controller; replacing a
// question deletes that identity's entry so a verdict can never outlive the
// question instance it was confirmed against.
type Ledger struct {
	chosen   map[string]string
	verdicts map[string]*model.Verdict
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		chosen:   make(map[string]string),
		verdicts: make(map[string]*model.Verdict),
	}
}

// Select sets or overwrites the chosen option for a question identity.
func (l *Ledger) Select(questionID, option string) {
	l.chosen[questionID] = option
}

// Chosen returns the currently selected option for a question identity.
func (l *Ledger) Chosen(questionID string) (string, bool) {
	opt, ok := l.chosen[questionID]
	return opt, ok
}

// Record stores the confirmed verdict for a question identity.
func (l *Ledger) Record(questionID string, v model.Verdict) {
	l.verdicts[questionID] = &v
}

// Verdict returns the stored verdict for a question identity, or nil.
func (l *Ledger) Verdict(questionID string) *model.Verdict {
	if v, ok := l.verdicts[questionID]; ok {
		copied := *v
		return &copied
	}
	return nil
}

// Delete clears both the chosen option and the verdict for one identity.
// Other identities are unaffected.
func (l *Ledger) Delete(questionID string) {
	delete(l.chosen, questionID)
	delete(l.verdicts, questionID)
}

// Entry returns the full ledger entry for a question identity.
func (l *Ledger) Entry(questionID string) model.LedgerEntry {
	entry := model.LedgerEntry{QuestionID: questionID}
	if opt, ok := l.chosen[questionID]; ok {
		entry.Chosen = opt
	}
	entry.Verdict = l.Verdict(questionID)
	return entry
}

// CorrectCount returns the number of stored verdicts judged correct.
func (l *Ledger) CorrectCount() int {
	n := 0
	for _, v := range l.verdicts {
		if v.Correct {
			n++
		}
	}
	return n
}
