package model

import (
	"encoding/json"
	"time"
)

// SessionStatus represents the status of an assessment session.
type SessionStatus string

const (
	StatusLoading      SessionStatus = "loading"
	StatusEmpty        SessionStatus = "empty"
	StatusActive       SessionStatus = "active"
	StatusConfirmed    SessionStatus = "confirmed"
	StatusRegenerating SessionStatus = "regenerating"
	StatusFinalizing   SessionStatus = "finalizing"
	StatusCompleted    SessionStatus = "completed"
)

// Terminal reports whether no further user actions are possible in this status.
func (s SessionStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusEmpty
}

// Option is a single answer choice of a multiple-choice question.
type Option struct {
	Label   string `json:"label,omitempty"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

// Question is the canonical form of one generated question. Raw carries the
// generator's original payload verbatim; it is what the evaluator receives
// and the engine never reinterprets it after ingestion.
type Question struct {
	ID            string          `json:"id"`
	Prompt        string          `json:"prompt"`
	Options       []Option        `json:"options"`
	CorrectOption string          `json:"correct_option,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
	Raw           json.RawMessage `json:"-"`
}

// Verdict is the evaluator's judgment of a confirmed answer.
type Verdict struct {
	Correct            bool      `json:"is_correct"`
	ChosenOption       string    `json:"chosen_option"`
	CorrectOption      string    `json:"correct_option"`
	Explanation        string    `json:"explanation"`
	ExplanationChosen  string    `json:"explanation_chosen,omitempty"`
	ExplanationCorrect string    `json:"explanation_correct,omitempty"`
	ConfirmedAt        time.Time `json:"confirmed_at"`
}

// LedgerEntry is the recorded answer state for one question identity.
type LedgerEntry struct {
	QuestionID string   `json:"question_id"`
	Chosen     string   `json:"chosen,omitempty"`
	Verdict    *Verdict `json:"verdict,omitempty"`
}

// SessionConfig holds the immutable parameters of one assessment attempt.
type SessionConfig struct {
	Topic         string `json:"topic"`
	QuestionCount int    `json:"question_count"`
	TimeLimitSecs int    `json:"time_limit_seconds"`
}

// ReviewItem pairs one question with the user's recorded answer state for
// the review surface. Unanswered questions carry the question's own
// correct-option fields so the client can still display the answer.
type ReviewItem struct {
	Position int      `json:"position"`
	Question Question `json:"question"`
	Chosen   string   `json:"chosen,omitempty"`
	Answered bool     `json:"answered"`
	Verdict  *Verdict `json:"verdict,omitempty"`
}

// Summary is the final score report produced when a session completes.
type Summary struct {
	SessionID string       `json:"session_id"`
	Topic     string       `json:"topic"`
	Score     float64      `json:"score"`
	Total     int          `json:"total_questions"`
	Correct   int          `json:"correct_answers"`
	Wrong     int          `json:"wrong_answers"`
	Expired   bool         `json:"expired"`
	Feedback  string       `json:"feedback,omitempty"`
	Results   []ReviewItem `json:"results"`
}

// Material is an uploaded study-material record. Only the acknowledgment
// metadata is kept; vectorization happens in the external pipeline.
type Material struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	SHA256     string    `json:"sha256"`
	UploadedAt time.Time `json:"uploaded_at"`
}
