// Package prompts assembles the system prompts for the collaborator
// operations: question generation, single-question substitution, answer
// verification, and final feedback.
package prompts

import (
	"fmt"
	"strings"

	"github.com/examforge/examforge/internal/model"
)

// Generate builds the prompt for generating a full multiple-choice set on a
// topic. The model must answer with JSON only.
func Generate(topic string, count int) string {
	var sb strings.Builder
	sb.WriteString("You are a subject-matter expert on: " + topic + ".\n")
	fmt.Fprintf(&sb, "Generate exactly %d multiple-choice questions about this topic.\n", count)
	sb.WriteString("Each question has 4 options (A, B, C, D) with exactly one correct option.\n")
	sb.WriteString("Write a didactic resolution explaining the correct option.\n\n")
	sb.WriteString("Respond ONLY with a valid JSON object, no text before or after:\n")
	sb.WriteString(`{"questions": [`)
	sb.WriteString("\n")
	sb.WriteString(`  {"question": "Question text",`)
	sb.WriteString("\n")
	sb.WriteString(`   "options": [`)
	sb.WriteString("\n")
	sb.WriteString(`     {"option": "A) First alternative", "is_correct": true},`)
	sb.WriteString("\n")
	sb.WriteString(`     {"option": "B) Second alternative", "is_correct": false},`)
	sb.WriteString("\n")
	sb.WriteString(`     {"option": "C) Third alternative", "is_correct": false},`)
	sb.WriteString("\n")
	sb.WriteString(`     {"option": "D) Fourth alternative", "is_correct": false}`)
	sb.WriteString("\n")
	sb.WriteString("   ],\n")
	sb.WriteString(`   "resolution": "Why the correct option is correct"}`)
	sb.WriteString("\n]}\n\n")
	sb.WriteString("If you cannot generate questions on the topic, respond with:\n")
	sb.WriteString(`{"questions": []}`)
	sb.WriteString("\n")
	return sb.String()
}

// Substitute builds the prompt for replacing one question of an existing
// set. The model receives the whole set keyed by position so the
// replacement does not duplicate any remaining question, and must answer
// with a JSON object keyed by the same position key.
func Substitute(setJSON, positionKey, topic string) string {
	var sb strings.Builder
	sb.WriteString("You are a subject-matter expert on: " + topic + ".\n")
	sb.WriteString("Below is the current question set of an assessment, keyed by position:\n\n")
	sb.WriteString(setJSON + "\n\n")
	fmt.Fprintf(&sb, "Generate ONE new multiple-choice question to replace the question at position %q.\n", positionKey)
	sb.WriteString("The new question must cover the same topic, must not repeat any other question in the set, ")
	sb.WriteString("and must have 4 options (A, B, C, D) with exactly one correct option and a resolution.\n\n")
	sb.WriteString("Respond ONLY with a JSON object containing the replacement under the same key:\n")
	fmt.Fprintf(&sb, `{%q: {"question": "...", "options": [{"option": "...", "is_correct": true/false}, ...], "resolution": "..."}}`, positionKey)
	sb.WriteString("\n")
	return sb.String()
}

// Verify builds the prompt for judging a chosen option. The question
// payload is passed through verbatim, exactly as the generator produced it.
func Verify(questionPayload, chosen string) string {
	var sb strings.Builder
	sb.WriteString("You are an assessment evaluator. A student answered the following multiple-choice question.\n\n")
	sb.WriteString("QUESTION (original payload):\n" + questionPayload + "\n\n")
	sb.WriteString("CHOSEN OPTION: " + chosen + "\n\n")
	sb.WriteString("Decide whether the chosen option is correct, and explain clearly and objectively, ")
	sb.WriteString("assuming the student has not seen any source material.\n\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"is_correct": true/false, "chosen_option": "<chosen option text>", "correct_option": "<correct option text>", "explanation": "<overall explanation>", "explanation_chosen": "<why the chosen option is right or wrong>", "explanation_correct": "<why the correct option is correct>"}`)
	sb.WriteString("\n")
	return sb.String()
}

// Feedback builds the prompt for the end-of-session narrative summary.
func Feedback(s model.Summary) string {
	var sb strings.Builder
	sb.WriteString("You are a study coach. A student just finished a multiple-choice assessment.\n\n")
	sb.WriteString("TOPIC: " + s.Topic + "\n")
	fmt.Fprintf(&sb, "RESULT: %d correct and %d wrong out of %d questions (score %.1f of 10).\n", s.Correct, s.Wrong, s.Total, s.Score)
	if s.Expired {
		sb.WriteString("The time limit expired before the student finished.\n")
	}
	sb.WriteString("\nWrite short, encouraging feedback on this performance and what to study next.\n")
	sb.WriteString("Respond ONLY with a JSON object:\n")
	sb.WriteString(`{"feedback": "<two or three sentences>"}`)
	sb.WriteString("\n")
	return sb.String()
}
