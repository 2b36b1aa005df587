package session

import "github.com/examforge/examforge/internal/model"

// Project is the pure transformation of the final question set and ledger
// into the summary consumed by the results and review surfaces. It pairs
// each question with the user's chosen option and stored verdict where one
// exists; unanswered questions keep their own correct-option and
// explanation fields so the review can still show the answer, just without
// a chosen marker.
//
// Scoring: score = correct/total*10. Questions never confirmed count as
// wrong. Rounding is left to presentation.
func Project(id string, cfg model.SessionConfig, questions []model.Question, ledger *Ledger) model.Summary {
	summary := model.Summary{
		SessionID: id,
		Topic:     cfg.Topic,
		Total:     len(questions),
		Results:   make([]model.ReviewItem, 0, len(questions)),
	}

	for i, q := range questions {
		item := model.ReviewItem{
			Position: i,
			Question: q,
		}
		if chosen, ok := ledger.Chosen(q.ID); ok {
			item.Chosen = chosen
		}
		if v := ledger.Verdict(q.ID); v != nil {
			item.Verdict = v
			item.Answered = true
			if v.Correct {
				summary.Correct++
			}
		}
		summary.Results = append(summary.Results, item)
	}

	summary.Wrong = summary.Total - summary.Correct
	if summary.Total > 0 {
		summary.Score = float64(summary.Correct) / float64(summary.Total) * 10
	}
	return summary
}
