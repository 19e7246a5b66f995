// Package scoring grades a submitted answer ledger.
package scoring

import (
	"math"
	"time"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Meta identifies the attempt being scored.
type Meta struct {
	UserID   string
	ExamName string
	Reason   model.SubmitReason
	At       time.Time
}

// Score compares answers[i] against questions[i] position by position. A
// missing answer counts as unanswered; answers beyond the question list are ignored.
// The returned Result has no ID; the caller assigns one.
func Score(questions []model.Question, answers []model.Answer, meta Meta) model.Result {
	res := model.Result{
		UserID:         meta.UserID,
		ExamName:       meta.ExamName,
		TotalQuestions: len(questions),
		Reason:         meta.Reason,
		Timestamp:      meta.At,
	}

	for i, q := range questions {
		if i >= len(answers) {
			res.Unanswered++
			continue
		}
		selected, ok := answers[i].Selected()
		switch {
		case !ok:
			res.Unanswered++
		case selected == q.CorrectAnswerIndex:
			res.CorrectAnswers++
		default:
			res.IncorrectAnswers++
		}
	}

	res.Score = res.CorrectAnswers
	res.Percentage = Percentage(res.Score, res.TotalQuestions)
	// bands use the exact ratio, not the displayed one
	res.Remark = model.RemarkFor(ratio(res.Score, res.TotalQuestions))
	return res
}

// Percentage returns score/total as a percentage rounded to two decimals, or 0 when total is 0.
func Percentage(score, total int) float64 {
	return math.Round(ratio(score, total)*100) / 100
}

func ratio(score, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(score) * 100 / float64(total)
}
