package service

import (
	"examprep_backend/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func choiceQuestion(qt model.QuestionType, score int, correct ...string) *model.Question {
	q := &model.Question{
		UUIDBase:     model.UUIDBase{ID: "q1"},
		QuestionType: qt,
		Score:        score,
	}
	isCorrect := make(map[string]bool, len(correct))
	for _, id := range correct {
		isCorrect[id] = true
	}
	for _, id := range []string{"a", "b", "c", "d"} {
		q.Answers = append(q.Answers, model.Answer{UUIDBase: model.UUIDBase{ID: id}, IsCorrect: isCorrect[id]})
	}
	return q
}

func TestScoreSingleChoice(t *testing.T) {
	q := choiceQuestion(model.QuestionSingleChoice, 4, "b")

	tests := []struct {
		name     string
		selected []string
		want     int
	}{
		{"correct", []string{"b"}, 4},
		{"wrong", []string{"a"}, 0},
		{"correct plus other", []string{"b", "c"}, 0},
		{"nothing selected", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			correct, earned := scoreQuestion(q, &SubmittedAnswer{QuestionID: q.ID, SelectedAnswerIDs: tt.selected})
			assert.Equal(t, tt.want, earned)
			assert.Equal(t, tt.want > 0, correct)
		})
	}
}

func TestScoreMultipleChoiceRequiresExactSet(t *testing.T) {
	q := choiceQuestion(model.QuestionMultipleChoice, 3, "a", "c")

	tests := []struct {
		name     string
		selected []string
		want     int
	}{
		{"exact set", []string{"a", "c"}, 3},
		{"exact set reordered", []string{"c", "a"}, 3},
		{"subset", []string{"a"}, 0},
		{"superset", []string{"a", "b", "c"}, 0},
		{"disjoint", []string{"b", "d"}, 0},
		{"empty", []string{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, earned := scoreQuestion(q, &SubmittedAnswer{QuestionID: q.ID, SelectedAnswerIDs: tt.selected})
			assert.Equal(t, tt.want, earned)
		})
	}
}

func TestScoreOpenTextNormalizes(t *testing.T) {
	q := &model.Question{
		UUIDBase:      model.UUIDBase{ID: "q1"},
		QuestionType:  model.QuestionOpenText,
		Score:         5,
		CorrectAnswer: "baku",
	}

	for _, text := range []string{" Baku ", "baku", "BAKU"} {
		text := text
		correct, earned := scoreQuestion(q, &SubmittedAnswer{QuestionID: q.ID, OpenTextAnswer: &text})
		assert.True(t, correct, text)
		assert.Equal(t, 5, earned)
	}

	wrong := "Bak u"
	correct, earned := scoreQuestion(q, &SubmittedAnswer{QuestionID: q.ID, OpenTextAnswer: &wrong})
	assert.False(t, correct)
	assert.Zero(t, earned)

	correct, _ = scoreQuestion(q, &SubmittedAnswer{QuestionID: q.ID})
	assert.False(t, correct)
}

func TestScoreUnansweredQuestion(t *testing.T) {
	correct, earned := scoreQuestion(choiceQuestion(model.QuestionSingleChoice, 2, "a"), nil)
	assert.False(t, correct)
	assert.Zero(t, earned)
}

func TestGradeSubmissionTotals(t *testing.T) {
	single := *choiceQuestion(model.QuestionSingleChoice, 2, "a")
	single.ID = "single"
	multi := *choiceQuestion(model.QuestionMultipleChoice, 3, "b", "c")
	multi.ID = "multi"
	open := model.Question{UUIDBase: model.UUIDBase{ID: "open"}, QuestionType: model.QuestionOpenText, Score: 5, CorrectAnswer: "go"}

	text := "Go "
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	answers, total, maxScore, err := gradeSubmission(
		[]model.Question{single, multi, open},
		[]SubmittedAnswer{
			{QuestionID: "single", SelectedAnswerIDs: []string{"b"}},
			{QuestionID: "open", OpenTextAnswer: &text},
			{QuestionID: "unknown", SelectedAnswerIDs: []string{"a"}},
		},
		now,
	)
	require.NoError(t, err)

	assert.Equal(t, 5, total)
	assert.Equal(t, 10, maxScore)
	require.Len(t, answers, 3)

	assert.Equal(t, "single", answers[0].QuestionID)
	assert.Equal(t, []string{"b"}, answers[0].SelectedIDs())
	assert.False(t, answers[0].IsCorrect)

	assert.Equal(t, "multi", answers[1].QuestionID)
	assert.Nil(t, answers[1].SelectedIDs())
	assert.Zero(t, answers[1].ScoreEarned)

	assert.Equal(t, "Go ", answers[2].OpenTextAnswer)
	assert.True(t, answers[2].IsCorrect)
	assert.Equal(t, now, answers[2].AnsweredAt)
}
