package service

import (
	"examprep_backend/internal/model"
	"time"
)

// SubmittedAnswer 单题作答。选择题使用 SelectedAnswerIDs，主观题使用 OpenTextAnswer
type SubmittedAnswer struct {
	QuestionID        string   `json:"questionId" binding:"required"`
	SelectedAnswerIDs []string `json:"selectedAnswerIds"`
	OpenTextAnswer    *string  `json:"openTextAnswer"`
}

// scoreQuestion 判分规则：
// 单选题须恰好选中唯一正确项；多选题选中集合与正确集合完全相同；
// 主观题小写去空白后与标准答案完全一致。答对得满分，否则为零
func scoreQuestion(q *model.Question, submitted *SubmittedAnswer) (bool, int) {
	if submitted == nil {
		return false, 0
	}

	var correct bool
	switch q.QuestionType {
	case model.QuestionSingleChoice:
		correct = scoreSingleChoice(q, submitted.SelectedAnswerIDs)
	case model.QuestionMultipleChoice:
		correct = scoreMultipleChoice(q, submitted.SelectedAnswerIDs)
	case model.QuestionOpenText:
		correct = submitted.OpenTextAnswer != nil &&
			model.NormalizeAnswerText(*submitted.OpenTextAnswer) == q.CorrectAnswer
	}

	if correct {
		return true, q.Score
	}
	return false, 0
}

func scoreSingleChoice(q *model.Question, selected []string) bool {
	if len(selected) != 1 {
		return false
	}
	correctIDs := q.CorrectAnswerIDs()
	return len(correctIDs) == 1 && correctIDs[0] == selected[0]
}

func scoreMultipleChoice(q *model.Question, selected []string) bool {
	if len(selected) == 0 {
		return false
	}
	correct := toSet(q.CorrectAnswerIDs())
	chosen := toSet(selected)
	if len(correct) != len(chosen) {
		return false
	}
	for id := range chosen {
		if _, ok := correct[id]; !ok {
			return false
		}
	}
	return true
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// gradeSubmission 对试卷全部题目判分，未作答的题目记为错误。
// 返回每题一条作答记录、总得分与满分
func gradeSubmission(questions []model.Question, submitted []SubmittedAnswer, answeredAt time.Time) ([]model.UserAnswer, int, int, error) {
	byQuestion := make(map[string]*SubmittedAnswer, len(submitted))
	for i := range submitted {
		byQuestion[submitted[i].QuestionID] = &submitted[i]
	}

	answers := make([]model.UserAnswer, 0, len(questions))
	total, maxScore := 0, 0
	for i := range questions {
		q := &questions[i]
		sub := byQuestion[q.ID]
		correct, earned := scoreQuestion(q, sub)

		ua := model.UserAnswer{
			QuestionID:  q.ID,
			IsCorrect:   correct,
			ScoreEarned: earned,
			AnsweredAt:  answeredAt,
		}
		if sub != nil {
			if q.QuestionType.IsChoice() {
				if err := ua.SetSelectedIDs(sub.SelectedAnswerIDs); err != nil {
					return nil, 0, 0, err
				}
			} else if sub.OpenTextAnswer != nil {
				ua.OpenTextAnswer = *sub.OpenTextAnswer
			}
		}

		answers = append(answers, ua)
		total += earned
		maxScore += q.Score
	}
	return answers, total, maxScore, nil
}
