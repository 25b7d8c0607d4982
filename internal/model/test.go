package model

import (
	"strings"
	"time"
)

type TestStatus string

const (
	TestStatusDraft     TestStatus = "DRAFT"
	TestStatusPublished TestStatus = "PUBLISHED"
)

type QuestionType string

const (
	QuestionSingleChoice   QuestionType = "SINGLE_CHOICE"
	QuestionMultipleChoice QuestionType = "MULTIPLE_CHOICE"
	QuestionOpenText       QuestionType = "OPEN_TEXT"
)

func (t QuestionType) Valid() bool {
	switch t {
	case QuestionSingleChoice, QuestionMultipleChoice, QuestionOpenText:
		return true
	}
	return false
}

func (t QuestionType) IsChoice() bool {
	return t == QuestionSingleChoice || t == QuestionMultipleChoice
}

// Test 试卷。question_count / total_possible_score 为冗余字段，结构变更后重算
type Test struct {
	UUIDBase
	CreatedBy          string     `gorm:"type:varchar(36);index" json:"createdBy"`
	Title              string     `gorm:"size:500;not null" json:"title"`
	Description        string     `gorm:"type:text;not null" json:"description"`
	IsPremium          bool       `gorm:"not null;default:false" json:"isPremium"`
	Status             TestStatus `gorm:"size:20;not null;index" json:"status"`
	QuestionCount      int        `gorm:"not null;default:0" json:"questionCount"`
	TotalPossibleScore int        `gorm:"not null;default:0" json:"totalPossibleScore"`
	PublishedAt        *time.Time `json:"publishedAt,omitempty"`
	Questions          []Question `gorm:"foreignKey:TestID;constraint:OnDelete:CASCADE" json:"questions,omitempty"`
}

func (t *Test) IsPublished() bool {
	return t.Status == TestStatusPublished
}

type Question struct {
	UUIDBase
	TestID        string       `gorm:"type:varchar(36);not null;index" json:"testId"`
	QuestionType  QuestionType `gorm:"size:20;not null" json:"questionType"`
	QuestionText  string       `gorm:"type:text;not null" json:"questionText"`
	ImageURL      string       `gorm:"size:500" json:"imageUrl,omitempty"`
	Score         int          `gorm:"not null" json:"score"`
	OrderIndex    int          `gorm:"not null" json:"orderIndex"`
	CorrectAnswer string       `gorm:"type:text" json:"correctAnswer,omitempty"`
	Answers       []Answer     `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE" json:"answers,omitempty"`
}

// CorrectAnswerIDs 选择题的正确选项集合
func (q *Question) CorrectAnswerIDs() []string {
	ids := make([]string, 0, len(q.Answers))
	for _, a := range q.Answers {
		if a.IsCorrect {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

type Answer struct {
	UUIDBase
	QuestionID string `gorm:"type:varchar(36);not null;index" json:"questionId"`
	AnswerText string `gorm:"type:text;not null" json:"answerText"`
	IsCorrect  bool   `gorm:"not null;default:false" json:"isCorrect"`
	OrderIndex int    `gorm:"not null" json:"orderIndex"`
}

// NormalizeAnswerText 主观题答案统一小写并去除首尾空白
func NormalizeAnswerText(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}
