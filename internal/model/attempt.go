package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "IN_PROGRESS"
	AttemptCompleted  AttemptStatus = "COMPLETED"
)

// TestAttempt 同一用户同一试卷同时最多一条 IN_PROGRESS 记录
type TestAttempt struct {
	UUIDBase
	UserID           string        `gorm:"type:varchar(36);not null;index:idx_attempt_user_test" json:"userId"`
	TestID           string        `gorm:"type:varchar(36);not null;index:idx_attempt_user_test" json:"testId"`
	Test             *Test         `gorm:"foreignKey:TestID" json:"-"`
	Status           AttemptStatus `gorm:"size:20;not null;index" json:"status"`
	TotalScore       int           `gorm:"not null;default:0" json:"totalScore"`
	MaxPossibleScore int           `gorm:"not null;default:0" json:"maxPossibleScore"`
	StartedAt        time.Time     `gorm:"not null" json:"startedAt"`
	SubmittedAt      *time.Time    `json:"submittedAt,omitempty"`
	UserAnswers      []UserAnswer  `gorm:"foreignKey:TestAttemptID;constraint:OnDelete:CASCADE" json:"-"`
}

func (a *TestAttempt) IsCompleted() bool {
	return a.Status == AttemptCompleted
}

// UserAnswer 提交时一次性计算得分，之后不再重算
type UserAnswer struct {
	UUIDBase
	TestAttemptID     string         `gorm:"type:varchar(36);not null;index" json:"testAttemptId"`
	QuestionID        string         `gorm:"type:varchar(36);not null;index" json:"questionId"`
	SelectedAnswerIDs datatypes.JSON `json:"selectedAnswerIds,omitempty"`
	OpenTextAnswer    string         `gorm:"type:text" json:"openTextAnswer,omitempty"`
	IsCorrect         bool           `gorm:"not null" json:"isCorrect"`
	ScoreEarned       int            `gorm:"not null" json:"scoreEarned"`
	AnsweredAt        time.Time      `gorm:"not null" json:"answeredAt"`
}

func (ua *UserAnswer) SetSelectedIDs(ids []string) error {
	if len(ids) == 0 {
		ua.SelectedAnswerIDs = nil
		return nil
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	ua.SelectedAnswerIDs = datatypes.JSON(raw)
	return nil
}

func (ua *UserAnswer) SelectedIDs() []string {
	if len(ua.SelectedAnswerIDs) == 0 {
		return nil
	}
	var ids []string
	if err := json.Unmarshal(ua.SelectedAnswerIDs, &ids); err != nil {
		return nil
	}
	return ids
}
