package service

import (
	"examprep_backend/internal/model"
	"time"
)

// 接口返回的视图结构

type AnswerView struct {
	ID         string `json:"id"`
	AnswerText string `json:"answerText"`
	IsCorrect  bool   `json:"isCorrect"`
	OrderIndex int    `json:"orderIndex"`
}

type QuestionView struct {
	ID            string             `json:"id"`
	QuestionType  model.QuestionType `json:"questionType"`
	QuestionText  string             `json:"questionText"`
	ImageURL      string             `json:"imageUrl,omitempty"`
	Score         int                `json:"score"`
	OrderIndex    int                `json:"orderIndex"`
	CorrectAnswer string             `json:"correctAnswer,omitempty"`
	Answers       []AnswerView       `json:"answers"`
}

type QuestionTypeCount struct {
	QuestionType model.QuestionType `json:"questionType"`
	Count        int                `json:"count"`
}

type TestView struct {
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	IsPremium          bool                `json:"isPremium"`
	Status             model.TestStatus    `json:"status"`
	QuestionCount      int                 `json:"questionCount"`
	TotalPossibleScore int                 `json:"totalPossibleScore"`
	EstimatedMinutes   int                 `json:"estimatedMinutes"`
	QuestionTypeCounts []QuestionTypeCount `json:"questionTypeCounts"`
	PublishedAt        *time.Time          `json:"publishedAt,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

type TestDetailView struct {
	ID                 string              `json:"id"`
	Title              string              `json:"title"`
	Description        string              `json:"description"`
	IsPremium          bool                `json:"isPremium"`
	Status             model.TestStatus    `json:"status"`
	QuestionCount      int                 `json:"questionCount"`
	TotalPossibleScore int                 `json:"totalPossibleScore"`
	EstimatedMinutes   int                 `json:"estimatedMinutes"`
	PublishedAt        *time.Time          `json:"publishedAt,omitempty"`
	Questions          []QuestionView      `json:"questions"`
	QuestionTypeCounts []QuestionTypeCount `json:"questionTypeCounts"`
	CreatedAt          time.Time           `json:"createdAt"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

type AttemptView struct {
	ID               string              `json:"id"`
	TestID           string              `json:"testId"`
	TestTitle        string              `json:"testTitle"`
	TotalScore       int                 `json:"totalScore"`
	MaxPossibleScore int                 `json:"maxPossibleScore"`
	Status           model.AttemptStatus `json:"status"`
	StartedAt        time.Time           `json:"startedAt"`
	SubmittedAt      *time.Time          `json:"submittedAt,omitempty"`
}

type QuestionResult struct {
	QuestionID        string             `json:"questionId"`
	QuestionType      model.QuestionType `json:"questionType"`
	QuestionText      string             `json:"questionText"`
	ImageURL          string             `json:"imageUrl,omitempty"`
	Score             int                `json:"score"`
	OrderIndex        int                `json:"orderIndex"`
	IsCorrect         bool               `json:"isCorrect"`
	ScoreEarned       int                `json:"scoreEarned"`
	SelectedAnswerIDs []string           `json:"selectedAnswerIds,omitempty"`
	OpenTextAnswer    string             `json:"openTextAnswer,omitempty"`
	CorrectAnswerIDs  []string           `json:"correctAnswerIds,omitempty"`
	CorrectAnswer     string             `json:"correctAnswer,omitempty"`
	AllAnswers        []AnswerView       `json:"allAnswers"`
}

type AttemptResult struct {
	AttemptID        string           `json:"attemptId"`
	TestID           string           `json:"testId"`
	TestTitle        string           `json:"testTitle"`
	TotalScore       int              `json:"totalScore"`
	MaxPossibleScore int              `json:"maxPossibleScore"`
	StartedAt        time.Time        `json:"startedAt"`
	SubmittedAt      *time.Time       `json:"submittedAt,omitempty"`
	QuestionResults  []QuestionResult `json:"questionResults"`
}

type TestStatistics struct {
	TestID            string `json:"testId"`
	TestTitle         string `json:"testTitle"`
	TotalParticipants int64  `json:"totalParticipants"`
}

// ProfileView 当前用户资料
type ProfileView struct {
	ID                string          `json:"id"`
	Email             string          `json:"email"`
	FirstName         string          `json:"firstName"`
	LastName          string          `json:"lastName"`
	DateOfBirth       *time.Time      `json:"dateOfBirth,omitempty"`
	ProfilePictureURL string          `json:"profilePictureUrl,omitempty"`
	IsPremium         bool            `json:"isPremium"`
	IsVerified        bool            `json:"verified"`
	Role              model.RoleTitle `json:"role"`
	LastLoginAt       *time.Time      `json:"lastLoginAt,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// AdminUserView 管理端用户列表项
type AdminUserView struct {
	ID          string          `json:"id"`
	Email       string          `json:"email"`
	FirstName   string          `json:"firstName"`
	LastName    string          `json:"lastName"`
	IsPremium   bool            `json:"isPremium"`
	IsActive    bool            `json:"isActive"`
	IsVerified  bool            `json:"isVerified"`
	Role        model.RoleTitle `json:"role"`
	LastLoginAt *time.Time      `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

func NewProfileView(u *model.User) ProfileView {
	return ProfileView{
		ID:                u.ID,
		Email:             u.Email,
		FirstName:         u.FirstName,
		LastName:          u.LastName,
		DateOfBirth:       u.DateOfBirth,
		ProfilePictureURL: u.ProfilePictureURL,
		IsPremium:         u.IsPremium,
		IsVerified:        u.IsVerified,
		Role:              u.RoleTitle(),
		LastLoginAt:       u.LastLoginAt,
		CreatedAt:         u.CreatedAt,
		UpdatedAt:         u.UpdatedAt,
	}
}

func NewAdminUserView(u *model.User) AdminUserView {
	return AdminUserView{
		ID:          u.ID,
		Email:       u.Email,
		FirstName:   u.FirstName,
		LastName:    u.LastName,
		IsPremium:   u.IsPremium,
		IsActive:    u.IsActive,
		IsVerified:  u.IsVerified,
		Role:        u.RoleTitle(),
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
	}
}

func newAnswerViews(answers []model.Answer) []AnswerView {
	views := make([]AnswerView, 0, len(answers))
	for _, a := range answers {
		views = append(views, AnswerView{
			ID:         a.ID,
			AnswerText: a.AnswerText,
			IsCorrect:  a.IsCorrect,
			OrderIndex: a.OrderIndex,
		})
	}
	return views
}

func newAttemptView(a *model.TestAttempt, testTitle string) AttemptView {
	return AttemptView{
		ID:               a.ID,
		TestID:           a.TestID,
		TestTitle:        testTitle,
		TotalScore:       a.TotalScore,
		MaxPossibleScore: a.MaxPossibleScore,
		Status:           a.Status,
		StartedAt:        a.StartedAt,
		SubmittedAt:      a.SubmittedAt,
	}
}

// estimatedMinutes 每题 2 分钟，题目不少于 5 道时额外 5 分钟
func estimatedMinutes(questionCount int) int {
	minutes := questionCount * 2
	if questionCount >= 5 {
		minutes += 5
	}
	return minutes
}
