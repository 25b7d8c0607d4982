package service

import (
	"context"
	"examprep_backend/internal/model"
	"examprep_backend/internal/repository"
	"examprep_backend/internal/util"
	"examprep_backend/pkg/logger"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
)

type AnswerInput struct {
	AnswerText string `json:"answerText" binding:"required"`
	IsCorrect  *bool  `json:"isCorrect" binding:"required"`
	OrderIndex *int   `json:"orderIndex"`
}

type QuestionInput struct {
	QuestionType  model.QuestionType `json:"questionType" binding:"required"`
	QuestionText  string             `json:"questionText" binding:"required"`
	ImageURL      string             `json:"imageUrl"`
	Score         int                `json:"score" binding:"required,min=1"`
	OrderIndex    *int               `json:"orderIndex"`
	CorrectAnswer string             `json:"correctAnswer"`
	Answers       []AnswerInput      `json:"answers" binding:"omitempty,dive"`
}

type CreateTestInput struct {
	Title       string          `json:"title" binding:"required,max=500"`
	Description string          `json:"description" binding:"required"`
	IsPremium   *bool           `json:"isPremium" binding:"required"`
	Questions   []QuestionInput `json:"questions" binding:"omitempty,dive"`
}

// UpdateTestInput 字段为 nil 表示不修改；Questions 非 nil 时整体替换题目
type UpdateTestInput struct {
	Title       *string         `json:"title" binding:"omitempty,max=500"`
	Description *string         `json:"description"`
	IsPremium   *bool           `json:"isPremium"`
	Questions   []QuestionInput `json:"questions" binding:"omitempty,dive"`
}

// TestService 试卷编辑、发布与查询
type TestService struct {
	Tx       Transactor
	UserRepo UserStore
	TestRepo TestStore
	Images   ImageStore
	now      func() time.Time
}

func NewTestService(tx Transactor, userRepo UserStore, testRepo TestStore, images ImageStore) *TestService {
	return &TestService{
		Tx:       tx,
		UserRepo: userRepo,
		TestRepo: testRepo,
		Images:   images,
		now:      time.Now,
	}
}

func validateQuestionInput(in QuestionInput) error {
	switch in.QuestionType {
	case model.QuestionSingleChoice:
		if countCorrectInputs(in.Answers) != 1 {
			return util.ErrSingleChoiceOneCorrect
		}
	case model.QuestionMultipleChoice:
		if countCorrectInputs(in.Answers) < 1 {
			return util.ErrMultipleChoiceAtLeastOne
		}
	case model.QuestionOpenText:
		if strings.TrimSpace(in.CorrectAnswer) == "" {
			return util.ErrOpenTextRequiresAnswer
		}
	default:
		return util.ErrUnknownQuestionType
	}
	return nil
}

func countCorrectInputs(answers []AnswerInput) int {
	n := 0
	for _, a := range answers {
		if a.IsCorrect != nil && *a.IsCorrect {
			n++
		}
	}
	return n
}

// buildQuestions 未指定 orderIndex 时使用列表下标；主观题答案统一规范化
func buildQuestions(inputs []QuestionInput) ([]model.Question, error) {
	questions := make([]model.Question, 0, len(inputs))
	for i, in := range inputs {
		if err := validateQuestionInput(in); err != nil {
			return nil, err
		}

		q := model.Question{
			QuestionType: in.QuestionType,
			QuestionText: strings.TrimSpace(in.QuestionText),
			ImageURL:     in.ImageURL,
			Score:        in.Score,
			OrderIndex:   i,
		}
		if in.OrderIndex != nil {
			q.OrderIndex = *in.OrderIndex
		}
		if in.CorrectAnswer != "" {
			q.CorrectAnswer = model.NormalizeAnswerText(in.CorrectAnswer)
		}

		if q.QuestionType.IsChoice() {
			for j, a := range in.Answers {
				answer := model.Answer{
					AnswerText: strings.TrimSpace(a.AnswerText),
					IsCorrect:  a.IsCorrect != nil && *a.IsCorrect,
					OrderIndex: j,
				}
				if a.OrderIndex != nil {
					answer.OrderIndex = *a.OrderIndex
				}
				q.Answers = append(q.Answers, answer)
			}
		}
		questions = append(questions, q)
	}
	return questions, nil
}

// validateForPublish 发布前按题型校验已保存的题目
func validateForPublish(q *model.Question) error {
	switch q.QuestionType {
	case model.QuestionSingleChoice:
		if len(q.CorrectAnswerIDs()) != 1 {
			return util.ErrSingleChoiceOneCorrect
		}
	case model.QuestionMultipleChoice:
		if len(q.CorrectAnswerIDs()) == 0 {
			return util.ErrMultipleChoiceAtLeastOne
		}
	case model.QuestionOpenText:
		if strings.TrimSpace(q.CorrectAnswer) == "" {
			return util.ErrOpenTextRequiresAnswer
		}
	default:
		return util.ErrUnknownQuestionType
	}
	return nil
}

// Create 新建草稿试卷，可同时提交题目
func (s *TestService) Create(ctx context.Context, caller Caller, in CreateTestInput) (*TestDetailView, error) {
	questions, err := buildQuestions(in.Questions)
	if err != nil {
		return nil, err
	}

	test := &model.Test{
		CreatedBy:   caller.UserID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		IsPremium:   in.IsPremium != nil && *in.IsPremium,
		Status:      model.TestStatusDraft,
		Questions:   questions,
	}

	err = s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.TestRepo.Create(ctx, test); err != nil {
			return err
		}
		return s.TestRepo.RecalculateTotals(ctx, test.ID)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Test created", zap.String("testId", test.ID), zap.Int("questions", len(questions)))
	return s.Get(ctx, test.ID)
}

func (s *TestService) Update(ctx context.Context, testID string, in UpdateTestInput) (*TestDetailView, error) {
	var questions []model.Question
	if in.Questions != nil {
		var err error
		if questions, err = buildQuestions(in.Questions); err != nil {
			return nil, err
		}
	}

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		test, err := s.TestRepo.FindByID(ctx, testID)
		if err != nil {
			return err
		}
		if in.Title != nil {
			test.Title = strings.TrimSpace(*in.Title)
		}
		if in.Description != nil {
			test.Description = strings.TrimSpace(*in.Description)
		}
		if in.IsPremium != nil {
			test.IsPremium = *in.IsPremium
		}
		if err := s.TestRepo.Update(ctx, test); err != nil {
			return err
		}

		if in.Questions != nil {
			if err := s.TestRepo.ReplaceQuestions(ctx, test.ID, questions); err != nil {
				return err
			}
		}
		return s.TestRepo.RecalculateTotals(ctx, test.ID)
	})
	if err != nil {
		return nil, err
	}
	return s.Get(ctx, testID)
}

func (s *TestService) Delete(ctx context.Context, testID string) error {
	if err := s.TestRepo.Delete(ctx, testID); err != nil {
		return err
	}
	logger.Log.Info("Test deleted", zap.String("testId", testID))
	return nil
}

// Publish 至少一道题且每道题通过题型校验后发布
func (s *TestService) Publish(ctx context.Context, testID string) (*TestDetailView, error) {
	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		test, err := s.TestRepo.FindByIDWithQuestions(ctx, testID)
		if err != nil {
			return err
		}
		if test.IsPublished() {
			return util.ErrTestAlreadyPublished
		}
		if len(test.Questions) == 0 {
			return util.ErrTestMustHaveQuestions
		}
		for i := range test.Questions {
			if err := validateForPublish(&test.Questions[i]); err != nil {
				return err
			}
		}

		now := s.now()
		test.Status = model.TestStatusPublished
		test.PublishedAt = &now
		return s.TestRepo.Update(ctx, test)
	})
	if err != nil {
		return nil, err
	}

	logger.Log.Info("Test published", zap.String("testId", testID))
	return s.Get(ctx, testID)
}

// Get 管理端试卷详情，包含正确答案
func (s *TestService) Get(ctx context.Context, testID string) (*TestDetailView, error) {
	test, err := s.TestRepo.FindByIDWithQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}
	view := newTestDetailView(test, true)
	return &view, nil
}

func (s *TestService) List(ctx context.Context, filter repository.TestFilter) ([]TestView, int64, error) {
	tests, total, err := s.TestRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	ids := make([]string, 0, len(tests))
	for _, t := range tests {
		ids = append(ids, t.ID)
	}
	counts, err := s.TestRepo.QuestionTypeCounts(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	views := make([]TestView, 0, len(tests))
	for i := range tests {
		views = append(views, newTestView(&tests[i], counts[tests[i].ID]))
	}
	return views, total, nil
}

// ListForUser 已发布试卷；非会员且非管理员只能看到免费试卷
func (s *TestService) ListForUser(ctx context.Context, caller Caller, page, limit int) ([]TestView, int64, error) {
	user, err := s.UserRepo.FindByID(ctx, caller.UserID)
	if err != nil {
		return nil, 0, err
	}

	filter := repository.TestFilter{
		Status: model.TestStatusPublished,
		Page:   page,
		Limit:  limit,
	}
	if !user.IsPremium && !user.IsAdmin() {
		free := false
		filter.IsPremium = &free
	}
	return s.List(ctx, filter)
}

// GetForUser 普通用户查看试卷，不返回正确答案；草稿对非管理员不可见
func (s *TestService) GetForUser(ctx context.Context, caller Caller, testID string) (*TestDetailView, error) {
	user, err := s.UserRepo.FindByID(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}
	test, err := s.TestRepo.FindByIDWithQuestions(ctx, testID)
	if err != nil {
		return nil, err
	}

	if user.IsAdmin() {
		view := newTestDetailView(test, true)
		return &view, nil
	}
	if !test.IsPublished() {
		return nil, util.ErrTestNotFound
	}
	if test.IsPremium && !user.IsPremium {
		return nil, util.ErrPremiumTest
	}
	view := newTestDetailView(test, false)
	return &view, nil
}

// UploadQuestionImage 新图上传成功后再删除旧图
func (s *TestService) UploadQuestionImage(ctx context.Context, questionID string, data []byte) (string, error) {
	question, err := s.TestRepo.FindQuestion(ctx, questionID)
	if err != nil {
		return "", err
	}

	imageURL, err := s.Images.Upload(ctx, data, util.FolderQuestionImages)
	if err != nil {
		return "", err
	}
	if err := s.TestRepo.UpdateQuestionImage(ctx, question.ID, imageURL); err != nil {
		s.deleteImage(ctx, imageURL)
		return "", err
	}

	if question.ImageURL != "" {
		s.deleteImage(ctx, question.ImageURL)
	}
	return imageURL, nil
}

func (s *TestService) DeleteQuestionImage(ctx context.Context, questionID string) error {
	question, err := s.TestRepo.FindQuestion(ctx, questionID)
	if err != nil {
		return err
	}
	if question.ImageURL == "" {
		return nil
	}
	if err := s.TestRepo.UpdateQuestionImage(ctx, question.ID, ""); err != nil {
		return err
	}
	s.deleteImage(ctx, question.ImageURL)
	return nil
}

func (s *TestService) deleteImage(ctx context.Context, url string) {
	if err := s.Images.Delete(ctx, url); err != nil {
		logger.Log.Warn("Failed to delete image", zap.String("url", url), zap.Error(err))
	}
}

func typeCountList(counts map[model.QuestionType]int) []QuestionTypeCount {
	list := make([]QuestionTypeCount, 0, len(counts))
	for t, n := range counts {
		list = append(list, QuestionTypeCount{QuestionType: t, Count: n})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].QuestionType < list[j].QuestionType })
	return list
}

func newTestView(t *model.Test, counts map[model.QuestionType]int) TestView {
	return TestView{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		IsPremium:          t.IsPremium,
		Status:             t.Status,
		QuestionCount:      t.QuestionCount,
		TotalPossibleScore: t.TotalPossibleScore,
		EstimatedMinutes:   estimatedMinutes(t.QuestionCount),
		QuestionTypeCounts: typeCountList(counts),
		PublishedAt:        t.PublishedAt,
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}

// newTestDetailView withSolutions 为 false 时隐藏正确选项与标准答案
func newTestDetailView(t *model.Test, withSolutions bool) TestDetailView {
	counts := make(map[model.QuestionType]int)
	questions := make([]QuestionView, 0, len(t.Questions))
	for _, q := range t.Questions {
		counts[q.QuestionType]++
		qv := QuestionView{
			ID:           q.ID,
			QuestionType: q.QuestionType,
			QuestionText: q.QuestionText,
			ImageURL:     q.ImageURL,
			Score:        q.Score,
			OrderIndex:   q.OrderIndex,
			Answers:      newAnswerViews(q.Answers),
		}
		if withSolutions {
			qv.CorrectAnswer = q.CorrectAnswer
		} else {
			for i := range qv.Answers {
				qv.Answers[i].IsCorrect = false
			}
		}
		questions = append(questions, qv)
	}

	return TestDetailView{
		ID:                 t.ID,
		Title:              t.Title,
		Description:        t.Description,
		IsPremium:          t.IsPremium,
		Status:             t.Status,
		QuestionCount:      t.QuestionCount,
		TotalPossibleScore: t.TotalPossibleScore,
		EstimatedMinutes:   estimatedMinutes(t.QuestionCount),
		PublishedAt:        t.PublishedAt,
		Questions:          questions,
		QuestionTypeCounts: typeCountList(counts),
		CreatedAt:          t.CreatedAt,
		UpdatedAt:          t.UpdatedAt,
	}
}
