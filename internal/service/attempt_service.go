package service

import (
	"context"
	"errors"
	"examprep_backend/internal/model"
	"examprep_backend/internal/util"
	"examprep_backend/pkg/logger"
	"examprep_backend/pkg/monitoring"
	"time"

	"go.uber.org/zap"
)

// AttemptService 开始答题、交卷判分与成绩查询
type AttemptService struct {
	Tx          Transactor
	UserRepo    UserStore
	TestRepo    TestStore
	AttemptRepo AttemptStore
	now         func() time.Time
}

func NewAttemptService(tx Transactor, userRepo UserStore, testRepo TestStore, attemptRepo AttemptStore) *AttemptService {
	return &AttemptService{
		Tx:          tx,
		UserRepo:    userRepo,
		TestRepo:    testRepo,
		AttemptRepo: attemptRepo,
		now:         time.Now,
	}
}

// StartTest 在账户行锁内检查进行中的记录：已存在则直接返回，保证同一试卷最多一条进行中记录
func (s *AttemptService) StartTest(ctx context.Context, caller Caller, testID string) (*AttemptView, error) {
	var view AttemptView
	event := "started"

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		user, err := s.UserRepo.FindByIDForUpdate(ctx, caller.UserID)
		if err != nil {
			return err
		}
		test, err := s.TestRepo.FindByID(ctx, testID)
		if err != nil {
			return err
		}
		if !test.IsPublished() {
			return util.ErrTestNotPublished
		}
		if test.IsPremium && !user.IsPremium && !user.IsAdmin() {
			return util.ErrPremiumTest
		}

		existing, err := s.AttemptRepo.FindInProgress(ctx, user.ID, test.ID)
		if err == nil {
			event = "resumed"
			view = newAttemptView(existing, test.Title)
			return nil
		}
		if !errors.Is(err, util.ErrNotFound) {
			return err
		}

		attempt := &model.TestAttempt{
			UserID:           user.ID,
			TestID:           test.ID,
			Status:           model.AttemptInProgress,
			MaxPossibleScore: test.TotalPossibleScore,
			StartedAt:        s.now(),
		}
		if err := s.AttemptRepo.Create(ctx, attempt); err != nil {
			return err
		}
		view = newAttemptView(attempt, test.Title)
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptCounter.WithLabelValues(event).Inc()
	return &view, nil
}

// SubmitTest 对试卷全部题目判分并完成进行中的记录，整体在一个事务内
func (s *AttemptService) SubmitTest(ctx context.Context, caller Caller, testID string, submitted []SubmittedAnswer) (*AttemptResult, error) {
	var result *AttemptResult

	err := s.Tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.UserRepo.FindByIDForUpdate(ctx, caller.UserID); err != nil {
			return err
		}
		test, err := s.TestRepo.FindByIDWithQuestions(ctx, testID)
		if err != nil {
			return err
		}
		attempt, err := s.AttemptRepo.FindInProgress(ctx, caller.UserID, test.ID)
		if err != nil {
			return err
		}

		now := s.now()
		answers, total, maxScore, err := gradeSubmission(test.Questions, submitted, now)
		if err != nil {
			return err
		}

		attempt.Status = model.AttemptCompleted
		attempt.TotalScore = total
		attempt.MaxPossibleScore = maxScore
		attempt.SubmittedAt = &now
		if err := s.AttemptRepo.Complete(ctx, attempt, answers); err != nil {
			return err
		}

		logger.Log.Info("Test submitted",
			zap.String("attemptId", attempt.ID),
			zap.String("testId", test.ID),
			zap.Int("totalScore", total),
			zap.Int("maxPossibleScore", maxScore))

		result = buildAttemptResult(test, attempt, answers)
		return nil
	})
	if err != nil {
		return nil, err
	}

	monitoring.AttemptCounter.WithLabelValues("completed").Inc()
	return result, nil
}

// ListAttempts 当前用户在某试卷上的全部记录，最新在前
func (s *AttemptService) ListAttempts(ctx context.Context, caller Caller, testID string) ([]AttemptView, error) {
	test, err := s.TestRepo.FindByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	attempts, err := s.AttemptRepo.ListByUserAndTest(ctx, caller.UserID, test.ID)
	if err != nil {
		return nil, err
	}

	views := make([]AttemptView, 0, len(attempts))
	for i := range attempts {
		views = append(views, newAttemptView(&attempts[i], test.Title))
	}
	return views, nil
}

// ListMyAttempts 当前用户全部答题记录
func (s *AttemptService) ListMyAttempts(ctx context.Context, caller Caller) ([]AttemptView, error) {
	attempts, err := s.AttemptRepo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, err
	}

	views := make([]AttemptView, 0, len(attempts))
	for i := range attempts {
		title := ""
		if attempts[i].Test != nil {
			title = attempts[i].Test.Title
		}
		views = append(views, newAttemptView(&attempts[i], title))
	}
	return views, nil
}

// GetAttemptResult 仅本人或管理员可查看，且记录必须已完成
func (s *AttemptService) GetAttemptResult(ctx context.Context, caller Caller, attemptID string) (*AttemptResult, error) {
	attempt, err := s.AttemptRepo.FindByID(ctx, attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.UserID != caller.UserID && !caller.IsAdmin() {
		return nil, util.ErrAttemptNotFound
	}
	if !attempt.IsCompleted() {
		return nil, util.ErrAttemptNotCompleted
	}

	test, err := s.TestRepo.FindByIDWithQuestions(ctx, attempt.TestID)
	if err != nil {
		return nil, err
	}
	answers, err := s.AttemptRepo.FindAnswers(ctx, attempt.ID)
	if err != nil {
		return nil, err
	}
	return buildAttemptResult(test, attempt, answers), nil
}

// Statistics 完成过该试卷的去重用户数
func (s *AttemptService) Statistics(ctx context.Context, testID string) (*TestStatistics, error) {
	test, err := s.TestRepo.FindByID(ctx, testID)
	if err != nil {
		return nil, err
	}
	count, err := s.AttemptRepo.CountCompletedParticipants(ctx, test.ID)
	if err != nil {
		return nil, err
	}
	return &TestStatistics{
		TestID:            test.ID,
		TestTitle:         test.Title,
		TotalParticipants: count,
	}, nil
}

// buildAttemptResult 按题目顺序组装结果，未作答的题目记为错误零分
func buildAttemptResult(test *model.Test, attempt *model.TestAttempt, answers []model.UserAnswer) *AttemptResult {
	byQuestion := make(map[string]*model.UserAnswer, len(answers))
	for i := range answers {
		byQuestion[answers[i].QuestionID] = &answers[i]
	}

	results := make([]QuestionResult, 0, len(test.Questions))
	for i := range test.Questions {
		q := &test.Questions[i]
		qr := QuestionResult{
			QuestionID:    q.ID,
			QuestionType:  q.QuestionType,
			QuestionText:  q.QuestionText,
			ImageURL:      q.ImageURL,
			Score:         q.Score,
			OrderIndex:    q.OrderIndex,
			CorrectAnswer: q.CorrectAnswer,
			AllAnswers:    newAnswerViews(q.Answers),
		}
		if q.QuestionType.IsChoice() {
			qr.CorrectAnswerIDs = q.CorrectAnswerIDs()
		}
		if ua, ok := byQuestion[q.ID]; ok {
			qr.IsCorrect = ua.IsCorrect
			qr.ScoreEarned = ua.ScoreEarned
			qr.SelectedAnswerIDs = ua.SelectedIDs()
			qr.OpenTextAnswer = ua.OpenTextAnswer
		}
		results = append(results, qr)
	}

	return &AttemptResult{
		AttemptID:        attempt.ID,
		TestID:           test.ID,
		TestTitle:        test.Title,
		TotalScore:       attempt.TotalScore,
		MaxPossibleScore: attempt.MaxPossibleScore,
		StartedAt:        attempt.StartedAt,
		SubmittedAt:      attempt.SubmittedAt,
		QuestionResults:  results,
	}
}
