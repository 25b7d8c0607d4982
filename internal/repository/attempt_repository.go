package repository

import (
	"context"
	"errors"
	"examprep_backend/internal/model"
	"examprep_backend/internal/util"

	"gorm.io/gorm"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(ctx context.Context, attempt *model.TestAttempt) error {
	return conn(ctx, r.DB).Omit("Test", "UserAnswers").Create(attempt).Error
}

func (r *AttemptRepository) FindByID(ctx context.Context, id string) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	err := conn(ctx, r.DB).Preload("Test").First(&attempt, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrAttemptNotFound
	}
	return &attempt, err
}

// FindInProgress 返回该用户该试卷最近一次进行中的记录
func (r *AttemptRepository) FindInProgress(ctx context.Context, userID, testID string) (*model.TestAttempt, error) {
	var attempt model.TestAttempt
	db := forUpdate(ctx, conn(ctx, r.DB))
	err := db.Where("user_id = ? AND test_id = ? AND status = ?", userID, testID, model.AttemptInProgress).
		Order("started_at DESC").
		First(&attempt).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrNoAttemptInProgress
	}
	return &attempt, err
}

// Complete 写入全部作答记录并将记录标记为已完成
func (r *AttemptRepository) Complete(ctx context.Context, attempt *model.TestAttempt, answers []model.UserAnswer) error {
	return conn(ctx, r.DB).Transaction(func(tx *gorm.DB) error {
		if len(answers) > 0 {
			for i := range answers {
				answers[i].TestAttemptID = attempt.ID
			}
			if err := tx.Create(&answers).Error; err != nil {
				return err
			}
		}
		return tx.Model(&model.TestAttempt{}).
			Where("id = ? AND status = ?", attempt.ID, model.AttemptInProgress).
			Updates(map[string]interface{}{
				"status":             attempt.Status,
				"total_score":        attempt.TotalScore,
				"max_possible_score": attempt.MaxPossibleScore,
				"submitted_at":       attempt.SubmittedAt,
			}).Error
	})
}

func (r *AttemptRepository) ListByUserAndTest(ctx context.Context, userID, testID string) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := conn(ctx, r.DB).Preload("Test").
		Where("user_id = ? AND test_id = ?", userID, testID).
		Order("started_at DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListByUser(ctx context.Context, userID string) ([]model.TestAttempt, error) {
	var attempts []model.TestAttempt
	err := conn(ctx, r.DB).Preload("Test").
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) FindAnswers(ctx context.Context, attemptID string) ([]model.UserAnswer, error) {
	var answers []model.UserAnswer
	err := conn(ctx, r.DB).Where("test_attempt_id = ?", attemptID).Find(&answers).Error
	return answers, err
}

// CountCompletedParticipants 完成过该试卷的去重用户数
func (r *AttemptRepository) CountCompletedParticipants(ctx context.Context, testID string) (int64, error) {
	var count int64
	err := conn(ctx, r.DB).Model(&model.TestAttempt{}).
		Where("test_id = ? AND status = ?", testID, model.AttemptCompleted).
		Distinct("user_id").
		Count(&count).Error
	return count, err
}
