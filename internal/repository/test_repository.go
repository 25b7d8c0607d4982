package repository

import (
	"context"
	"errors"
	"examprep_backend/internal/model"
	"examprep_backend/internal/util"

	"gorm.io/gorm"
)

type TestRepository struct {
	DB *gorm.DB
}

func NewTestRepository(db *gorm.DB) *TestRepository {
	return &TestRepository{DB: db}
}

// TestFilter 试卷列表筛选条件，nil 表示不过滤
type TestFilter struct {
	Status    model.TestStatus
	IsPremium *bool
	Page      int
	Limit     int
}

func orderedQuestions(db *gorm.DB) *gorm.DB {
	return db.Order("order_index ASC")
}

func orderedAnswers(db *gorm.DB) *gorm.DB {
	return db.Order("order_index ASC")
}

// Create 同时写入题目与选项
func (r *TestRepository) Create(ctx context.Context, test *model.Test) error {
	return conn(ctx, r.DB).Create(test).Error
}

func (r *TestRepository) FindByID(ctx context.Context, id string) (*model.Test, error) {
	var test model.Test
	err := conn(ctx, r.DB).First(&test, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTestNotFound
	}
	return &test, err
}

// FindByIDWithQuestions 题目与选项均按 order_index 排序
func (r *TestRepository) FindByIDWithQuestions(ctx context.Context, id string) (*model.Test, error) {
	var test model.Test
	err := conn(ctx, r.DB).
		Preload("Questions", orderedQuestions).
		Preload("Questions.Answers", orderedAnswers).
		First(&test, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrTestNotFound
	}
	return &test, err
}

// Update 仅更新试卷本身字段
func (r *TestRepository) Update(ctx context.Context, test *model.Test) error {
	return conn(ctx, r.DB).Omit("Questions").Save(test).Error
}

// ReplaceQuestions 删除原有题目后按新列表重建
func (r *TestRepository) ReplaceQuestions(ctx context.Context, testID string, questions []model.Question) error {
	return conn(ctx, r.DB).Transaction(func(tx *gorm.DB) error {
		questionIDs := tx.Model(&model.Question{}).Select("id").Where("test_id = ?", testID)
		if err := tx.Where("question_id IN (?)", questionIDs).Delete(&model.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", testID).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		if len(questions) == 0 {
			return nil
		}
		for i := range questions {
			questions[i].TestID = testID
		}
		return tx.Create(&questions).Error
	})
}

// RecalculateTotals 重算题目数量与总分
func (r *TestRepository) RecalculateTotals(ctx context.Context, testID string) error {
	var row struct {
		Count int
		Total int
	}
	db := conn(ctx, r.DB)
	if err := db.Model(&model.Question{}).
		Select("COUNT(*) AS count, COALESCE(SUM(score), 0) AS total").
		Where("test_id = ?", testID).
		Scan(&row).Error; err != nil {
		return err
	}
	return db.Model(&model.Test{}).Where("id = ?", testID).Updates(map[string]interface{}{
		"question_count":       row.Count,
		"total_possible_score": row.Total,
	}).Error
}

// Delete 删除试卷及其题目、选项、答题记录
func (r *TestRepository) Delete(ctx context.Context, id string) error {
	return conn(ctx, r.DB).Transaction(func(tx *gorm.DB) error {
		attemptIDs := tx.Model(&model.TestAttempt{}).Select("id").Where("test_id = ?", id)
		if err := tx.Where("test_attempt_id IN (?)", attemptIDs).Delete(&model.UserAnswer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", id).Delete(&model.TestAttempt{}).Error; err != nil {
			return err
		}
		questionIDs := tx.Model(&model.Question{}).Select("id").Where("test_id = ?", id)
		if err := tx.Where("question_id IN (?)", questionIDs).Delete(&model.Answer{}).Error; err != nil {
			return err
		}
		if err := tx.Where("test_id = ?", id).Delete(&model.Question{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Test{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return util.ErrTestNotFound
		}
		return nil
	})
}

func (r *TestRepository) List(ctx context.Context, f TestFilter) ([]model.Test, int64, error) {
	query := conn(ctx, r.DB).Model(&model.Test{})
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.IsPremium != nil {
		query = query.Where("is_premium = ?", *f.IsPremium)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var tests []model.Test
	err := query.Scopes(paginate(f.Page, f.Limit)).
		Order("created_at DESC").
		Find(&tests).Error
	return tests, total, err
}

// QuestionTypeCounts 按试卷统计各题型数量
func (r *TestRepository) QuestionTypeCounts(ctx context.Context, testIDs []string) (map[string]map[model.QuestionType]int, error) {
	result := make(map[string]map[model.QuestionType]int, len(testIDs))
	if len(testIDs) == 0 {
		return result, nil
	}

	var rows []struct {
		TestID       string
		QuestionType model.QuestionType
		Count        int
	}
	err := conn(ctx, r.DB).Model(&model.Question{}).
		Select("test_id, question_type, COUNT(*) AS count").
		Where("test_id IN ?", testIDs).
		Group("test_id, question_type").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if result[row.TestID] == nil {
			result[row.TestID] = make(map[model.QuestionType]int)
		}
		result[row.TestID][row.QuestionType] = row.Count
	}
	return result, nil
}

func (r *TestRepository) FindQuestion(ctx context.Context, id string) (*model.Question, error) {
	var q model.Question
	err := conn(ctx, r.DB).First(&q, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, util.ErrQuestionNotFound
	}
	return &q, err
}

func (r *TestRepository) UpdateQuestionImage(ctx context.Context, questionID, imageURL string) error {
	return conn(ctx, r.DB).Model(&model.Question{}).
		Where("id = ?", questionID).
		Update("image_url", imageURL).Error
}
