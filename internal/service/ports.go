package service

import (
	"context"
	"examprep_backend/internal/model"
	"examprep_backend/internal/repository"
	"time"
)

// 服务依赖的存储接口，由 repository 包中的 gorm 实现满足

type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByIDForUpdate(ctx context.Context, id string) (*model.User, error)
	FindByEmailForUpdate(ctx context.Context, email string) (*model.User, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	Update(ctx context.Context, user *model.User) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter repository.UserFilter) ([]model.User, int64, error)
}

type RoleStore interface {
	FindByTitle(ctx context.Context, title model.RoleTitle) (*model.Role, error)
}

type RefreshTokenStore interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error)
	Delete(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type RevokedTokenStore interface {
	Create(ctx context.Context, token *model.RevokedToken) error
	IsRevoked(ctx context.Context, token string) (bool, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type TestStore interface {
	Create(ctx context.Context, test *model.Test) error
	FindByID(ctx context.Context, id string) (*model.Test, error)
	FindByIDWithQuestions(ctx context.Context, id string) (*model.Test, error)
	Update(ctx context.Context, test *model.Test) error
	ReplaceQuestions(ctx context.Context, testID string, questions []model.Question) error
	RecalculateTotals(ctx context.Context, testID string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter repository.TestFilter) ([]model.Test, int64, error)
	QuestionTypeCounts(ctx context.Context, testIDs []string) (map[string]map[model.QuestionType]int, error)
	FindQuestion(ctx context.Context, id string) (*model.Question, error)
	UpdateQuestionImage(ctx context.Context, questionID, imageURL string) error
}

type AttemptStore interface {
	Create(ctx context.Context, attempt *model.TestAttempt) error
	FindByID(ctx context.Context, id string) (*model.TestAttempt, error)
	FindInProgress(ctx context.Context, userID, testID string) (*model.TestAttempt, error)
	Complete(ctx context.Context, attempt *model.TestAttempt, answers []model.UserAnswer) error
	ListByUserAndTest(ctx context.Context, userID, testID string) ([]model.TestAttempt, error)
	ListByUser(ctx context.Context, userID string) ([]model.TestAttempt, error)
	FindAnswers(ctx context.Context, attemptID string) ([]model.UserAnswer, error)
	CountCompletedParticipants(ctx context.Context, testID string) (int64, error)
}

// EmailSender 邮件投递
type EmailSender interface {
	Send(ctx context.Context, from, to, subject, htmlBody string) error
}

// TemplateRenderer 按模板名渲染邮件正文
type TemplateRenderer interface {
	Render(name string, data map[string]string) (string, error)
}

// ImageStore 图片上传与删除，返回可访问的 URL
type ImageStore interface {
	Upload(ctx context.Context, data []byte, folder string) (string, error)
	Delete(ctx context.Context, url string) error
}

// Caller 当前请求的已认证身份，由中间件从访问令牌解析
type Caller struct {
	UserID    string
	Email     string
	Role      model.RoleTitle
	Token     string
	ExpiresAt time.Time
}

func (c Caller) IsAdmin() bool {
	return c.Role == model.RoleAdmin
}
