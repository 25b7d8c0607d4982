package service

import (
	"context"
	"errors"
	"examprep_backend/internal/config"
	"examprep_backend/internal/model"
	"examprep_backend/internal/repository"
	"examprep_backend/internal/util"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// 内存实现的存储接口，仅用于服务层测试

type fakeClock struct {
	t time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

// fakeTx 出错时回滚账户表，模拟数据库事务
type fakeTx struct {
	users *userStore
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snap := f.users.snapshot()
	if err := fn(ctx); err != nil {
		f.users.restore(snap)
		return err
	}
	return nil
}

type roleStore struct {
	byTitle map[model.RoleTitle]*model.Role
}

func newRoleStore() *roleStore {
	s := &roleStore{byTitle: make(map[model.RoleTitle]*model.Role)}
	for _, title := range model.DefaultRoles() {
		s.byTitle[title] = &model.Role{UUIDBase: model.UUIDBase{ID: "role-" + strings.ToLower(string(title))}, Title: title}
	}
	return s
}

func (s *roleStore) FindByTitle(ctx context.Context, title model.RoleTitle) (*model.Role, error) {
	role, ok := s.byTitle[title]
	if !ok {
		return nil, util.ErrRoleNotFound
	}
	r := *role
	return &r, nil
}

func (s *roleStore) byID(id string) *model.Role {
	for _, r := range s.byTitle {
		if r.ID == id {
			role := *r
			return &role
		}
	}
	return nil
}

type userStore struct {
	mu      sync.Mutex
	roles   *roleStore
	byID    map[string]model.User
	updates int
	seq     int
}

func newUserStore(roles *roleStore) *userStore {
	return &userStore{roles: roles, byID: make(map[string]model.User)}
}

func (s *userStore) snapshot() map[string]model.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := make(map[string]model.User, len(s.byID))
	for k, v := range s.byID {
		snap[k] = v
	}
	return snap
}

func (s *userStore) restore(snap map[string]model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID = snap
}

func (s *userStore) load(u model.User) *model.User {
	u.Role = s.roles.byID(u.RoleID)
	return &u
}

func (s *userStore) Create(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.byID {
		if u.Email == user.Email {
			return fmt.Errorf("duplicate email %s", user.Email)
		}
	}
	if user.ID == "" {
		s.seq++
		user.ID = fmt.Sprintf("user-%d", s.seq)
	}
	stored := *user
	stored.Role = nil
	s.byID[user.ID] = stored
	return nil
}

func (s *userStore) FindByID(ctx context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.byID[id]
	if !ok {
		return nil, util.ErrUserNotFound
	}
	return s.load(u), nil
}

func (s *userStore) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	email = model.NormalizeEmail(email)
	for _, u := range s.byID {
		if u.Email == email {
			return s.load(u), nil
		}
	}
	return nil, util.ErrUserNotFound
}

func (s *userStore) FindByIDForUpdate(ctx context.Context, id string) (*model.User, error) {
	return s.FindByID(ctx, id)
}

func (s *userStore) FindByEmailForUpdate(ctx context.Context, email string) (*model.User, error) {
	return s.FindByEmail(ctx, email)
}

func (s *userStore) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := s.FindByEmail(ctx, email)
	if errors.Is(err, util.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *userStore) Update(ctx context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[user.ID]; !ok {
		return util.ErrUserNotFound
	}
	stored := *user
	stored.Role = nil
	s.byID[user.ID] = stored
	s.updates++
	return nil
}

func (s *userStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return util.ErrUserNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *userStore) List(ctx context.Context, f repository.UserFilter) ([]model.User, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.User
	for _, u := range s.byID {
		loaded := s.load(u)
		if f.Role != "" && loaded.RoleTitle() != f.Role {
			continue
		}
		if f.IsActive != nil && u.IsActive != *f.IsActive {
			continue
		}
		if f.IsVerified != nil && u.IsVerified != *f.IsVerified {
			continue
		}
		if f.IsPremium != nil && u.IsPremium != *f.IsPremium {
			continue
		}
		if f.Search != "" && !strings.Contains(u.Email, strings.ToLower(f.Search)) {
			continue
		}
		out = append(out, *loaded)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, int64(len(out)), nil
}

// get 测试断言用，直接读取存储的账户
func (s *userStore) get(t *testing.T, email string) *model.User {
	t.Helper()
	u, err := s.FindByEmail(context.Background(), email)
	require.NoError(t, err)
	return u
}

type refreshStore struct {
	mu     sync.Mutex
	byHash map[string]model.RefreshToken
	seq    int
}

func newRefreshStore() *refreshStore {
	return &refreshStore{byHash: make(map[string]model.RefreshToken)}
}

func (s *refreshStore) Create(ctx context.Context, token *model.RefreshToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	token.ID = fmt.Sprintf("refresh-%d", s.seq)
	s.byHash[token.TokenHash] = *token
	return nil
}

func (s *refreshStore) FindByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byHash[hash]
	if !ok {
		return nil, util.ErrRefreshTokenNotFound
	}
	return &t, nil
}

func (s *refreshStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, t := range s.byHash {
		if t.ID == id {
			delete(s.byHash, h)
		}
	}
	return nil
}

func (s *refreshStore) DeleteByUserID(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, t := range s.byHash {
		if t.UserID == userID {
			delete(s.byHash, h)
		}
	}
	return nil
}

func (s *refreshStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for h, t := range s.byHash {
		if t.Expired(now) {
			delete(s.byHash, h)
			n++
		}
	}
	return n, nil
}

func (s *refreshStore) countFor(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.byHash {
		if t.UserID == userID {
			n++
		}
	}
	return n
}

type revokedStore struct {
	mu     sync.Mutex
	tokens []model.RevokedToken
}

func (s *revokedStore) Create(ctx context.Context, token *model.RevokedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	token.TokenHash = util.HashToken(token.Token)
	s.tokens = append(s.tokens, *token)
	return nil
}

func (s *revokedStore) IsRevoked(ctx context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tokens {
		if t.Token == token {
			return true, nil
		}
	}
	return false, nil
}

func (s *revokedStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.tokens[:0]
	var n int64
	for _, t := range s.tokens {
		if t.ExpiresAt.Before(now) {
			n++
			continue
		}
		kept = append(kept, t)
	}
	s.tokens = kept
	return n, nil
}

type testStore struct {
	mu       sync.Mutex
	byID     map[string]*model.Test
	order    []string
	seq      int
	imageErr error
}

func newTestStore() *testStore {
	return &testStore{byID: make(map[string]*model.Test)}
}

func (s *testStore) nextID(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s-%d", prefix, s.seq)
}

func (s *testStore) assignIDs(testID string, questions []model.Question) {
	for i := range questions {
		q := &questions[i]
		q.ID = s.nextID("q")
		q.TestID = testID
		for j := range q.Answers {
			q.Answers[j].ID = s.nextID("a")
			q.Answers[j].QuestionID = q.ID
		}
	}
}

func cloneTest(t *model.Test, withQuestions bool) *model.Test {
	c := *t
	c.Questions = nil
	if !withQuestions {
		return &c
	}
	for _, q := range t.Questions {
		qc := q
		qc.Answers = append([]model.Answer(nil), q.Answers...)
		sort.SliceStable(qc.Answers, func(i, j int) bool { return qc.Answers[i].OrderIndex < qc.Answers[j].OrderIndex })
		c.Questions = append(c.Questions, qc)
	}
	sort.SliceStable(c.Questions, func(i, j int) bool { return c.Questions[i].OrderIndex < c.Questions[j].OrderIndex })
	return &c
}

func (s *testStore) Create(ctx context.Context, test *model.Test) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	test.ID = s.nextID("test")
	s.assignIDs(test.ID, test.Questions)
	s.byID[test.ID] = cloneTest(test, true)
	s.order = append(s.order, test.ID)
	return nil
}

func (s *testStore) FindByID(ctx context.Context, id string) (*model.Test, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, util.ErrTestNotFound
	}
	return cloneTest(t, false), nil
}

func (s *testStore) FindByIDWithQuestions(ctx context.Context, id string) (*model.Test, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.byID[id]
	if !ok {
		return nil, util.ErrTestNotFound
	}
	return cloneTest(t, true), nil
}

func (s *testStore) Update(ctx context.Context, test *model.Test) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[test.ID]
	if !ok {
		return util.ErrTestNotFound
	}
	updated := *test
	updated.Questions = stored.Questions
	s.byID[test.ID] = &updated
	return nil
}

func (s *testStore) ReplaceQuestions(ctx context.Context, testID string, questions []model.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[testID]
	if !ok {
		return util.ErrTestNotFound
	}
	s.assignIDs(testID, questions)
	stored.Questions = append([]model.Question(nil), questions...)
	return nil
}

func (s *testStore) RecalculateTotals(ctx context.Context, testID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[testID]
	if !ok {
		return util.ErrTestNotFound
	}
	total := 0
	for _, q := range stored.Questions {
		total += q.Score
	}
	stored.QuestionCount = len(stored.Questions)
	stored.TotalPossibleScore = total
	return nil
}

func (s *testStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return util.ErrTestNotFound
	}
	delete(s.byID, id)
	return nil
}

func (s *testStore) List(ctx context.Context, f repository.TestFilter) ([]model.Test, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Test
	for _, id := range s.order {
		t, ok := s.byID[id]
		if !ok {
			continue
		}
		if f.Status != "" && t.Status != f.Status {
			continue
		}
		if f.IsPremium != nil && t.IsPremium != *f.IsPremium {
			continue
		}
		out = append(out, *cloneTest(t, false))
	}
	return out, int64(len(out)), nil
}

func (s *testStore) QuestionTypeCounts(ctx context.Context, testIDs []string) (map[string]map[model.QuestionType]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[string]map[model.QuestionType]int)
	for _, id := range testIDs {
		t, ok := s.byID[id]
		if !ok {
			continue
		}
		for _, q := range t.Questions {
			if counts[id] == nil {
				counts[id] = make(map[model.QuestionType]int)
			}
			counts[id][q.QuestionType]++
		}
	}
	return counts, nil
}

func (s *testStore) findQuestion(id string) *model.Question {
	for _, t := range s.byID {
		for i := range t.Questions {
			if t.Questions[i].ID == id {
				return &t.Questions[i]
			}
		}
	}
	return nil
}

func (s *testStore) FindQuestion(ctx context.Context, id string) (*model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := s.findQuestion(id)
	if q == nil {
		return nil, util.ErrQuestionNotFound
	}
	c := *q
	return &c, nil
}

func (s *testStore) UpdateQuestionImage(ctx context.Context, questionID, imageURL string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.imageErr != nil {
		return s.imageErr
	}
	q := s.findQuestion(questionID)
	if q == nil {
		return util.ErrQuestionNotFound
	}
	q.ImageURL = imageURL
	return nil
}

type attemptStore struct {
	mu       sync.Mutex
	tests    *testStore
	byID     map[string]model.TestAttempt
	answers  map[string][]model.UserAnswer
	seq      int
	complete int
}

func newAttemptStore(tests *testStore) *attemptStore {
	return &attemptStore{
		tests:   tests,
		byID:    make(map[string]model.TestAttempt),
		answers: make(map[string][]model.UserAnswer),
	}
}

func (s *attemptStore) Create(ctx context.Context, attempt *model.TestAttempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	attempt.ID = fmt.Sprintf("attempt-%d", s.seq)
	s.byID[attempt.ID] = *attempt
	return nil
}

func (s *attemptStore) FindByID(ctx context.Context, id string) (*model.TestAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.byID[id]
	if !ok {
		return nil, util.ErrAttemptNotFound
	}
	return &a, nil
}

func (s *attemptStore) FindInProgress(ctx context.Context, userID, testID string) (*model.TestAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.byID {
		if a.UserID == userID && a.TestID == testID && a.Status == model.AttemptInProgress {
			return &a, nil
		}
	}
	return nil, util.ErrNoAttemptInProgress
}

func (s *attemptStore) Complete(ctx context.Context, attempt *model.TestAttempt, answers []model.UserAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]model.UserAnswer, len(answers))
	for i, ua := range answers {
		ua.ID = fmt.Sprintf("%s-answer-%d", attempt.ID, i)
		ua.TestAttemptID = attempt.ID
		stored[i] = ua
	}
	s.byID[attempt.ID] = *attempt
	s.answers[attempt.ID] = stored
	s.complete++
	return nil
}

func (s *attemptStore) list(match func(model.TestAttempt) bool) []model.TestAttempt {
	var out []model.TestAttempt
	for _, a := range s.byID {
		if !match(a) {
			continue
		}
		if t, err := s.tests.FindByID(context.Background(), a.TestID); err == nil {
			a.Test = t
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	return out
}

func (s *attemptStore) ListByUserAndTest(ctx context.Context, userID, testID string) ([]model.TestAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(a model.TestAttempt) bool { return a.UserID == userID && a.TestID == testID }), nil
}

func (s *attemptStore) ListByUser(ctx context.Context, userID string) ([]model.TestAttempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(func(a model.TestAttempt) bool { return a.UserID == userID }), nil
}

func (s *attemptStore) FindAnswers(ctx context.Context, attemptID string) ([]model.UserAnswer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.UserAnswer(nil), s.answers[attemptID]...), nil
}

func (s *attemptStore) CountCompletedParticipants(ctx context.Context, testID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	users := make(map[string]struct{})
	for _, a := range s.byID {
		if a.TestID == testID && a.IsCompleted() {
			users[a.UserID] = struct{}{}
		}
	}
	return int64(len(users)), nil
}

type sentMail struct {
	To      string
	Subject string
	Body    string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (s *fakeSender) Send(ctx context.Context, from, to, subject, htmlBody string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, sentMail{To: to, Subject: subject, Body: htmlBody})
	return nil
}

func (s *fakeSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func (s *fakeSender) last(t *testing.T) sentMail {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.sent)
	return s.sent[len(s.sent)-1]
}

// fakeRenderer 按 key=value 拼出正文，便于断言
type fakeRenderer struct{}

func (fakeRenderer) Render(name string, data map[string]string) (string, error) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := []string{name}
	for _, k := range keys {
		parts = append(parts, k+"="+data[k])
	}
	return strings.Join(parts, ";"), nil
}

type fakeImages struct {
	mu        sync.Mutex
	seq       int
	uploaded  []string
	deleted   []string
	uploadErr error
}

func (f *fakeImages) Upload(ctx context.Context, data []byte, folder string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.seq++
	url := fmt.Sprintf("/uploads/%s/img-%d.png", folder, f.seq)
	f.uploaded = append(f.uploaded, url)
	return url, nil
}

func (f *fakeImages) Delete(ctx context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, url)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		JWT: config.JWTConfig{
			Secret:                 "test-secret-test-secret-test-secret",
			Issuer:                 "examprep",
			Audience:               "examprep-clients",
			AccessTokenTTLSeconds:  3600,
			RefreshTokenTTLSeconds: 7 * 24 * 3600,
		},
		Security: config.SecurityConfig{
			Verification:          config.LockoutPolicy{MaxAttempts: 5, LockMinutes: 60, TTLMinutes: 15},
			Login:                 config.LockoutPolicy{MaxAttempts: 5, LockMinutes: 30},
			PasswordReset:         config.LockoutPolicy{MaxAttempts: 5, LockMinutes: 60, TTLMinutes: 30},
			EmailChange:           config.LockoutPolicy{MaxAttempts: 5, LockMinutes: 60, TTLMinutes: 15},
			ResendCooldownSeconds: 60,
			BcryptCost:            4,
		},
		Email: config.EmailConfig{
			From:        "no-reply@examprep.test",
			FrontendURL: "https://examprep.test",
		},
	}
}

// testEnv 组装全部服务，共享同一套内存存储与时钟
type testEnv struct {
	cfg      *config.Config
	clock    *fakeClock
	roles    *roleStore
	users    *userStore
	refresh  *refreshStore
	revoked  *revokedStore
	tests    *testStore
	attempts *attemptStore
	sender   *fakeSender
	images   *fakeImages

	auth      *AuthService
	profile   *ProfileService
	testSvc   *TestService
	attempt   *AttemptService
	adminUser *AdminUserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	e := &testEnv{
		cfg:     testConfig(),
		clock:   newFakeClock(),
		roles:   newRoleStore(),
		refresh: newRefreshStore(),
		revoked: &revokedStore{},
		tests:   newTestStore(),
		sender:  &fakeSender{},
		images:  &fakeImages{},
	}
	e.users = newUserStore(e.roles)
	e.attempts = newAttemptStore(e.tests)

	tx := &fakeTx{users: e.users}
	mailer := NewMailer(e.sender, fakeRenderer{}, e.cfg.Email.From)
	tokens := NewTokenService(e.refresh, e.cfg.JWT)
	tokens.now = e.clock.Now

	e.auth = NewAuthService(tx, e.users, e.roles, e.refresh, e.revoked, tokens, mailer, e.cfg)
	e.auth.now = e.clock.Now
	e.profile = NewProfileService(tx, e.users, e.images, mailer, e.cfg)
	e.profile.now = e.clock.Now
	e.testSvc = NewTestService(tx, e.users, e.tests, e.images)
	e.testSvc.now = e.clock.Now
	e.attempt = NewAttemptService(tx, e.users, e.tests, e.attempts)
	e.attempt.now = e.clock.Now
	e.adminUser = NewAdminUserService(tx, e.users, e.roles, e.cfg)
	e.adminUser.now = e.clock.Now
	return e
}

type userOption func(*model.User)

func asAdmin(u *model.User) { u.RoleID = "role-admin" }

func asPremium(u *model.User) { u.IsPremium = true }

func asUnverified(u *model.User) { u.IsVerified = false }

// seedUser 直接写入一个已验证的普通账户
func (e *testEnv) seedUser(t *testing.T, email, password string, opts ...userOption) *model.User {
	t.Helper()
	hash, err := hashPassword(password, e.cfg.Security.BcryptCost)
	require.NoError(t, err)

	u := &model.User{
		RoleID:       "role-customer",
		Email:        model.NormalizeEmail(email),
		PasswordHash: hash,
		FirstName:    "Test",
		LastName:     "User",
		IsActive:     true,
		IsVerified:   true,
	}
	for _, opt := range opts {
		opt(u)
	}
	require.NoError(t, e.users.Create(context.Background(), u))
	return e.users.get(t, u.Email)
}

func callerFor(u *model.User) Caller {
	return Caller{UserID: u.ID, Email: u.Email, Role: u.RoleTitle()}
}

func boolPtr(v bool) *bool { return &v }

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
