package service

import (
	"context"
	"errors"
	"examprep_backend/internal/config"
	"examprep_backend/internal/util"
	"examprep_backend/pkg/logger"
	"examprep_backend/pkg/monitoring"
	"fmt"
	"html"
	"net"
	"net/smtp"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// 邮件模板名称，对应 templates/email/<name>.html
const (
	templateVerification  = "verification"
	templatePasswordReset = "password-reset"
	templateEmailChange   = "email-change"
)

// SMTPSender 通过 SMTP 发送 HTML 邮件
type SMTPSender struct {
	Cfg config.EmailConfig
}

func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{Cfg: cfg}
}

func (s *SMTPSender) Send(ctx context.Context, from, to, subject, htmlBody string) error {
	if s.Cfg.Host == "" {
		return errors.New("smtp host not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	msg.WriteString("From: " + from + "\r\n")
	msg.WriteString("To: " + to + "\r\n")
	msg.WriteString("Subject: " + subject + "\r\n")
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n\r\n")
	msg.WriteString(htmlBody)

	addr := net.JoinHostPort(s.Cfg.Host, strconv.Itoa(s.Cfg.Port))
	var auth smtp.Auth
	if s.Cfg.Username != "" {
		auth = smtp.PlainAuth("", s.Cfg.Username, s.Cfg.Password, s.Cfg.Host)
	}
	return smtp.SendMail(addr, auth, from, []string{to}, []byte(msg.String()))
}

// FileTemplateRenderer 读取模板目录，按 {{key}} 占位符替换
type FileTemplateRenderer struct {
	Dir string

	mu    sync.RWMutex
	cache map[string]string
}

func NewFileTemplateRenderer(dir string) *FileTemplateRenderer {
	return &FileTemplateRenderer{Dir: dir, cache: make(map[string]string)}
}

func (r *FileTemplateRenderer) load(name string) (string, error) {
	r.mu.RLock()
	tpl, ok := r.cache[name]
	r.mu.RUnlock()
	if ok {
		return tpl, nil
	}

	raw, err := os.ReadFile(filepath.Join(r.Dir, name+".html"))
	if err != nil {
		return "", fmt.Errorf("load email template %s: %w", name, err)
	}

	r.mu.Lock()
	r.cache[name] = string(raw)
	r.mu.Unlock()
	return string(raw), nil
}

func (r *FileTemplateRenderer) Render(name string, data map[string]string) (string, error) {
	tpl, err := r.load(name)
	if err != nil {
		return "", err
	}
	pairs := make([]string, 0, len(data)*2)
	for k, v := range data {
		pairs = append(pairs, "{{"+k+"}}", html.EscapeString(v))
	}
	return strings.NewReplacer(pairs...).Replace(tpl), nil
}

type emailFlow string

const (
	flowSignup        emailFlow = "signup"
	flowResend        emailFlow = "resend"
	flowPasswordReset emailFlow = "password_reset"
	flowEmailChange   emailFlow = "email_change"
)

type emailFailurePolicy int

const (
	// 记录日志后继续
	logEmailFailure emailFailurePolicy = iota
	// 返回 ErrSendEmail，所在事务回滚
	surfaceEmailFailure
)

// emailFailurePolicies 各流程的发信失败处理方式
var emailFailurePolicies = map[emailFlow]emailFailurePolicy{
	flowSignup:        logEmailFailure,
	flowResend:        surfaceEmailFailure,
	flowPasswordReset: surfaceEmailFailure,
	flowEmailChange:   surfaceEmailFailure,
}

// Mailer 渲染模板并投递，失败时按流程策略处理
type Mailer struct {
	Sender   EmailSender
	Renderer TemplateRenderer
	From     string
}

func NewMailer(sender EmailSender, renderer TemplateRenderer, from string) *Mailer {
	return &Mailer{Sender: sender, Renderer: renderer, From: from}
}

func (m *Mailer) deliver(ctx context.Context, template, to, subject string, data map[string]string) error {
	body, err := m.Renderer.Render(template, data)
	if err != nil {
		return err
	}
	return m.Sender.Send(ctx, m.From, to, subject, body)
}

func (m *Mailer) dispatch(ctx context.Context, flow emailFlow, template, to, subject string, data map[string]string) error {
	err := m.deliver(ctx, template, to, subject, data)
	if err == nil {
		monitoring.EmailCounter.WithLabelValues(template, "sent").Inc()
		return nil
	}

	monitoring.EmailCounter.WithLabelValues(template, "failed").Inc()
	logger.Log.Error("Failed to send email",
		zap.String("flow", string(flow)),
		zap.String("to", logger.MaskEmail(to)),
		zap.Error(err))

	if emailFailurePolicies[flow] == surfaceEmailFailure {
		return util.ErrSendEmail
	}
	return nil
}
