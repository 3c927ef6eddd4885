package notifier

import (
	"context"
	"log"
	"os"
	"strings"
)

// LogSender 仅打印邮件摘要，适合开发阶段或未配置 SMTP 时使用。
type LogSender struct {
	logger *log.Logger
}

// NewLogSender 创建日志发送器，未提供 logger 时默认输出到标准输出。
func NewLogSender(logger *log.Logger) *LogSender {
	if logger == nil {
		logger = log.New(os.Stdout, "[mail] ", log.LstdFlags)
	}
	return &LogSender{logger: logger}
}

// Send 打印收件人与主题，不做真实投递。
func (s *LogSender) Send(ctx context.Context, msg EmailMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.logger.Printf("mail to=%s subject=%q bytes=%d", strings.Join(msg.To, ","), msg.Subject, len(msg.Body))
	return nil
}
