// Package notify emails a summary of newly downloaded files.
package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"cms-downloader/internal/config"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("cms-downloader/internal/notify")

type CourseFiles struct {
	Course string
	Files  []string
}

type Report struct {
	StartedAt time.Time
	Courses   []CourseFiles
	Failed    int
}

func (r Report) count() int {
	total := 0
	for _, c := range r.Courses {
		total += len(c.Files)
	}
	return total
}

func Subject(r Report) string {
	count := r.count()
	if count == 1 {
		return "1 new course file"
	}
	return fmt.Sprintf("%d new course files", count)
}

func Body(r Report) string {
	var out strings.Builder
	fmt.Fprintf(&out, "New files downloaded on %s:\n", r.StartedAt.Format("Mon, 02 Jan 2006 15:04"))
	for _, c := range r.Courses {
		if len(c.Files) == 0 {
			continue
		}
		fmt.Fprintf(&out, "\n%s\n", c.Course)
		for _, f := range c.Files {
			fmt.Fprintf(&out, "  - %s\n", f)
		}
	}
	if r.Failed > 0 {
		fmt.Fprintf(&out, "\n%d file(s) failed to download and will be retried on the next sync.\n", r.Failed)
	}
	return out.String()
}

type sendFunc = func(mail *email.Email, addr string, auth smtp.Auth) error

type Notifier struct {
	config config.Notify
	send   sendFunc
}

func NewNotifier(cfg config.Notify) Notifier {
	return Notifier{
		config: cfg,
		send: func(mail *email.Email, addr string, auth smtp.Auth) error {
			return mail.Send(addr, auth)
		},
	}
}

// Send emails the report, it falls back to sending without authentication
// when the server does not support AUTH.
func (n Notifier) Send(ctx context.Context, r Report) error {
	_, span := tracer.Start(ctx, "Send")
	defer span.End()

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("CMS Downloader <%s>", n.config.EmailAddress)
	mail.To = n.config.To
	mail.Subject = Subject(r)
	mail.Text = []byte(Body(r))

	addr := fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)
	err := n.send(
		mail,
		addr,
		smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = n.send(mail, addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
