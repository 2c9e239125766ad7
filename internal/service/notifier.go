package service

import (
	"context"
	"fmt"
	"net/url"

	"wardline.app/api/internal/notify"
)

// Notifier delivers emails on a best-effort basis. It reports whether the
// notification was accepted; callers log a false result and move on.
type Notifier interface {
	Notify(ctx context.Context, recipient string, kind notify.Kind, payload map[string]string) bool
}

type links struct {
	frontendURL string
}

func (l links) invitation(token string) string {
	return fmt.Sprintf("%s/invitations/accept/%s", l.frontendURL, url.PathEscape(token))
}

func (l links) verification(token string) string {
	return fmt.Sprintf("%s/verify-email?token=%s", l.frontendURL, url.QueryEscape(token))
}

func (l links) passwordReset(token string) string {
	return fmt.Sprintf("%s/reset-password?token=%s", l.frontendURL, url.QueryEscape(token))
}
