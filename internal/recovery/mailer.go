package recovery

import (
	"context"
	"net/url"

	"go.uber.org/zap"
)

// Mailer delivers the reset link. Delivery itself lives outside this service.
type Mailer interface {
	SendPasswordReset(ctx context.Context, email, token string) error
}

// LogMailer writes the reset link to the log instead of sending mail. It is
// the default for development setups.
type LogMailer struct {
	BaseURL string
	Logger  *zap.SugaredLogger
}

func (m LogMailer) SendPasswordReset(_ context.Context, email, token string) error {
	link, err := ResetLink(m.BaseURL, email, token)
	if err != nil {
		return err
	}
	m.Logger.Infow("password reset link", "email", email, "link", link)
	return nil
}

// ResetLink appends token and email as query parameters to base.
func ResetLink(base, email, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	q.Set("email", email)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
