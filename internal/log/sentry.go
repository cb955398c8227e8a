package log

import (
	"time"

	"github.com/getsentry/sentry-go"
	sentrylogrus "github.com/getsentry/sentry-go/logrus"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
)

const sentryFlushTimeout = 2 * time.Second

// SentrySettings configures error reporting. An empty DSN disables Sentry
// entirely, which is the default for local development.
type SentrySettings struct {
	DSN         string
	Environment string
}

// InitSentry sets up a Sentry hub and hooks it into the logger so that
// Error-and-above entries are reported as events. The returned flush
// function drains pending events and should run before the process exits.
func InitSentry(logger *logrus.Logger, settings SentrySettings) (*sentry.Hub, func(), error) {
	if settings.DSN == "" {
		return nil, func() {}, nil
	}

	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:              settings.DSN,
		Environment:      settings.Environment,
		AttachStacktrace: true,
	})
	if err != nil {
		return nil, nil, eris.Wrap(err, "initialising sentry client")
	}

	hook := sentrylogrus.NewLogHookFromClient([]logrus.Level{
		logrus.ErrorLevel,
		logrus.FatalLevel,
		logrus.PanicLevel,
	}, client)
	logger.AddHook(hook)

	hub := sentry.NewHub(client, sentry.NewScope())
	flush := func() {
		hub.Flush(sentryFlushTimeout)
	}

	return hub, flush, nil
}
