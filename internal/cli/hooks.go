package cli

import (
	"context"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/mlenz/nodeforge/pkg/observability"
)

// logValidationHooks mirrors validation events into the server log.
type logValidationHooks struct {
	logger *charmlog.Logger
}

func (h logValidationHooks) OnValidateStart(_ context.Context, kind string) {
	h.logger.Debugf("validate %s: start", kind)
}

func (h logValidationHooks) OnValidateComplete(_ context.Context, kind string, errs, warns int, d time.Duration) {
	h.logger.Debugf("validate %s: %d errors, %d warnings in %s", kind, errs, warns, d)
}

// logHTTPHooks mirrors include-fetch traffic into the log.
type logHTTPHooks struct {
	logger *charmlog.Logger
}

func (h logHTTPHooks) OnRequest(_ context.Context, method, host, path string) {
	h.logger.Debugf("%s %s%s", method, host, path)
}

func (h logHTTPHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debugf("%s %s%s: %d in %s", method, host, path, status, d)
}

func (h logHTTPHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.logger.Warnf("%s %s%s: %v", method, host, path, err)
}

// installHooks routes observability events into the given logger.
func installHooks(logger *charmlog.Logger) {
	observability.SetValidationHooks(logValidationHooks{logger: logger})
	observability.SetHTTPHooks(logHTTPHooks{logger: logger})
}
