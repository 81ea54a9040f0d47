package middleware

import (
	"github.com/pure-golang/velocity-mailer/logger"
)

func init() {
	// Initialize noop logger for tests
	logger.InitDefault(logger.Config{
		Provider: logger.ProviderNoop,
		Level:    logger.INFO,
	})
}
