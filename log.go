package netcore

import "github.com/pion/logging"

// defaultLoggerFactory is shared by every constructor in this module that
// does not receive an explicit logging.LeveledLogger. Scopes are named
// after the component, mirroring how pion's own subpackages each pull a
// scoped logger from a shared factory.
var defaultLoggerFactory = logging.NewDefaultLoggerFactory()

func namedLogger(l logging.LeveledLogger, scope string) logging.LeveledLogger {
	if l != nil {
		return l
	}
	return defaultLoggerFactory.NewLogger(scope)
}
