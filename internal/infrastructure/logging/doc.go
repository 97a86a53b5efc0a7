// Package logging builds the process logger on uber/zap.
//
// New returns a Logger configured from the LOG_* settings: JSON output in
// production, colored console output with -dev. The composition root in
// infrastructure/server creates one Logger and hands each subsystem a named
// child through Component:
//
//	logger, err := logging.New(cfg.Logging)
//	catalogs := container.NewRegistry(logger.Component("catalog"))
//	sessions := session.NewManager(session.Options{Logger: logger.Component("session")})
//
// Domain packages never import this package's Logger type. They accept a
// plain *zap.Logger in their options and pass it through OrNop, so a nil
// logger silences them instead of panicking. The session manager tags each
// session's collaborators with the session id through zap.Logger.With.
package logging
