// Package logger provides structured logging for agentplatform clients
// using zerolog.
//
// A Logger is scoped by component (httpclient, chat, cli) and carries the
// platform trace id when one is known, so that client-side log lines can be
// matched against server logs.
//
// # Configuration
//
//	logging:
//	  level: "debug"
//	  format: "json"
//
// # Usage
//
//	log := logger.WithComponent("chat")
//	log.Info("stream finished", logger.Fields("events", n, "trace_id", id))
package logger
