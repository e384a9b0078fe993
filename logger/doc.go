// Package logger provides structured logging for gostream using zerolog.
//
// It supports JSON and console output, level configuration, a global
// logger, and component-scoped loggers looked up from a named registry.
// Pipelines log under the "stream" component and tag every entry with the
// pipeline name, run ID and stage.
//
// # Configuration
//
//	logging:
//	  level: "info"
//	  format: "json"
//
// # Usage
//
//	log := logger.Get("stream")
//	log.Info("run finished", logger.Fields(logger.FieldRunID, id, logger.FieldChunks, n))
package logger
