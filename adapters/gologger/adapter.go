// Package gologger wires the glog logging stack the client uses into the
// logger contracts go-job workers expect, so queued push handlers log through
// the same sink as the synchronous request path.
package gologger

import (
	job "github.com/goliatone/go-job"
	glog "github.com/goliatone/go-logger/glog"
)

// Resolve settles on the logger the push workers share with the client. A
// provider wins over a bare logger and a nop logger backstops both, so worker
// wiring never nil-checks its log handles.
func Resolve(name string, provider glog.LoggerProvider, logger glog.Logger) (glog.LoggerProvider, glog.Logger) {
	return glog.Resolve(name, provider, logger)
}

// Bridge wraps resolved glog handles in the go-job logger contracts. Nil
// inputs stay nil so go-job falls back to its own defaults.
func Bridge(provider glog.LoggerProvider, logger glog.Logger) (job.LoggerProvider, job.Logger) {
	var jobProvider job.LoggerProvider
	if provider != nil {
		jobProvider = job.GoLoggerProvider(provider)
	}
	var jobLogger job.Logger
	if logger != nil {
		jobLogger = job.GoLogger(logger)
	}
	return jobProvider, jobLogger
}

// ResolveForJob combines Resolve and Bridge for worker construction: the glog
// pair serves the client side, the go-job pair serves the queue side, and all
// four write to the same sink.
func ResolveForJob(
	name string,
	provider glog.LoggerProvider,
	logger glog.Logger,
) (glog.LoggerProvider, glog.Logger, job.LoggerProvider, job.Logger) {
	resolvedProvider, resolvedLogger := Resolve(name, provider, logger)
	jobProvider, jobLogger := Bridge(resolvedProvider, resolvedLogger)
	return resolvedProvider, resolvedLogger, jobProvider, jobLogger
}
