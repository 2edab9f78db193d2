package mylog

import "context"

type Severity string

const (
	SeverityDebug Severity = "DEBUG"
	SeverityInfo  Severity = "INFO"
	SeverityWarn  Severity = "WARN"
	SeverityError Severity = "ERROR"
)

// New is bound at init-time to the backend matching the runtime environment.
var New func(componentName string) Logger

type Logger interface {
	Log(c context.Context, traceLabel string, severity Severity, format string, a ...any)
}
