package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string) {}

func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

// LogErrorReporter writes reported failures to a logger with their envelope
// text code.
type LogErrorReporter struct {
	Logger Logger
	Mapper ErrorMapper
}

func (r LogErrorReporter) Report(ctx context.Context, err error, fields map[string]any) {
	if err == nil {
		return
	}
	logger := glog.Ensure(r.Logger)
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	mapper := r.Mapper
	if mapper == nil {
		mapper = defaultErrorMapper
	}
	reported := cloneFields(fields)
	if mapped := mapper(err); mapped != nil {
		reported["text_code"] = mapped.TextCode
		reported["category"] = mapped.Category.String()
		reported["code"] = mapped.Code
	}
	reported["error"] = err.Error()
	logger.Error("orgcreator error reported", flattenFields(reported)...)
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}

var (
	_ MetricsRecorder = NopMetricsRecorder{}
	_ ErrorReporter   = LogErrorReporter{}
)
