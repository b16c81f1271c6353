package logging

import (
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"
)

// LoggingWrapper adapts a plain handler, giving it a fresh LogData per
// request and logging its start and outcome.
func LoggingWrapper(
	loggingName string,
	log logrus.FieldLogger,
	handler func(http.ResponseWriter, *http.Request, *LogData) error,
) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		logData := NewLogData(log)
		log.Infof("Handler.%v.Start", loggingName)

		endTimer := logData.AddTiming("duration")
		err := handler(w, req.WithContext(WithLogData(req.Context(), logData)), logData)
		endTimer()
		if err != nil {
			logData.Log().WithError(err).Errorf("Handler.%v.Error", loggingName)
			return
		}

		logData.Log().Infof("Handler.%v.Complete", loggingName)
	}
}

// Middleware is the huma counterpart of LoggingWrapper. The operation id
// names the handler and responses of 500 and above are logged as errors.
func Middleware(log logrus.FieldLogger) func(huma.Context, func(huma.Context)) {
	return func(ctx huma.Context, next func(huma.Context)) {
		loggingName := "unknown"
		if op := ctx.Operation(); op != nil && op.OperationID != "" {
			loggingName = op.OperationID
		}

		logData := NewLogData(log)
		logData.AddData("method", ctx.Method())
		logData.AddData("path", ctx.URL().Path)
		log.Infof("Handler.%v.Start", loggingName)

		endTimer := logData.AddTiming("duration")
		next(huma.WithContext(ctx, WithLogData(ctx.Context(), logData)))
		endTimer()

		status := ctx.Status()
		logData.AddData("status", status)
		if status >= http.StatusInternalServerError {
			logData.Log().Errorf("Handler.%v.Error", loggingName)
			return
		}
		logData.Log().Infof("Handler.%v.Complete", loggingName)
	}
}
