package logging

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- LogData tests --

func TestLogData_MergesDataAndTimings(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logData := NewLogData(logger)

	logData.AddData("jobId", "job-1")
	stop := logData.AddTiming("parseMs")
	stop()
	logData.Log().Info("done")

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "job-1", entry.Data["jobId"])
	assert.Contains(t, entry.Data, "parseMs")
}

func TestLogData_AddToExistingTimingAccumulates(t *testing.T) {
	logger, _ := test.NewNullLogger()
	logData := NewLogData(logger)
	logData.timeItems["batchMs"] = 5

	logData.AddToExistingTiming("batchMs")()
	assert.GreaterOrEqual(t, logData.timeItems["batchMs"], int64(5))
}

func TestGetLogData_FallsBackWhenMissing(t *testing.T) {
	logger, _ := test.NewNullLogger()
	attached := NewLogData(logger)

	assert.Same(t, attached, GetLogData(WithLogData(context.Background(), attached)))
	assert.NotNil(t, GetLogData(context.Background()))
}

// -- LoggingWrapper tests --

func TestLoggingWrapper_LogsOutcome(t *testing.T) {
	logger, hook := test.NewNullLogger()
	handler := LoggingWrapper("Status", logger, func(w http.ResponseWriter, req *http.Request, logData *LogData) error {
		assert.Same(t, logData, GetLogData(req.Context()))
		if req.Method != http.MethodGet {
			return errors.New("bad method")
		}
		return nil
	})

	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/status", nil))
	assert.Equal(t, "Handler.Status.Complete", hook.LastEntry().Message)

	handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/status", nil))
	assert.Equal(t, "Handler.Status.Error", hook.LastEntry().Message)
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
}

// -- Middleware tests --

type pingOutput struct {
	Body struct {
		Ok bool `json:"ok"`
	}
}

func TestMiddleware_LogsByOperationID(t *testing.T) {
	logger, hook := test.NewNullLogger()
	_, api := humatest.New(t)
	api.UseMiddleware(Middleware(logger))

	huma.Register(api, huma.Operation{
		OperationID: "ping",
		Method:      http.MethodGet,
		Path:        "/ping",
	}, func(ctx context.Context, _ *struct{}) (*pingOutput, error) {
		GetLogData(ctx).AddData("seen", true)
		out := &pingOutput{}
		out.Body.Ok = true
		return out, nil
	})
	huma.Register(api, huma.Operation{
		OperationID: "explode",
		Method:      http.MethodGet,
		Path:        "/explode",
	}, func(ctx context.Context, _ *struct{}) (*pingOutput, error) {
		return nil, huma.Error500InternalServerError("boom")
	})

	resp := api.Get("/ping")
	assert.Equal(t, http.StatusOK, resp.Code)
	entry := hook.LastEntry()
	assert.Equal(t, "Handler.ping.Complete", entry.Message)
	assert.Equal(t, true, entry.Data["seen"])
	assert.Equal(t, http.StatusOK, entry.Data["status"])

	resp = api.Get("/explode")
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
	assert.Equal(t, "Handler.explode.Error", hook.LastEntry().Message)
}

func TestSetLevel(t *testing.T) {
	logger := SetupLogging()

	assert.NoError(t, SetLevel(logger, ""))
	assert.Equal(t, logrus.InfoLevel, logger.GetLevel())

	assert.NoError(t, SetLevel(logger, "debug"))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())

	assert.Error(t, SetLevel(logger, "chatty"))
	assert.Equal(t, logrus.DebugLevel, logger.GetLevel())
}
