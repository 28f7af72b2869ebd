package httpapi

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutrifit-backend/internal/fault"
	"nutrifit-backend/internal/request"
)

type captured struct {
	err     error
	started bool
	calls   int
}

func (c *captured) handle(w http.ResponseWriter, _ *http.Request, err error, started bool) {
	c.calls++
	c.err = err
	c.started = started
	if !started {
		w.WriteHeader(fault.From(err).StatusCode())
	}
}

func tracer(name string, trace *[]string) Stage {
	return Stage{Name: name, Run: func(w http.ResponseWriter, r *http.Request, next Next) error {
		*trace = append(*trace, name)
		return next(w, r)
	}}
}

func TestPipelineRunsStagesInOrder(t *testing.T) {
	var trace []string
	final := func(w http.ResponseWriter, r *http.Request) error {
		trace = append(trace, "dispatch")
		w.WriteHeader(http.StatusNoContent)
		return nil
	}
	errs := &captured{}
	p := NewPipeline(final, errs.handle, tracer("s1", &trace), tracer("s2", &trace), tracer("s3", &trace))

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, []string{"s1", "s2", "s3", "dispatch"}, trace)
	assert.Equal(t, []string{"s1", "s2", "s3"}, p.Stages())
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Zero(t, errs.calls)
	assert.NotEmpty(t, rec.Header().Get(request.HeaderRequestID))
}

func TestPipelineShortCircuit(t *testing.T) {
	var trace []string
	stop := Stage{Name: "stop", Run: func(w http.ResponseWriter, r *http.Request, next Next) error {
		trace = append(trace, "stop")
		w.WriteHeader(http.StatusAccepted)
		return nil
	}}
	final := func(w http.ResponseWriter, r *http.Request) error {
		trace = append(trace, "dispatch")
		return nil
	}
	errs := &captured{}
	p := NewPipeline(final, errs.handle, tracer("s1", &trace), stop, tracer("s3", &trace))

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, []string{"s1", "stop"}, trace)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Zero(t, errs.calls)
}

func TestPipelineFaultAbortsChain(t *testing.T) {
	var trace []string
	boom := Stage{Name: "boom", Run: func(w http.ResponseWriter, r *http.Request, next Next) error {
		trace = append(trace, "boom")
		return fault.New(http.StatusBadRequest, "nope")
	}}
	final := func(w http.ResponseWriter, r *http.Request) error {
		trace = append(trace, "dispatch")
		return nil
	}
	errs := &captured{}
	p := NewPipeline(final, errs.handle, tracer("s1", &trace), boom, tracer("s3", &trace))

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	assert.Equal(t, []string{"s1", "boom"}, trace)
	assert.Equal(t, 1, errs.calls)
	assert.False(t, errs.started)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPipelineDispatchErrorReachesHandler(t *testing.T) {
	errs := &captured{}
	p := NewPipeline(func(w http.ResponseWriter, r *http.Request) error {
		return errors.New("handler broke")
	}, errs.handle)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, 1, errs.calls)
	assert.EqualError(t, errs.err, "handler broke")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPipelineRecoversPanic(t *testing.T) {
	errs := &captured{}
	p := NewPipeline(func(w http.ResponseWriter, r *http.Request) error {
		panic("nil map write")
	}, errs.handle)

	rec := httptest.NewRecorder()
	p.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, 1, errs.calls)
	f := fault.From(errs.err)
	assert.Equal(t, "nil map write", f.Message)
	assert.Contains(t, f.Stack, "goroutine")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPipelineReportsCommittedResponse(t *testing.T) {
	errs := &captured{}
	p := NewPipeline(func(w http.ResponseWriter, r *http.Request) error {
		w.WriteHeader(http.StatusOK)
		return errors.New("too late")
	}, errs.handle)

	p.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	require.Equal(t, 1, errs.calls)
	assert.True(t, errs.started)
}

type recordingObserver struct {
	started  int
	finished []int
	faults   []string
}

func (o *recordingObserver) RequestStarted() { o.started++ }
func (o *recordingObserver) RequestFinished(_ string, status int, _ time.Duration) {
	o.finished = append(o.finished, status)
}
func (o *recordingObserver) Fault(kind string) { o.faults = append(o.faults, kind) }

func TestPipelineObserver(t *testing.T) {
	obs := &recordingObserver{}
	errs := &captured{}
	p := NewPipeline(func(w http.ResponseWriter, r *http.Request) error {
		if r.URL.Path == "/fail" {
			return fault.Payload(http.StatusBadRequest, fault.ErrMalformedBody, "bad")
		}
		return nil
	}, errs.handle).WithObserver(obs)

	p.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))
	p.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/fail", nil))

	assert.Equal(t, 2, obs.started)
	assert.Equal(t, []int{http.StatusOK, http.StatusBadRequest}, obs.finished)
	assert.Equal(t, []string{"payload"}, obs.faults)
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.RemoteAddr = "10.0.0.7:5123"
	r.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.Equal(t, "10.0.0.7", clientIP(r, false))
	assert.Equal(t, "203.0.113.9", clientIP(r, true))

	r.RemoteAddr = "[::1]:8080"
	assert.Equal(t, "::1", clientIP(r, false))
}
