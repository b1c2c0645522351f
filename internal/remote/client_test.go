package remote

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dErrors "github.com/InteriMed/Medishift-sub005/pkg/domain-errors"
)

// =============================================================================
// Remote Client Test Suite
// =============================================================================
// Justification for unit tests: the reliability wrapper decides which
// failures are retried and when the breaker opens. Those decisions are not
// observable from handler tests, which mock the Caller.

type fakeTransport struct {
	calls atomic.Int32
	fn    func(n int32) ([]byte, error)
}

func (f *fakeTransport) Post(_ context.Context, _ string, _ []byte) ([]byte, error) {
	return f.fn(f.calls.Add(1))
}

type recordingMetrics struct {
	results []string
	states  []float64
}

func (m *recordingMetrics) IncRemoteCall(_, result string)      { m.results = append(m.results, result) }
func (m *recordingMetrics) SetBreakerState(_ string, s float64) { m.states = append(m.states, s) }

type ClientSuite struct {
	suite.Suite
	metrics *recordingMetrics
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.metrics = &recordingMetrics{}
}

func (s *ClientSuite) client(t Transport, failures uint32) *Client {
	return NewClient(t, Settings{
		RatePerSecond:   1000,
		Burst:           100,
		RetryAttempts:   3,
		RetryDelay:      time.Millisecond,
		BreakerFailures: failures,
		BreakerTimeout:  time.Hour,
	}, WithMetrics(s.metrics))
}

func (s *ClientSuite) TestRetriesServerErrors() {
	tr := &fakeTransport{fn: func(n int32) ([]byte, error) {
		if n < 3 {
			return nil, &StatusError{StatusCode: 503, Body: "busy"}
		}
		return []byte(`{"url":"https://docs/x.pdf"}`), nil
	}}

	out, err := s.client(tr, 10).Call(context.Background(), RenderContractPDF, map[string]string{"contractId": "c1"})
	s.Require().NoError(err)
	s.JSONEq(`{"url":"https://docs/x.pdf"}`, string(out))
	s.Equal(int32(3), tr.calls.Load())
	s.Equal([]string{"ok"}, s.metrics.results)
}

func (s *ClientSuite) TestDoesNotRetryClientErrors() {
	tr := &fakeTransport{fn: func(int32) ([]byte, error) {
		return nil, &StatusError{StatusCode: 400, Body: "bad payload"}
	}}

	_, err := s.client(tr, 10).Call(context.Background(), PayrollExport, nil)
	s.Require().Error(err)
	s.Equal(int32(1), tr.calls.Load())
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
}

func (s *ClientSuite) TestBreakerOpensAfterConsecutiveFailures() {
	tr := &fakeTransport{fn: func(int32) ([]byte, error) {
		return nil, errors.New("connection refused")
	}}
	c := s.client(tr, 2)

	for range 2 {
		_, err := c.Call(context.Background(), TerminationBatch, nil)
		s.Require().Error(err)
	}
	before := tr.calls.Load()

	_, err := c.Call(context.Background(), TerminationBatch, nil)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	s.Contains(err.Error(), "unavailable")
	s.Equal(before, tr.calls.Load(), "open breaker short-circuits")
	s.NotEmpty(s.metrics.states)
}

func (s *ClientSuite) TestHTTPTransport() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.Equal("/procedures/"+TerminationLetter, r.URL.Path)
		var body map[string]string
		s.NoError(json.NewDecoder(r.Body).Decode(&body))
		if body["contractId"] == "" {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte("contractId required"))
			return
		}
		_, _ = w.Write([]byte(`{"letterUrl":"https://docs/l.pdf"}`))
	}))
	defer srv.Close()

	c := s.client(NewHTTPTransport(srv.URL+"/", srv.Client()), 10)
	out, err := c.Call(context.Background(), TerminationLetter, map[string]string{"contractId": "c1"})
	s.Require().NoError(err)
	s.Contains(string(out), "letterUrl")

	_, err = c.Call(context.Background(), TerminationLetter, map[string]string{})
	s.Require().Error(err)
	var se *StatusError
	s.Require().ErrorAs(err, &se)
	s.Equal(http.StatusUnprocessableEntity, se.StatusCode)
}
