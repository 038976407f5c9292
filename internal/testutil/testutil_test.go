package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// mockTestingT captures failures from the assertion helpers.
type mockTestingT struct {
	failed bool
	fatal  bool
	msgs   []string
}

func (m *mockTestingT) Helper() {}

func (m *mockTestingT) Errorf(format string, args ...interface{}) {
	m.failed = true
	m.msgs = append(m.msgs, fmt.Sprintf(format, args...))
}

func (m *mockTestingT) Fatalf(format string, args ...interface{}) {
	m.failed = true
	m.fatal = true
	m.msgs = append(m.msgs, fmt.Sprintf(format, args...))
}

func TestAssertHTTPStatus(t *testing.T) {
	tests := []struct {
		name       string
		expected   int
		actual     int
		shouldFail bool
	}{
		{name: "matching status codes", expected: 200, actual: 200, shouldFail: false},
		{name: "different status codes", expected: 200, actual: 404, shouldFail: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockT := &mockTestingT{}
			AssertHTTPStatus(mockT, tt.expected, tt.actual, "test context")
			if tt.shouldFail != mockT.failed {
				t.Errorf("expected failed=%v, got %v (%v)", tt.shouldFail, mockT.failed, mockT.msgs)
			}
		})
	}
}

func TestAssertJSONResponse(t *testing.T) {
	rr := httptest.NewRecorder()
	rr.Body.WriteString(`{"status":"ok","result":{"x":1}}`)

	mockT := &mockTestingT{}
	resp := AssertJSONResponse(mockT, rr, "ok")
	if mockT.failed {
		t.Fatalf("unexpected failure: %v", mockT.msgs)
	}
	if _, ok := resp["result"]; !ok {
		t.Error("expected result field in decoded response")
	}

	rr = httptest.NewRecorder()
	rr.Body.WriteString(`{"status":"error"}`)
	mockT = &mockTestingT{}
	AssertJSONResponse(mockT, rr, "ok")
	if !mockT.failed {
		t.Error("expected mismatch to fail")
	}
}

func TestCreateHTTPRequest(t *testing.T) {
	req := CreateHTTPRequest(t, http.MethodPost, "/focus/configure", map[string]int{"total_seconds": 60})
	if req.Method != http.MethodPost {
		t.Errorf("expected POST, got %s", req.Method)
	}
	if req.Header.Get("Content-Type") != "application/json" {
		t.Errorf("expected JSON content type, got %q", req.Header.Get("Content-Type"))
	}
	var body map[string]int
	buf := make([]byte, 64)
	n, _ := req.Body.Read(buf)
	MustUnmarshalJSON(t, buf[:n], &body)
	if body["total_seconds"] != 60 {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestManualClockOrdering(t *testing.T) {
	start := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	var order []string
	c.ScheduleOnce(3*time.Second, func() { order = append(order, "c") })
	c.ScheduleOnce(1*time.Second, func() { order = append(order, "a") })
	h := c.ScheduleOnce(2*time.Second, func() { order = append(order, "cancelled") })
	c.ScheduleOnce(2*time.Second, func() { order = append(order, "b") })
	c.Cancel(h)

	c.Advance(2 * time.Second)
	if fmt.Sprint(order) != "[a b]" {
		t.Fatalf("expected [a b] after 2s, got %v", order)
	}
	if !c.Now().Equal(start.Add(2 * time.Second)) {
		t.Errorf("unexpected now: %v", c.Now())
	}

	c.Advance(5 * time.Second)
	if fmt.Sprint(order) != "[a b c]" {
		t.Errorf("expected [a b c], got %v", order)
	}
	if c.Pending() != 0 {
		t.Errorf("expected nothing pending, got %d", c.Pending())
	}
}

func TestManualClockChainedCallbacks(t *testing.T) {
	c := NewManualClock(time.Unix(0, 0))
	fired := 0
	var tick func()
	tick = func() {
		fired++
		c.ScheduleOnce(time.Second, tick)
	}
	c.ScheduleOnce(time.Second, tick)

	c.Advance(5 * time.Second)
	if fired != 5 {
		t.Errorf("expected 5 chained callbacks, got %d", fired)
	}
	if c.Pending() != 1 {
		t.Errorf("expected one pending callback, got %d", c.Pending())
	}
	if len(c.Delays()) != 6 {
		t.Errorf("expected 6 recorded delays, got %d", len(c.Delays()))
	}
}
