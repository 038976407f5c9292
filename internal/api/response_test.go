package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BTreeMap/Parabola/internal/models"
	"github.com/BTreeMap/Parabola/internal/testutil"
)

func TestWriteJSONResponseEncodeFailure(t *testing.T) {
	rr := httptest.NewRecorder()
	writeJSONResponse(rr, http.StatusOK, models.Success(make(chan int)))

	testutil.AssertHTTPStatus(t, http.StatusInternalServerError, rr.Code, "unencodable result")
	resp := testutil.AssertJSONResponse(t, rr, "error")
	if resp["message"] != "Internal server error" {
		t.Errorf("unexpected message: %v", resp["message"])
	}
}

func TestWriteError(t *testing.T) {
	rr := httptest.NewRecorder()
	writeError(rr, http.StatusConflict, "busy")

	testutil.AssertHTTPStatus(t, http.StatusConflict, rr.Code, "error envelope")
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	resp := testutil.AssertJSONResponse(t, rr, "error")
	if resp["message"] != "busy" {
		t.Errorf("unexpected message: %v", resp["message"])
	}
}
