package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/studywise/studywise-go/internal/model"
	"github.com/studywise/studywise-go/internal/response"
)

func envelope(t *testing.T, w http.ResponseWriter, status int, data interface{}, errBody *response.ErrorBody) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	raw, _ := json.Marshal(data)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{
		"data":     json.RawMessage(raw),
		"error":    errBody,
		"metadata": response.Metadata{RequestID: "test", Timestamp: time.Now().Format(time.RFC3339)},
	}); err != nil {
		t.Errorf("encode envelope: %v", err)
	}
}

func TestExamWindowSendsAuthAndDecodes(t *testing.T) {
	want := model.ExamWindow{
		ExamID: "exam-1", Date: "2026-03-02",
		StartTime: "09:00", EndTime: "10:00",
		TotalMarks: 10, TotalQuestions: 3,
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/student/exams/exam-1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok-123" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get(response.HeaderRequestID) == "" {
			t.Error("missing request id header")
		}
		envelope(t, w, http.StatusOK, want, nil)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok-123"))
	got, err := c.ExamWindow(context.Background(), "exam-1")
	if err != nil {
		t.Fatalf("ExamWindow: %v", err)
	}
	if *got != want {
		t.Errorf("window = %+v, want %+v", *got, want)
	}
}

func TestSubmitExamWants201(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req model.SubmissionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode submission: %v", err)
		}
		if req.ExamID != "exam-1" || len(req.Questions) != 1 {
			t.Errorf("submission = %+v", req)
		}
		envelope(t, w, http.StatusCreated,
			model.SubmissionResult{TotalMarksObtained: 3, TotalPossibleMarks: 3, Percentage: 100}, nil)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok"))
	res, err := c.SubmitExam(context.Background(), &model.SubmissionRequest{
		ExamID:    "exam-1",
		ClassID:   "class-1",
		Questions: []model.SubmittedQuestion{{ID: "q1", UserAnswer: "0", IsAnswered: true}},
	})
	if err != nil {
		t.Fatalf("SubmitExam: %v", err)
	}
	if res.Percentage != 100 {
		t.Errorf("percentage = %v, want 100 taken verbatim", res.Percentage)
	}
}

func TestErrorEnvelopeSurfacesCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		envelope(t, w, http.StatusConflict, nil, &response.ErrorBody{
			Code:    response.ErrAlreadySubmitted,
			Message: "This exam has already been submitted.",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok"))
	_, err := c.SubmitExam(context.Background(), &model.SubmissionRequest{ExamID: "exam-1"})
	if err == nil {
		t.Fatal("want error")
	}

	var apiErr *Error
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %T %v, want *Error", err, err)
	}
	if apiErr.Code != response.ErrAlreadySubmitted || apiErr.Status != http.StatusConflict {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if apiErr.Message == "" {
		t.Error("error lost its human-readable message")
	}
}

func TestReportViolationAccepts204(t *testing.T) {
	var got model.Violation
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/student/exams/exam-1/violations" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode violation: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok"))
	v := model.Violation{Kind: model.ViolationVisibilityLoss, OccurredAt: time.Now(), Detail: "tab hidden"}
	if err := c.ReportViolation(context.Background(), "exam-1", v); err != nil {
		t.Fatalf("ReportViolation: %v", err)
	}
	if got.Kind != model.ViolationVisibilityLoss {
		t.Errorf("forwarded kind = %q", got.Kind)
	}
}

func TestNetworkFailureIsWrapped(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", StaticToken("tok"), WithTimeout(100*time.Millisecond))
	if _, err := c.ExamWindow(context.Background(), "exam-1"); err == nil {
		t.Fatal("want transport error")
	}
}
