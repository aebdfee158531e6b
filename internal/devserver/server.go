// Package devserver implements an in-memory StudyWise API serving exactly the
// contract the exam session client consumes: student login, exam window, exam
// paper, submission grading, and violation ingestion. It backs cmd/devserver
// and the e2e suite so neither needs external infrastructure.
package devserver

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/studywise/studywise-go/internal/config"
	"github.com/studywise/studywise-go/internal/model"
	"github.com/studywise/studywise-go/internal/response"
	"github.com/studywise/studywise-go/internal/validator"
	"golang.org/x/crypto/bcrypt"
)

// Server is the devserver HTTP surface.
type Server struct {
	cfg    *config.Config
	store  *Store
	log    zerolog.Logger
	engine *gin.Engine
}

// New builds the server and its routes.
func New(cfg *config.Config, store *Store, log zerolog.Logger) *Server {
	gin.SetMode(cfg.GinMode)
	validator.Setup()

	s := &Server{
		cfg:   cfg,
		store: store,
		log:   log.With().Str("component", "devserver").Logger(),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(response.RequestIDMiddleware())
	r.Use(cors.Default())

	v1 := r.Group("/api/v1")
	v1.POST("/auth/student/login", s.login)

	student := v1.Group("/student", s.requireStudent())
	student.GET("/exams/:exam_id", s.getExamWindow)
	student.GET("/exams/:exam_id/paper", s.getExamPaper)
	student.POST("/exams/:exam_id/violations", s.postViolation)
	student.POST("/submissions", s.submitExam)

	s.engine = r
	return s
}

// Handler exposes the router for http.Server and httptest.
func (s *Server) Handler() http.Handler { return s.engine }

// login verifies the student credential and issues a bearer token.
func (s *Server) login(c *gin.Context) {
	var req model.LoginRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	rec, err := s.store.StudentByEmail(req.Email)
	if err != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}
	if bcrypt.CompareHashAndPassword(rec.PasswordHash, []byte(req.Password)) != nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrInvalidCredentials)
		return
	}

	token, err := s.issueToken(rec.ID, rec.ClassID, rec.Email)
	if err != nil {
		s.log.Error().Err(err).Msg("issue token")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.LoginResponse{Token: token, Student: rec.Student})
}

// getExamWindow returns the schedule window for one exam.
func (s *Server) getExamWindow(c *gin.Context) {
	rec, ok := s.examByParam(c)
	if !ok {
		return
	}
	response.Success(c, http.StatusOK, rec.Window)
}

// getExamPaper returns the ordered question sequence. The correct answer
// ships with each question; the production API does the same and the client
// echoes it back on submission.
func (s *Server) getExamPaper(c *gin.Context) {
	rec, ok := s.examByParam(c)
	if !ok {
		return
	}
	if len(rec.Questions) == 0 {
		response.Fail(c, http.StatusNotFound, response.ErrNoQuestions)
		return
	}
	response.Success(c, http.StatusOK, model.ExamPaper{
		ClassID:   rec.ClassID,
		Questions: rec.Questions,
	})
}

// submitExam grades a submission server-side and records the attempt.
// Grading trusts only the stored paper: the client's isCorrect hints are
// ignored.
func (s *Server) submitExam(c *gin.Context) {
	claims := getClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.SubmissionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if req.ExamID == "" || len(req.Questions) == 0 {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	rec, err := s.store.Exam(req.ExamID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return
	}

	result := grade(rec, req.Questions)
	if err := s.store.RecordResult(req.ExamID, claims.StudentID, time.Now(), result); err != nil {
		response.Fail(c, http.StatusConflict, response.ErrAlreadySubmitted)
		return
	}

	s.log.Info().
		Str("exam_id", req.ExamID).
		Str("student_id", claims.StudentID).
		Int("marks", result.TotalMarksObtained).
		Msg("submission graded")

	response.Success(c, http.StatusCreated, result)
}

// postViolation appends one advisory integrity event to the attempt log.
func (s *Server) postViolation(c *gin.Context) {
	claims := getClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	rec, ok := s.examByParam(c)
	if !ok {
		return
	}

	var v model.Violation
	if fields := validator.Bind(c, &v); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}
	if v.Kind == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
		return
	}

	s.store.RecordViolation(rec.Window.ExamID, claims.StudentID, v)
	c.Status(http.StatusNoContent)
}

func (s *Server) examByParam(c *gin.Context) (*ExamRecord, bool) {
	examID := c.Param("exam_id")
	if examID == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return nil, false
	}
	rec, err := s.store.Exam(examID)
	if err != nil {
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
		return nil, false
	}
	return rec, true
}

// grade scores the submitted answers against the stored paper.
func grade(rec *ExamRecord, submitted []model.SubmittedQuestion) model.SubmissionResult {
	byID := make(map[string]model.Question, len(rec.Questions))
	possible := 0
	for _, q := range rec.Questions {
		byID[q.ID] = q
		possible += q.Marks
	}

	obtained := 0
	for _, sq := range submitted {
		q, ok := byID[sq.ID]
		if !ok || !sq.IsAnswered {
			continue
		}
		if idx, err := strconv.Atoi(sq.UserAnswer); err == nil && strconv.Itoa(idx) == q.CorrectAnswer {
			obtained += q.Marks
		}
	}

	pct := 0.0
	if possible > 0 {
		pct = math.Round(float64(obtained)/float64(possible)*10000) / 100
	}
	return model.SubmissionResult{
		TotalMarksObtained: obtained,
		TotalPossibleMarks: possible,
		Percentage:         pct,
	}
}
