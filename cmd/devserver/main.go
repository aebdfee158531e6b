package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/studywise/studywise-go/internal/config"
	"github.com/studywise/studywise-go/internal/devserver"
	"github.com/studywise/studywise-go/internal/logger"
	"github.com/studywise/studywise-go/internal/model"
)

const (
	demoEmail    = "student@studywise.dev"
	demoPassword = "password123"
)

func main() {
	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Msg("Starting StudyWise devserver")

	store := devserver.NewStore()
	examID := seed(store, cfg, log)
	log.Info().
		Str("exam_id", examID).
		Str("email", demoEmail).
		Str("password", demoPassword).
		Msg("Seeded demo student and exam")

	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: devserver.New(cfg, store, log).Handler(),
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	log.Info().Msg("Shutdown complete")
}

// seed registers one demo student and one exam whose window opened a minute
// ago and runs for an hour, so a freshly started devserver is immediately
// usable with examcli.
func seed(store *devserver.Store, cfg *config.Config, log zerolog.Logger) string {
	if err := store.SeedStudent(model.Student{
		Name:    "Demo Student",
		Email:   demoEmail,
		ClassID: "class-10a",
	}, demoPassword, cfg.BcryptCost); err != nil {
		log.Fatal().Err(err).Msg("Seed student failed")
	}

	// Window opened a minute ago and runs an hour, clamped to today so the
	// "HH:MM on date" encoding cannot invert across midnight.
	now := time.Now().In(cfg.Location())
	start := now.Add(-time.Minute)
	if start.Day() != now.Day() {
		start = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	}
	end := now.Add(time.Hour)
	if end.Day() != now.Day() {
		end = time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, now.Location())
	}

	return store.SeedExam(devserver.ExamRecord{
		ClassID: "class-10a",
		Window: model.ExamWindow{
			ExamID:    "demo-exam",
			Date:      now.Format("2006-01-02"),
			StartTime: start.Format("15:04"),
			EndTime:   end.Format("15:04"),
		},
		Questions: []model.Question{
			{
				ID:            "q1",
				Prompt:        "What is 7 × 8?",
				Choices:       []string{"54", "56", "63", "64"},
				CorrectAnswer: "1",
				Marks:         3,
				Type:          model.QuestionTypeMultipleChoice,
			},
			{
				ID:            "q2",
				Prompt:        "Which planet is closest to the sun?",
				Choices:       []string{"Venus", "Earth", "Mercury", "Mars"},
				CorrectAnswer: "2",
				Marks:         3,
				Type:          model.QuestionTypeMultipleChoice,
			},
			{
				ID:            "q3",
				Prompt:        "H2O is the chemical formula for what?",
				Choices:       []string{"Hydrogen", "Water", "Oxygen", "Salt"},
				CorrectAnswer: "1",
				Marks:         4,
				Type:          model.QuestionTypeMultipleChoice,
			},
		},
	})
}
