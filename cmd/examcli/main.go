// examcli is a terminal host for the exam session controller: it logs a
// student in, loads an exam, runs the timed attempt, and prints the graded
// result. It exists to drive the session end to end against a StudyWise API
// (the devserver by default).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/studywise/studywise-go/internal/api"
	"github.com/studywise/studywise-go/internal/config"
	"github.com/studywise/studywise-go/internal/logger"
	"github.com/studywise/studywise-go/internal/model"
	"github.com/studywise/studywise-go/internal/session"
	"golang.org/x/term"
)

// tokenStore holds the bearer credential obtained at login. The session and
// api client only ever read it.
type tokenStore struct {
	mu    sync.RWMutex
	token string
}

func (t *tokenStore) Token() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.token
}

func (t *tokenStore) set(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.token = token
}

func main() {
	examID := flag.String("exam", "demo-exam", "exam identifier to attempt")
	email := flag.String("email", "student@studywise.dev", "student email")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	tokens := &tokenStore{}
	client := api.NewClient(cfg.BaseURL, tokens,
		api.WithTimeout(cfg.HTTPTimeout),
		api.WithLogger(log),
	)

	ctx := context.Background()

	fmt.Printf("Password for %s: ", *email)
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		log.Fatal().Err(err).Msg("read password")
	}

	login, err := client.Login(ctx, *email, string(pw))
	if err != nil {
		log.Fatal().Err(err).Msg("login failed")
	}
	tokens.set(login.Token)
	fmt.Printf("Signed in as %s\n", login.Student.Name)

	sess := session.New(client, *examID,
		session.WithLocation(cfg.Location()),
		session.WithLogger(log),
		session.WithHooks(session.Hooks{
			OnTick:        printCountdown,
			OnViolation:   printViolation,
			OnAutoSubmit:  func(r session.AutoSubmitReason) { fmt.Printf("\n!! auto-submitting (%s)\n", r) },
			OnResult:      printResultAndExit,
			OnSubmitError: func(err error) { fmt.Printf("\n!! submission failed: %v (answers kept, will retry)\n", err) },
		}),
	)
	defer sess.Close()

	if err := sess.Load(ctx); err != nil {
		log.Fatal().Err(err).Msg("could not load exam")
	}

	waitForWindow(sess)

	if err := sess.Start(); err != nil {
		log.Fatal().Err(err).Msg("could not start exam")
	}
	fmt.Printf("Exam started. %d seconds remaining.\n", sess.Remaining())

	// Treat an attempt to background the terminal as an integrity signal,
	// the cli analogue of a tab switch.
	suspend := make(chan os.Signal, 1)
	signal.Notify(suspend, syscall.SIGTSTP)
	go func() {
		for range suspend {
			sess.ObserveViolation(model.ViolationVisibilityLoss, "terminal suspend attempted")
		}
	}()

	runPrompt(sess)
}

// waitForWindow blocks until the exam window opens, or exits if it has closed.
func waitForWindow(sess *session.Session) {
	for {
		e, err := sess.CheckEligibility()
		if err != nil {
			fmt.Printf("eligibility check failed: %v\n", err)
			os.Exit(1)
		}
		switch e.Status {
		case session.EligibilityOpen:
			return
		case session.EligibilityClosed:
			fmt.Println(e.Message)
			os.Exit(1)
		case session.EligibilityNotYetOpen:
			fmt.Println(e.Message)
			time.Sleep(5 * time.Second)
		}
	}
}

// runPrompt is the interactive answer loop.
func runPrompt(sess *session.Session) {
	showQuestion(sess)
	sc := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !sc.Scan() {
			return
		}
		line := strings.TrimSpace(sc.Text())

		switch {
		case line == "n":
			sess.Next()
			showQuestion(sess)
		case line == "p":
			sess.Prev()
			showQuestion(sess)
		case strings.HasPrefix(line, "g "):
			if i, err := strconv.Atoi(strings.TrimSpace(line[2:])); err == nil {
				sess.Seek(i - 1)
			}
			showQuestion(sess)
		case line == "s":
			submit(sess, sc)
		case line == "q":
			fmt.Println("Leaving without submitting.")
			return
		case line == "":
		default:
			choice, err := strconv.Atoi(line)
			if err != nil {
				fmt.Println("Commands: <choice number>, n(ext), p(rev), g <question>, s(ubmit), q(uit)")
				continue
			}
			if err := sess.SelectAnswer(sess.Cursor(), choice-1); err != nil {
				fmt.Printf("cannot select: %v\n", err)
				continue
			}
			sess.Next()
			showQuestion(sess)
		}
	}
}

func submit(sess *session.Session, sc *bufio.Scanner) {
	answered, total, err := sess.RequestSubmit()
	if err != nil {
		fmt.Printf("cannot submit: %v\n", err)
		return
	}
	fmt.Printf("You answered %d of %d questions. Submit now? [y/N] ", answered, total)
	if !sc.Scan() || !strings.EqualFold(strings.TrimSpace(sc.Text()), "y") {
		fmt.Println("Submission cancelled.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if _, err := sess.ConfirmSubmit(ctx); err != nil {
		fmt.Printf("submission failed: %v. Your answers are kept, try again.\n", err)
	}
	// On success OnResult prints the summary and exits.
}

func showQuestion(sess *session.Session) {
	qs := sess.Questions()
	i := sess.Cursor()
	if i >= len(qs) {
		return
	}
	q := qs[i]
	answer, _ := sess.Answer(i)

	fmt.Printf("\nQuestion %d/%d (%d marks): %s\n", i+1, len(qs), q.Marks, q.Prompt)
	for ci, choice := range q.Choices {
		marker := " "
		if answer.IsAnswered && answer.UserAnswer == strconv.Itoa(ci) {
			marker = "*"
		}
		fmt.Printf("  %s %d) %s\n", marker, ci+1, choice)
	}
}

func printCountdown(remaining int) {
	// Announce every full minute, then every second for the last ten.
	if remaining <= 10 || remaining%60 == 0 {
		fmt.Printf("\r[%02d:%02d remaining] ", remaining/60, remaining%60)
	}
}

func printViolation(v model.Violation, count int) {
	fmt.Printf("\n!! integrity warning (%s), %d so far this attempt\n", v.Kind, count)
}

func printResultAndExit(res *model.SubmissionResult) {
	fmt.Printf("\nSubmitted. Score: %d/%d (%.1f%%)\n",
		res.TotalMarksObtained, res.TotalPossibleMarks, res.Percentage)
	os.Exit(0)
}
