package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"citadelcbt"
)

func main() {
	var (
		level        = flag.String("level", "JSS", "Curriculum level (JSS or SSS)")
		subject      = flag.String("subject", "", "Subject (required)")
		topic        = flag.String("topic", "", "Curriculum topic (required)")
		numQuestions = flag.Int("questions", citadelcbt.DefaultQuestionCount, "Number of questions to generate")
		outputFile   = flag.String("output", "", "Output file for quiz JSON (default: stdout)")
		publish      = flag.Bool("publish", false, "Publish the generated quiz to the configured store")
		apiKey       = flag.String("api-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		playMode     = flag.Bool("play", false, "Take the generated quiz as a timed attempt in the terminal")
		playCount    = flag.Int("count", 20, "Number of questions in a -play attempt")
		verbose      = flag.Bool("verbose", false, "Enable verbose debugging output")
	)

	flag.Parse()

	cfg, err := citadelcbt.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	citadelcbt.SetVerbose(*verbose || cfg.Verbose)

	if *subject == "" || *topic == "" {
		log.Fatal("Subject and topic are required. Use -subject and -topic flags.")
	}

	// Get API key from flag or environment
	if *apiKey == "" {
		*apiKey = cfg.OpenAIKey
		if *apiKey == "" {
			log.Fatal("OpenAI API key is required. Use -api-key flag or set OPENAI_API_KEY environment variable.")
		}
	}

	maker := citadelcbt.NewQuestionMaker(citadelcbt.NewOpenAIModel(*apiKey, cfg.OpenAIModel))
	maker.SetLogDir(cfg.LLMLogDir)

	// Generate quiz with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	var store citadelcbt.Store
	if *publish {
		db, err := citadelcbt.OpenDB(cfg.DBPath)
		if err != nil {
			log.Fatalf("Failed to open database: %v", err)
		}
		defer db.Close()
		if err := db.CreateTables(); err != nil {
			log.Fatalf("Failed to create tables: %v", err)
		}
		store, err = citadelcbt.OpenStore(ctx, cfg, db)
		if err != nil {
			log.Fatalf("Failed to open %s store: %v", cfg.StorageDriver, err)
		}
		if store != citadelcbt.Store(db) {
			defer store.Close()
		}
	}

	generator := citadelcbt.NewQuizGenerator(maker, store, nil)

	lvl := citadelcbt.Level(strings.ToUpper(*level))
	citadelcbt.VerboseLog("Starting quiz generation for %s %s: %s", lvl, *subject, *topic)

	draft, err := generator.Draft(ctx, lvl, *subject, *topic, *numQuestions)
	if err != nil {
		log.Fatalf("Failed to generate quiz: %v", err)
	}

	quiz := citadelcbt.Quiz{
		Title:      citadelcbt.QuizTitle(draft.Subject, draft.Topic),
		Subject:    draft.Subject,
		Level:      draft.Level,
		Department: citadelcbt.QuizDepartment(draft.Level, draft.Subject),
		Topic:      draft.Topic,
		Questions:  draft.Questions,
		CreatedAt:  draft.CreatedAt,
	}

	if *publish {
		published, err := generator.Publish(ctx, draft.ID)
		if err != nil {
			if citadelcbt.IsPermissionError(err) {
				log.Fatal(citadelcbt.PermissionRemediation)
			}
			log.Fatalf("Failed to publish quiz: %v", err)
		}
		quiz = *published
		log.Printf("Quiz published with ID: %s", quiz.ID)
	}

	if *playMode {
		playQuiz(quiz, *playCount)
		return
	}

	// Output the quiz
	output, err := json.MarshalIndent(quiz, "", "  ")
	if err != nil {
		log.Fatalf("Failed to marshal quiz: %v", err)
	}

	if *outputFile != "" {
		err = os.WriteFile(*outputFile, output, 0644)
		if err != nil {
			log.Fatalf("Failed to write output file: %v", err)
		}
		log.Printf("Quiz saved to: %s", *outputFile)
	} else {
		fmt.Println(string(output))
	}

	citadelcbt.VerboseLog("Quiz generation completed successfully!")
}

const letters = "ABCD"

func playQuiz(quiz citadelcbt.Quiz, count int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	finished := make(chan citadelcbt.ReviewRecord, 1)
	session := citadelcbt.NewSession(quiz, count, rng, citadelcbt.WithOnFinish(func(record citadelcbt.ReviewRecord) {
		finished <- record
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	session.Start(ctx)

	snap := session.Snapshot()
	fmt.Printf("Starting %s (%d questions, %s on the clock)\n", snap.Title, snap.Total, citadelcbt.FormatClock(snap.Remaining))
	fmt.Println("Answer with A-D. Other commands: n (next), p (previous), j <number> (jump), s (submit), q (quit)")
	fmt.Println()

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		snap = session.Snapshot()
		printQuestion(snap)

		select {
		case record := <-finished:
			fmt.Println("\nTime is up, your answers were submitted.")
			printReport(citadelcbt.BuildReport(record))
			return
		case line, ok := <-lines:
			if !ok {
				session.Cancel()
				return
			}
			if done := handleCommand(session, strings.TrimSpace(line)); done {
				if record, ok := session.Record(); ok {
					printReport(citadelcbt.BuildReport(record))
				}
				return
			}
		}
	}
}

func printQuestion(snap citadelcbt.Snapshot) {
	if snap.Total == 0 {
		return
	}
	fmt.Printf("Question %d/%d  [%s left, %d answered]\n", snap.Current+1, snap.Total, citadelcbt.FormatClock(snap.Remaining), snap.Answered)
	fmt.Printf("%s\n", snap.Question.Text)
	for i, option := range snap.Question.Options {
		marker := " "
		if snap.Answers[snap.Current] == i {
			marker = "*"
		}
		fmt.Printf("%s %c) %s\n", marker, letters[i], option)
	}
	fmt.Print("> ")
}

// handleCommand applies one line of input and reports whether the attempt is over
func handleCommand(session *citadelcbt.Session, input string) bool {
	cmd := strings.ToUpper(input)
	switch {
	case len(cmd) == 1 && strings.Contains(letters, cmd):
		if err := session.Select(session.Current(), strings.Index(letters, cmd)); err != nil {
			fmt.Println(err)
		}
		session.Advance()
	case cmd == "N":
		session.Advance()
	case cmd == "P":
		session.Retreat()
	case strings.HasPrefix(cmd, "J "):
		num, err := strconv.Atoi(strings.TrimSpace(cmd[2:]))
		if err != nil || session.JumpTo(num-1) != nil {
			fmt.Println("No such question")
		}
	case cmd == "S":
		if _, err := session.Submit(); err != nil {
			fmt.Println(err)
		}
		return true
	case cmd == "Q":
		session.Cancel()
		fmt.Println("Attempt cancelled")
		return true
	default:
		fmt.Println("Please enter A, B, C, D, n, p, j <number>, s or q")
	}
	fmt.Println()
	return false
}

func printReport(report citadelcbt.Report) {
	fmt.Println()
	fmt.Println(strings.Repeat("─", 50))
	for _, item := range report.Items {
		status := "✅"
		if !item.IsCorrect {
			status = "❌"
		}
		fmt.Printf("%s %d. %s\n", status, item.Number, item.Text)
		if !item.IsCorrect {
			fmt.Printf("   Your answer: %s\n", item.ChosenText)
			fmt.Printf("   Correct answer: %c) %s\n", letters[item.Correct], item.CorrectText)
		}
		if item.Explanation != "" {
			fmt.Printf("   💡 %s\n", item.Explanation)
		}
	}
	fmt.Println(strings.Repeat("─", 50))
	fmt.Printf("Score: %d/%d (%d%%) %s\n", report.Score, report.Total, report.Percentage, report.Band)
}
