package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"citadelcbt"
)

// freshTopics drops curriculum topics that already have a published quiz
func freshTopics(topics []string, quizzes []citadelcbt.Quiz, level citadelcbt.Level, subject string) []string {
	existing := make(map[string]bool)
	for _, quiz := range quizzes {
		if quiz.Level == level && strings.EqualFold(quiz.Subject, subject) {
			existing[strings.ToLower(strings.TrimSpace(quiz.Topic))] = true
		}
	}

	var fresh []string
	for _, topic := range topics {
		if !existing[strings.ToLower(strings.TrimSpace(topic))] {
			fresh = append(fresh, topic)
		}
	}
	return fresh
}

func main() {
	var (
		level        = flag.String("level", "JSS", "Curriculum level (JSS or SSS)")
		subject      = flag.String("subject", "", "Subject to discover topics for (required)")
		numQuestions = flag.Int("questions", citadelcbt.DefaultQuestionCount, "Number of questions per quiz")
		generate     = flag.Bool("generate", false, "Generate and publish a quiz for the first fresh topic")
		apiKey       = flag.String("api-key", "", "OpenAI API key (or set OPENAI_API_KEY env var)")
		verbose      = flag.Bool("verbose", false, "Enable verbose output")
	)

	flag.Parse()

	cfg, err := citadelcbt.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	citadelcbt.SetVerbose(*verbose || cfg.Verbose)

	if *subject == "" {
		log.Fatal("Subject is required. Use -subject flag.")
	}

	// Get API key from flag or environment
	if *apiKey == "" {
		*apiKey = cfg.OpenAIKey
		if *apiKey == "" {
			log.Fatal("OpenAI API key is required. Use -api-key flag or set OPENAI_API_KEY environment variable.")
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// Initialize database
	db, err := citadelcbt.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	store, err := citadelcbt.OpenStore(ctx, cfg, db)
	if err != nil {
		log.Fatalf("Failed to open %s store: %v", cfg.StorageDriver, err)
	}
	if store != citadelcbt.Store(db) {
		defer store.Close()
	}

	maker := citadelcbt.NewQuestionMaker(citadelcbt.NewOpenAIModel(*apiKey, cfg.OpenAIModel))
	maker.SetLogDir(cfg.LLMLogDir)
	generator := citadelcbt.NewQuizGenerator(maker, store, nil)

	lvl := citadelcbt.Level(strings.ToUpper(*level))

	existing, err := generator.List(ctx)
	if err != nil {
		log.Fatalf("Failed to get existing quizzes: %v", err)
	}

	fmt.Printf("📚 Fetching %s curriculum topics for %s %s...\n", citadelcbt.CurriculumLabel(lvl), lvl, *subject)
	topics, err := generator.Topics(ctx, lvl, *subject)
	if err != nil {
		log.Fatalf("Failed to fetch curriculum topics: %v", err)
	}

	fresh := freshTopics(topics, existing, lvl, *subject)
	fmt.Printf("Found %d topics, %d without a published quiz:\n", len(topics), len(fresh))
	for _, topic := range topics {
		marker := " "
		for _, f := range fresh {
			if f == topic {
				marker = "*"
				break
			}
		}
		fmt.Printf("  %s %s\n", marker, topic)
	}
	fmt.Println()

	if !*generate {
		return
	}
	if len(fresh) == 0 {
		fmt.Println("Every topic already has a quiz.")
		return
	}

	topic := fresh[0]
	fmt.Printf("🎯 Generating %d questions on: %s\n", *numQuestions, topic)

	draft, err := generator.Draft(ctx, lvl, *subject, topic, *numQuestions)
	if err != nil {
		log.Fatalf("Failed to generate questions for topic '%s': %v", topic, err)
	}
	quiz, err := generator.Publish(ctx, draft.ID)
	if err != nil {
		if citadelcbt.IsPermissionError(err) {
			log.Fatal(citadelcbt.PermissionRemediation)
		}
		log.Fatalf("Failed to save quiz for topic '%s': %v", topic, err)
	}

	fmt.Printf("🎉 Published %s with ID %s (%d questions)\n", quiz.Title, quiz.ID, len(quiz.Questions))
}
