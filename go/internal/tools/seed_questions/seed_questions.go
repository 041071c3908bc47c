package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/quizclash/go/internal/dbconfig"
)

// BankQuestion mirrors the question bank JSON layout. IDs may be omitted;
// missing ones get generated so a file can be reseeded deterministically
// only when it carries its own ids.
type BankQuestion struct {
	ID            *uuid.UUID `json:"id"`
	Category      string     `json:"category"`
	Text          string     `json:"text"`
	CorrectAnswer string     `json:"correct_answer"`
	Variants      []string   `json:"variants"`
	PointValue    int        `json:"point_value"`
	Difficulty    string     `json:"difficulty"`
}

func main() {
	ctx := context.Background()

	// 1) Load questions.json
	path := os.Getenv("QUESTIONS_FILE")
	if path == "" {
		path = "go/internal/assets/questions.json"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", path, err)
		os.Exit(1)
	}
	var questions []BankQuestion
	if err := json.Unmarshal(data, &questions); err != nil {
		fmt.Fprintf(os.Stderr, "unmarshal questions: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect to DB
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect error: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Seed questions
	total, inserted, skipped, errs := len(questions), 0, 0, 0
	for _, q := range questions {
		if q.Category == "" || q.Text == "" || q.CorrectAnswer == "" || q.PointValue <= 0 {
			errs++
			continue
		}
		id := uuid.New()
		if q.ID != nil {
			id = *q.ID
		}
		tag, err := pool.Exec(ctx, `
            INSERT INTO question_bank (
              id, category, text, correct_answer, variants, point_value, difficulty
            ) VALUES ($1,$2,$3,$4,$5,$6,$7)
            ON CONFLICT (category, text) DO NOTHING
        `, id, q.Category, q.Text, q.CorrectAnswer, q.Variants, q.PointValue, q.Difficulty)
		if err != nil {
			errs++
			continue
		}
		if tag.RowsAffected() == 1 {
			inserted++
		} else {
			skipped++
		}
	}
	fmt.Printf(
		"Question bank seed: total=%d inserted=%d skipped=%d errors=%d\n",
		total, inserted, skipped, errs,
	)
}
