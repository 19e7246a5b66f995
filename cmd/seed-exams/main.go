package main

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/database"
	"github.com/stemsi/exstem-proctor/internal/logger"
	"github.com/stemsi/exstem-proctor/internal/repository"
	"github.com/stemsi/exstem-proctor/internal/seed"
	"github.com/stemsi/exstem-proctor/internal/service"
)

func main() {
	var path string
	flag.StringVar(&path, "file", "seeds/exams.yaml", "Path to the exam catalog")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	catalog, err := seed.Load(path)
	if err != nil {
		log.Fatal().Err(err).Str("file", path).Msg("Failed to read exam catalog")
	}

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	examService := service.NewExamService(repository.NewExamRepository(pool), rdb, cfg, log)

	fmt.Printf("=== Seeding %d exams from %s ===\n", len(catalog.Exams), path)
	for i := range catalog.Exams {
		exam := &catalog.Exams[i]
		if err := examService.Import(ctx, exam); err != nil {
			log.Fatal().Err(err).Str("exam", exam.Name).Msg("Failed to import exam")
		}
		fmt.Printf("  %-40s %3d questions  %3d min  %v\n",
			exam.Name, len(exam.Questions), exam.DurationMinutes, exam.SupportedLanguages)
	}
	fmt.Println("=== Done ===")
}
