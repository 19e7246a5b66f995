package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// Domain Errors
var (
	ErrExamNotFound   = repository.ErrExamNotFound
	ErrNoQuestions    = errors.New("exam has no questions")
	ErrExamNotStarted = errors.New("exam has not started yet")
	ErrExamEnded      = errors.New("exam has ended")
)

// ExamService serves exam definitions from the Redis cache, backed by PostgreSQL.
type ExamService struct {
	examRepo      *repository.ExamRepository
	rdb           *redis.Client
	maxViolations int
	log           zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(
	examRepo *repository.ExamRepository,
	rdb *redis.Client,
	cfg *config.Config,
	log zerolog.Logger,
) *ExamService {
	return &ExamService{
		examRepo:      examRepo,
		rdb:           rdb,
		maxViolations: cfg.MaxViolations,
		log:           log.With().Str("component", "exam_service").Logger(),
	}
}

// GetExamDefinition returns the named exam, filling the cache on a miss.
func (s *ExamService) GetExamDefinition(ctx context.Context, name string) (*model.ExamDefinition, error) {
	data, err := s.rdb.Get(ctx, config.CacheKey.ExamDefinitionKey(name)).Bytes()
	switch {
	case err == nil:
		var exam model.ExamDefinition
		if err := json.Unmarshal(data, &exam); err == nil {
			return &exam, nil
		}
		s.log.Warn().Str("exam", name).Msg("Cached definition unreadable, reloading")
	case !errors.Is(err, redis.Nil):
		s.log.Warn().Err(err).Str("exam", name).Msg("Cache read failed, falling back to database")
	}

	exam, err := s.examRepo.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if err := s.WarmExamCache(ctx, exam); err != nil {
		s.log.Warn().Err(err).Str("exam", name).Msg("Failed to cache definition")
	}
	return exam, nil
}

// WarmExamCache stores the full definition in Redis.
func (s *ExamService) WarmExamCache(ctx context.Context, exam *model.ExamDefinition) error {
	if len(exam.Questions) == 0 {
		return ErrNoQuestions
	}
	raw, err := json.Marshal(exam)
	if err != nil {
		return fmt.Errorf("marshal definition: %w", err)
	}
	if err := s.rdb.Set(ctx, config.CacheKey.ExamDefinitionKey(exam.Name), raw, 0).Err(); err != nil {
		return fmt.Errorf("cache to redis: %w", err)
	}

	s.log.Debug().
		Str("exam", exam.Name).
		Int("questions", len(exam.Questions)).
		Msg("Cache warmed")
	return nil
}

// PrewarmAllCaches loads every exam into Redis on application startup.
func (s *ExamService) PrewarmAllCaches(ctx context.Context) error {
	names, err := s.examRepo.ListNames(ctx)
	if err != nil {
		return fmt.Errorf("list exams: %w", err)
	}

	if len(names) == 0 {
		s.log.Info().Msg("No exams to prewarm")
		return nil
	}

	s.log.Info().Int("count", len(names)).Msg("Prewarming exams...")

	warmed := 0
	for _, name := range names {
		exam, err := s.examRepo.GetByName(ctx, name)
		if err == nil {
			err = s.WarmExamCache(ctx, exam)
		}
		if err != nil {
			s.log.Warn().
				Err(err).
				Str("exam", name).
				Msg("Failed to warm exam, skipping")
			continue
		}
		warmed++
	}

	s.log.Info().
		Int("warmed", warmed).
		Int("total", len(names)).
		Msg("Prewarming complete")
	return nil
}

// Import validates and stores an exam, then refreshes its cache entry.
func (s *ExamService) Import(ctx context.Context, exam *model.ExamDefinition) error {
	if err := exam.Validate(); err != nil {
		return err
	}
	if err := s.examRepo.Upsert(ctx, exam); err != nil {
		return fmt.Errorf("store exam: %w", err)
	}
	if len(exam.Questions) == 0 {
		return s.rdb.Del(ctx, config.CacheKey.ExamDefinitionKey(exam.Name)).Err()
	}
	return s.WarmExamCache(ctx, exam)
}

// Instructions summarises an exam for the pre-exam screen.
func (s *ExamService) Instructions(ctx context.Context, name string, now time.Time) (*model.ExamInstructions, error) {
	exam, err := s.GetExamDefinition(ctx, name)
	if err != nil {
		return nil, err
	}
	return BuildInstructions(exam, s.maxViolations, now), nil
}

// BuildInstructions derives the instructions screen from a definition.
func BuildInstructions(exam *model.ExamDefinition, maxViolations int, now time.Time) *model.ExamInstructions {
	langs := exam.SupportedLanguages
	if len(langs) == 0 {
		langs = []string{exam.DefaultLanguage()}
	}
	return &model.ExamInstructions{
		Name:               exam.Name,
		DurationMinutes:    exam.DurationMinutes,
		QuestionCount:      len(exam.Questions),
		SupportedLanguages: langs,
		DefaultLanguage:    exam.DefaultLanguage(),
		StartTime:          exam.StartTime,
		EndTime:            exam.EndTime,
		Status:             exam.ScheduleStatus(now),
		MaxViolations:      maxViolations,
	}
}
