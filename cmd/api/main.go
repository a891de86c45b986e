package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"tutor-llm/internal/config"
	"tutor-llm/internal/db"
	apihttp "tutor-llm/internal/http"
	"tutor-llm/internal/llm"
	"tutor-llm/internal/repository"
	"tutor-llm/internal/service"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	learnerRepo := repository.NewPgLearnerRepository(pool)
	vectorRepo := repository.NewPgTraitVectorRepository(pool)
	personalRepo := repository.NewPgPersonalMisconceptionRepository(pool)
	knowledgeRepo := repository.NewPgKnowledgeBaseRepository(pool)

	llmClient := llm.NewHTTPClient(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMEmbeddingModel, logger)

	heuristic := service.NewHeuristicReasoningAnalyzer()
	var analyzer service.ReasoningAnalyzer = heuristic
	if cfg.ReasoningAnalyzerMode == "llm" {
		analyzer = service.NewLLMReasoningAnalyzer(llmClient, heuristic, logger)
	}
	aggregator := service.NewEvidenceAggregator(analyzer)

	var freqIndex service.FrequencyIndex
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctxPing, cancel := context.WithTimeout(ctx, 2*time.Second)
		if err := redisClient.Ping(ctxPing).Err(); err != nil {
			logger.Warn("redis ping failed", zap.Error(err))
		} else {
			freqIndex = service.NewRedisFrequencyIndex(redisClient)
		}
		cancel()
	}

	traitSvc := service.NewTraitUpdateService(learnerRepo, vectorRepo, aggregator, logger)
	misconceptionSvc := service.NewMisconceptionService(llmClient, personalRepo, freqIndex, logger, cfg.MisconceptionConfidenceFloor, cfg.ResolutionStreakThreshold)
	promotionSvc := service.NewPromotionService(llmClient, knowledgeRepo, personalRepo, freqIndex, logger, cfg.PromotionSimilarityThreshold, cfg.PromotionFrequencyThreshold)
	knowledgeSvc := service.NewKnowledgeService(llmClient, knowledgeRepo, logger)
	assessmentSvc := service.NewAssessmentService(llmClient, logger)
	submissionSvc := service.NewSubmissionService(misconceptionSvc, traitSvc, promotionSvc, logger)

	learnerHandler := apihttp.NewLearnerHandler(logger, learnerRepo, vectorRepo, submissionSvc, misconceptionSvc)
	knowledgeHandler := apihttp.NewKnowledgeHandler(logger, knowledgeSvc, assessmentSvc)
	router := apihttp.NewRouter(logger, learnerHandler, knowledgeHandler)

	server := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
