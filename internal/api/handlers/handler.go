package handlers

import (
	"context"

	"go.uber.org/zap"

	"github.com/privacychecker/audit-core/internal/audit"
	"github.com/privacychecker/audit-core/internal/db"
	"github.com/privacychecker/audit-core/internal/pipeline"
	"github.com/privacychecker/audit-core/internal/queue"
	"github.com/privacychecker/audit-core/internal/storage/redis"
)

// Enqueuer pushes scan jobs for asynchronous processing.
type Enqueuer interface {
	Push(ctx context.Context, job *queue.ScanJob) error
}

type EmailGrader interface {
	Grade(ctx context.Context, domain string) *audit.EmailGrade
}

type Handler struct {
	service *pipeline.Service
	queue   Enqueuer
	repo    *db.Repository
	store   *redis.Client
	grader  EmailGrader
	logger  *zap.Logger
}

func New(
	service *pipeline.Service,
	q Enqueuer,
	repo *db.Repository,
	store *redis.Client,
	grader EmailGrader,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		service: service,
		queue:   q,
		repo:    repo,
		store:   store,
		grader:  grader,
		logger:  logger,
	}
}
