package generation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mediaforge/mediaforge-api/internal/domain/credit"
	"github.com/mediaforge/mediaforge-api/internal/pkg/errorhandler"
	"github.com/mediaforge/mediaforge-api/internal/pkg/imaging"
	"github.com/mediaforge/mediaforge-api/internal/pkg/logger"
	"github.com/mediaforge/mediaforge-api/internal/pkg/metrics"
	"github.com/mediaforge/mediaforge-api/internal/pkg/render"
	"github.com/mediaforge/mediaforge-api/internal/pkg/storage"
)

const (
	listLimit      = 50
	maxOutputBytes = 256 << 20

	// a rendering row still without a render id after this long lost its submission
	orphanAfter = 5 * time.Minute
)

// Charger moves credits for generations. *credit.Service satisfies it.
type Charger interface {
	DeductCredits(ctx context.Context, userID, feature, provider string, meta credit.Metadata) (*credit.DeductResult, error)
	AddCredits(ctx context.Context, userID string, amount int, reason credit.Reason, description string, meta credit.Metadata) (*credit.AddResult, error)
	AddCreditsTx(ctx context.Context, tx *sqlx.Tx, userID string, amount int, reason credit.Reason, description string, meta credit.Metadata) (*credit.AddResult, error)
}

// Renderer is the rendering backend. *render.Client satisfies it.
type Renderer interface {
	Submit(ctx context.Context, req render.SubmitRequest) (*render.Job, error)
	Status(ctx context.Context, jobID string) (*render.Job, error)
	Download(ctx context.Context, outputURL string) (*render.Asset, error)
}

// Thumbnailer builds image previews. *imaging.Processor satisfies it.
type Thumbnailer interface {
	Thumbnail(data []byte) (*imaging.Thumbnail, error)
}

// Notifier is told when a job reaches a final state.
type Notifier interface {
	NotifyGenerationFinished(ctx context.Context, userID, feature string, succeeded bool, refunded int)
}

// CreateInput is a validated generation request.
type CreateInput struct {
	Feature  string
	Provider string
	Prompt   string
	Params   map[string]any
}

// Service runs paid generations against the rendering backend.
type Service struct {
	repo     Repository
	credits  Charger
	renderer Renderer
	store    storage.Storage
	thumbs   Thumbnailer
	notifier Notifier
}

// NewService creates generation service. thumbs and notifier may be nil.
func NewService(repo Repository, credits Charger, renderer Renderer, store storage.Storage, thumbs Thumbnailer, notifier Notifier) *Service {
	return &Service{
		repo:     repo,
		credits:  credits,
		renderer: renderer,
		store:    store,
		thumbs:   thumbs,
		notifier: notifier,
	}
}

// Create charges the caller and submits the job. A submission failure refunds
// and returns the generation in the failed state rather than an error.
func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Generation, error) {
	prompt := strings.TrimSpace(in.Prompt)
	if prompt == "" {
		return nil, ErrEmptyPrompt
	}

	id := uuid.New()
	charge, err := s.credits.DeductCredits(ctx, userID, in.Feature, in.Provider, credit.Metadata{GenerationID: id.String()})
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	g := &Generation{
		ID:             id,
		UserID:         userID,
		Feature:        in.Feature,
		Provider:       in.Provider,
		Prompt:         prompt,
		Params:         Params(in.Params),
		CreditsCharged: charge.Cost,
		Status:         StatusRendering,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, g); err != nil {
		// nothing references the charge yet, hand it straight back
		if charge.Cost > 0 {
			if _, refundErr := s.credits.AddCredits(ctx, userID, charge.Cost, credit.ReasonRefund, refundDescription(g), refundMeta(g)); refundErr != nil {
				logger.LogError(ctx, refundErr, "Refund after failed insert did not apply", "user_id", userID, "generation_id", id.String(), "credits", charge.Cost)
			}
		}
		return nil, err
	}

	job, err := s.renderer.Submit(ctx, render.SubmitRequest{
		JobID:    id.String(),
		Feature:  g.Feature,
		Provider: g.Provider,
		Prompt:   g.Prompt,
		Params:   in.Params,
	})
	if err != nil {
		errorhandler.LogExternalServiceError(ctx, "renderer", "submit", 0, err)
		return s.fail(ctx, g, "submission failed")
	}

	if err := s.repo.SetRenderID(ctx, id, job.ID); err != nil {
		logger.LogError(ctx, err, "Storing render id failed", "generation_id", id.String(), "render_id", job.ID)
		return s.fail(ctx, g, "submission bookkeeping failed")
	}
	g.RenderID = &job.ID

	logger.LogInfo(ctx, "Generation submitted", "user_id", userID, "generation_id", id.String(), "render_id", job.ID, "feature", g.Feature, "provider", g.Provider)
	return g, nil
}

// Get returns an owned generation, advancing it if the backend has finished.
func (s *Service) Get(ctx context.Context, userID string, id uuid.UUID) (*Generation, error) {
	g, err := s.repo.GetByIDForUser(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if !g.IsRendering() {
		return g, nil
	}
	if g.RenderID == nil {
		if time.Since(g.CreatedAt) < orphanAfter {
			return g, nil
		}
		return s.fail(ctx, g, "submission lost")
	}

	job, err := s.renderer.Status(ctx, *g.RenderID)
	if err != nil {
		errorhandler.LogExternalServiceError(ctx, "renderer", "status", 0, err)
		return g, nil
	}

	switch job.State {
	case render.StateDone:
		return s.complete(ctx, g, job)
	case render.StateFailed:
		reason := job.Error
		if reason == "" {
			reason = "render failed"
		}
		return s.fail(ctx, g, reason)
	default:
		return g, nil
	}
}

// List returns the caller's most recent generations.
func (s *Service) List(ctx context.Context, userID string) ([]Generation, error) {
	return s.repo.ListByUser(ctx, userID, listLimit)
}

// complete archives the output. Archive errors leave the job rendering so the next poll retries.
func (s *Service) complete(ctx context.Context, g *Generation, job *render.Job) (*Generation, error) {
	asset, err := s.renderer.Download(ctx, job.OutputURL)
	if err != nil {
		errorhandler.LogExternalServiceError(ctx, "renderer", "download", 0, err)
		return g, nil
	}
	data, err := io.ReadAll(io.LimitReader(asset.Body, maxOutputBytes))
	asset.Body.Close()
	if err != nil {
		logger.LogWarn(ctx, "Reading render output failed", "generation_id", g.ID.String(), "error", err.Error())
		return g, nil
	}

	contentType := asset.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	outputKey, thumbKey := imaging.GeneratePaths(g.UserID, g.ID.String(), imaging.ExtFromContentType(contentType))

	outputURL, err := s.store.Put(ctx, outputKey, bytes.NewReader(data), contentType)
	if err != nil {
		logger.LogError(ctx, err, "Archiving render output failed", "generation_id", g.ID.String())
		return g, nil
	}

	var thumbURL *string
	if g.Feature == FeatureImage && s.thumbs != nil {
		thumbURL = s.archiveThumbnail(ctx, g, data, thumbKey)
	}

	won, err := s.repo.MarkCompleted(ctx, g.ID, outputURL, thumbURL)
	if err != nil {
		return nil, err
	}
	if !won {
		return s.repo.GetByIDForUser(ctx, g.UserID, g.ID)
	}

	metrics.Generations.WithLabelValues(g.Feature, g.Provider, string(StatusCompleted)).Inc()
	logger.LogInfo(ctx, "Generation completed", "user_id", g.UserID, "generation_id", g.ID.String(), "output_url", outputURL)
	if s.notifier != nil {
		s.notifier.NotifyGenerationFinished(ctx, g.UserID, g.Feature, true, 0)
	}

	now := time.Now().UTC()
	g.Status = StatusCompleted
	g.OutputURL = &outputURL
	g.ThumbnailURL = thumbURL
	g.CompletedAt = &now
	g.UpdatedAt = now
	return g, nil
}

// thumbnails are best effort
func (s *Service) archiveThumbnail(ctx context.Context, g *Generation, data []byte, key string) *string {
	th, err := s.thumbs.Thumbnail(data)
	if err != nil {
		logger.LogWarn(ctx, "Thumbnail failed", "generation_id", g.ID.String(), "error", err.Error())
		return nil
	}
	url, err := s.store.Put(ctx, key+th.Ext, bytes.NewReader(th.Data), th.ContentType)
	if err != nil {
		logger.LogWarn(ctx, "Archiving thumbnail failed", "generation_id", g.ID.String(), "error", err.Error())
		return nil
	}
	return &url
}

// fail marks the job failed and refunds in the same transaction. Only the
// caller that wins the status transition refunds.
func (s *Service) fail(ctx context.Context, g *Generation, reason string) (*Generation, error) {
	var refund int
	var won bool
	err := s.repo.RunInTx(ctx, func(tx *sqlx.Tx) error {
		var err error
		refund, won, err = s.repo.MarkFailedTx(ctx, tx, g.ID, reason)
		if err != nil || !won || refund == 0 {
			return err
		}
		_, err = s.credits.AddCreditsTx(ctx, tx, g.UserID, refund, credit.ReasonRefund, refundDescription(g), refundMeta(g))
		return err
	})
	if err != nil {
		return nil, err
	}
	if !won {
		return s.repo.GetByIDForUser(ctx, g.UserID, g.ID)
	}

	metrics.Generations.WithLabelValues(g.Feature, g.Provider, string(StatusFailed)).Inc()
	if refund > 0 {
		metrics.CreditsMoved.WithLabelValues("credit", string(credit.ReasonRefund)).Add(float64(refund))
	}
	logger.LogWarn(ctx, "Generation failed", "user_id", g.UserID, "generation_id", g.ID.String(), "reason", reason, "refunded", refund)
	if s.notifier != nil {
		s.notifier.NotifyGenerationFinished(ctx, g.UserID, g.Feature, false, refund)
	}

	now := time.Now().UTC()
	g.Status = StatusFailed
	g.Error = &reason
	g.Refunded = refund > 0
	g.CompletedAt = &now
	g.UpdatedAt = now
	return g, nil
}

func refundDescription(g *Generation) string {
	return fmt.Sprintf("Refund: %s (%s)", g.Feature, g.Provider)
}

func refundMeta(g *Generation) credit.Metadata {
	return credit.Metadata{
		GenerationID: g.ID.String(),
		Feature:      g.Feature,
		Provider:     g.Provider,
	}
}
