// internal/predictions/service.go
package predictions

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"northbound-api/internal/common/config"
	apperrors "northbound-api/internal/common/errors"
	"northbound-api/internal/common/logger"
	"northbound-api/internal/common/validation"
	"northbound-api/internal/models"
)

const cacheKey = "predictions:h7:latest"

// ObjectGetter reads one artifact by key. Satisfied by the S3 client in
// production and by LocalGetter when serving artifacts from disk.
type ObjectGetter interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)
}

// LocalGetter serves artifacts from a local directory, keyed by base name.
// Used for development without S3 credentials.
type LocalGetter struct {
	Dir string
}

func (g LocalGetter) GetObject(_ context.Context, _ string, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(g.Dir, filepath.Base(key)))
}

// manifest is the wire shape of manifest.json.
type manifest struct {
	Horizon  string   `json:"horizon"`
	AsOfUTC  string   `json:"as_of_utc"`
	RunDate  string   `json:"run_date"`
	Pairs    []string `json:"pairs"`
	Timezone string   `json:"timezone"`
	GitSHA   string   `json:"git_sha"`
}

// artifact is the wire shape of latest_{PAIR}_h7.json.
type artifact struct {
	Pair        string  `json:"pair"`
	PUp         float64 `json:"p_up"`
	GeneratedAt string  `json:"generated_at"`
	ObsDate     string  `json:"obs_date"`
	Model       string  `json:"model"`
}

// Service assembles the latest-predictions snapshot from published S3
// artifacts, validating each against its schema and caching the assembled
// result in Redis for the configured TTL.
type Service struct {
	objects           ObjectGetter
	cache             *redis.Client
	cfg               config.PredictionsConfig
	artifactValidator *validation.SchemaValidator
	manifestValidator *validation.SchemaValidator
	log               logger.Logger
}

func NewService(objects ObjectGetter, cache *redis.Client, cfg config.PredictionsConfig, log logger.Logger) (*Service, error) {
	av, err := validation.NewSchemaValidator(artifactSchema)
	if err != nil {
		return nil, fmt.Errorf("artifact schema: %w", err)
	}
	mv, err := validation.NewSchemaValidator(manifestSchema)
	if err != nil {
		return nil, fmt.Errorf("manifest schema: %w", err)
	}
	return &Service{
		objects:           objects,
		cache:             cache,
		cfg:               cfg,
		artifactValidator: av,
		manifestValidator: mv,
		log:               log,
	}, nil
}

// Latest returns the current snapshot, from cache when fresh. A cache miss
// assembles from the object store; cache failures are logged and bypassed.
func (s *Service) Latest(ctx context.Context) (*models.PredictionsSnapshot, error) {
	if s.cache != nil {
		cached, err := s.cache.Get(ctx, cacheKey).Bytes()
		if err == nil {
			var snap models.PredictionsSnapshot
			if err := json.Unmarshal(cached, &snap); err == nil {
				return &snap, nil
			}
			s.log.Warn("discarding malformed cached snapshot", nil)
		} else if err != redis.Nil {
			s.log.WithError(err).Warn("predictions cache read failed", nil)
		}
	}

	snap, err := s.assemble(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if payload, err := json.Marshal(snap); err == nil {
			ttl := time.Duration(s.cfg.CacheTTL) * time.Second
			if err := s.cache.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
				s.log.WithError(err).Warn("predictions cache write failed", nil)
			}
		}
	}
	return snap, nil
}

// assemble fetches the manifest and every pair's artifact. The manifest is
// required; individual pair artifacts degrade to ABSTAIN placeholders.
func (s *Service) assemble(ctx context.Context) (*models.PredictionsSnapshot, error) {
	raw, err := s.objects.GetObject(ctx, s.cfg.S3Bucket, s.cfg.ManifestKey())
	if err != nil {
		return nil, apperrors.NewPredictionsError(fmt.Errorf("fetch manifest: %w", err))
	}
	if result, err := s.manifestValidator.ValidateBytes(raw); err != nil {
		return nil, apperrors.NewPredictionsError(err)
	} else if err := result.Err(); err != nil {
		return nil, apperrors.NewPredictionsError(fmt.Errorf("manifest schema: %w", err))
	}

	var m manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, apperrors.NewPredictionsError(fmt.Errorf("decode manifest: %w", err))
	}

	pairs := m.Pairs
	if len(pairs) == 0 {
		pairs = s.cfg.DefaultPairs
	}

	snap := &models.PredictionsSnapshot{
		Metadata: models.ManifestMetadata{
			Horizon:  m.Horizon,
			AsOfUTC:  m.AsOfUTC,
			RunDate:  m.RunDate,
			Timezone: m.Timezone,
			GitSHA:   m.GitSHA,
		},
		Predictions: make([]models.PredictionItem, 0, len(pairs)),
	}
	for _, pair := range pairs {
		snap.Predictions = append(snap.Predictions, s.loadPair(ctx, pair))
	}
	return snap, nil
}

// loadPair fetches and validates one pair's artifact, falling back to an
// ABSTAIN placeholder on any failure.
func (s *Service) loadPair(ctx context.Context, pair string) models.PredictionItem {
	placeholder := models.PredictionItem{
		Pair:       pair,
		PairLabel:  pairLabel(pair),
		Direction:  models.DirectionAbstain,
		Confidence: 0,
		Available:  false,
	}

	raw, err := s.objects.GetObject(ctx, s.cfg.S3Bucket, s.cfg.LatestKey(pair))
	if err != nil {
		s.log.WithError(err).Warn("pair artifact unavailable", map[string]interface{}{"pair": pair})
		return placeholder
	}
	if result, err := s.artifactValidator.ValidateBytes(raw); err != nil || result.Err() != nil {
		s.log.Warn("pair artifact failed schema validation", map[string]interface{}{"pair": pair})
		return placeholder
	}

	var a artifact
	if err := json.Unmarshal(raw, &a); err != nil {
		s.log.WithError(err).Warn("pair artifact undecodable", map[string]interface{}{"pair": pair})
		return placeholder
	}

	direction := models.DirectionDown
	if a.PUp > 0.5 {
		direction = models.DirectionUp
	}
	confidence := a.PUp
	if 1-a.PUp > confidence {
		confidence = 1 - a.PUp
	}
	return models.PredictionItem{
		Pair:        pair,
		PairLabel:   pairLabel(pair),
		Direction:   direction,
		Confidence:  confidence,
		PUp:         a.PUp,
		GeneratedAt: a.GeneratedAt,
		ObsDate:     a.ObsDate,
		Model:       a.Model,
		Available:   true,
	}
}

func pairLabel(pair string) string {
	return strings.ReplaceAll(pair, "_", "/")
}

// FilterSnapshot narrows a snapshot to the requested pairs, in request
// order, with an ABSTAIN placeholder for any pair the snapshot does not
// carry. A positive limit truncates the result. Nil pairs keeps the full
// set.
func FilterSnapshot(snap *models.PredictionsSnapshot, pairs []string, limit int) *models.PredictionsSnapshot {
	out := &models.PredictionsSnapshot{Metadata: snap.Metadata}
	if len(pairs) == 0 {
		out.Predictions = append(out.Predictions, snap.Predictions...)
	} else {
		byPair := make(map[string]models.PredictionItem, len(snap.Predictions))
		for _, item := range snap.Predictions {
			byPair[item.Pair] = item
		}
		for _, pair := range pairs {
			if item, ok := byPair[pair]; ok {
				out.Predictions = append(out.Predictions, item)
				continue
			}
			out.Predictions = append(out.Predictions, models.PredictionItem{
				Pair:      pair,
				PairLabel: pairLabel(pair),
				Direction: models.DirectionAbstain,
			})
		}
	}
	if limit > 0 && limit < len(out.Predictions) {
		out.Predictions = out.Predictions[:limit]
	}
	return out
}
