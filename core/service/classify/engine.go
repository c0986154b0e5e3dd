// Package classify implements AI categorization of stored messages.
package classify

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"

	"github.com/vinodvk00/one-box-sub001/core/domain"
	"github.com/vinodvk00/one-box-sub001/core/port/out"
	"github.com/vinodvk00/one-box-sub001/pkg/apperr"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// maxClassifiableBody caps the body text handed to the classifier so
// prompt size stays bounded.
const maxClassifiableBody = 4000

// Engine categorizes single messages. Verdicts are cached by content
// hash: identical emails (common in cold outreach) classify once.
type Engine struct {
	messages   out.MessageRepository
	classifier out.Classifier
	index      out.SearchIndex
	cache      out.Cache
	cacheTTL   time.Duration
}

// NewEngine creates a categorization engine. cache may be nil.
func NewEngine(messages out.MessageRepository, classifier out.Classifier, index out.SearchIndex, cache out.Cache, cacheTTL time.Duration) *Engine {
	if cacheTTL <= 0 {
		cacheTTL = 24 * time.Hour
	}
	return &Engine{
		messages:   messages,
		classifier: classifier,
		index:      index,
		cache:      cache,
		cacheTTL:   cacheTTL,
	}
}

// Categorize classifies one message and persists the verdict. The
// message must be visible through the caller's allow-list; a message
// outside it is indistinguishable from one that does not exist.
// Re-categorizing an already categorized message overwrites in place.
// A classifier failure degrades to the default category rather than
// failing the call.
func (e *Engine) Categorize(ctx context.Context, messageID string, allowedAccountIDs []int64) (*domain.Classification, error) {
	msg, err := e.messages.GetByID(ctx, messageID, allowedAccountIDs)
	if err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("message")
		}
		return nil, apperr.DatabaseError("load message", err)
	}

	return e.categorizeMessage(ctx, msg)
}

// categorizeMessage runs the classifier and persists the result for an
// already loaded message.
func (e *Engine) categorizeMessage(ctx context.Context, msg *domain.Message) (*domain.Classification, error) {
	text := msg.ClassifiableText(maxClassifiableBody)

	verdict, cached := e.lookupCache(ctx, text)
	if !cached {
		result, err := e.classifier.Classify(ctx, text)
		if err != nil {
			// The classifier is best-effort: a timeout or garbage
			// response degrades to the default category instead of
			// failing the call. The degraded verdict is not cached,
			// so a manual re-run can replace it.
			logger.WithError(err).Warn("[Engine.categorizeMessage] Classifier failed for message %s, using %s",
				msg.ID, domain.DefaultCategory)
			verdict = &domain.Classification{
				Category:   domain.DefaultCategory,
				Confidence: 0,
				Reasoning:  "classifier unavailable: " + err.Error(),
			}
		} else {
			category, ok := domain.ParseCategory(result.Label)
			if !ok {
				logger.Warn("[Engine.categorizeMessage] Unrecognized label %q for message %s, falling back to %s",
					result.Label, msg.ID, domain.DefaultCategory)
				verdict = &domain.Classification{
					Category:   domain.DefaultCategory,
					Confidence: 0,
					Reasoning:  "unrecognized classifier label: " + result.Label,
				}
			} else {
				verdict = &domain.Classification{
					Category:   category,
					Confidence: result.Confidence,
					Reasoning:  result.Reasoning,
				}
			}
			e.storeCache(ctx, text, verdict)
		}
	}

	if err := e.messages.UpdateCategory(ctx, msg.ID, verdict.Category); err != nil {
		if errors.Is(err, out.ErrNotFound) {
			return nil, apperr.NotFound("message")
		}
		return nil, apperr.DatabaseError("update category", err)
	}

	// Mirror the verdict into the index; a failure here is repaired by
	// the next resync and never rolls back the relational write.
	msg.Category = &verdict.Category
	if err := e.index.Index(ctx, msg); err != nil {
		logger.WithError(err).Warn("[Engine.categorizeMessage] Failed to re-index message %s", msg.ID)
	}

	return verdict, nil
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "classify:" + hex.EncodeToString(sum[:])
}

func (e *Engine) lookupCache(ctx context.Context, text string) (*domain.Classification, bool) {
	if e.cache == nil {
		return nil, false
	}
	var verdict domain.Classification
	hit, err := e.cache.GetJSON(ctx, cacheKey(text), &verdict)
	if err != nil {
		logger.WithError(err).Debug("[Engine.lookupCache] Cache read failed")
		return nil, false
	}
	if !hit || !verdict.Category.IsValid() {
		return nil, false
	}
	return &verdict, true
}

func (e *Engine) storeCache(ctx context.Context, text string, verdict *domain.Classification) {
	if e.cache == nil {
		return
	}
	if err := e.cache.SetJSON(ctx, cacheKey(text), verdict, e.cacheTTL); err != nil {
		logger.WithError(err).Debug("[Engine.storeCache] Cache write failed")
	}
}
