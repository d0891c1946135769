package memory

import (
	"context"
	"math/rand"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"re2q/internal/domain"
)

// CatalogLoader fetches the question catalog from a backing store.
type CatalogLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// Catalog caches the question catalog with TTL to avoid repeated DB hits.
// The catalog is immutable while a quiz runs, so staleness within the TTL is
// harmless.
type Catalog struct {
	loader CatalogLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	questions []domain.Question
	expiresAt time.Time
}

func NewCatalog(loader CatalogLoader, ttl time.Duration) *Catalog {
	return &Catalog{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// All returns the catalog ordered by position.
func (c *Catalog) All(ctx context.Context) ([]domain.Question, error) {
	now := c.clock()

	c.mu.RLock()
	if c.questions != nil && c.expiresAt.After(now) {
		cached := c.questions
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	result, err, _ := c.sf.Do("catalog", func() (interface{}, error) {
		now := c.clock()
		c.mu.RLock()
		if c.questions != nil && c.expiresAt.After(now) {
			cached := c.questions
			c.mu.RUnlock()
			return cached, nil
		}
		c.mu.RUnlock()

		questions, err := c.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, err
		}
		sort.Slice(questions, func(i, j int) bool {
			return questions[i].Position < questions[j].Position
		})

		c.mu.Lock()
		c.questions = questions
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return questions, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

func (c *Catalog) Get(ctx context.Context, id int64) (domain.Question, error) {
	questions, err := c.All(ctx)
	if err != nil {
		return domain.Question{}, err
	}
	for _, q := range questions {
		if q.ID == id {
			return q, nil
		}
	}
	return domain.Question{}, domain.ErrQuestionNotFound
}

func (c *Catalog) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

// StaticCatalogLoader serves a fixed question list (useful for tests/demos).
type StaticCatalogLoader struct {
	questions []domain.Question
}

func NewStaticCatalogLoader(questions []domain.Question) *StaticCatalogLoader {
	return &StaticCatalogLoader{questions: questions}
}

func (l *StaticCatalogLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(l.questions))
	copy(out, l.questions)
	return out, nil
}
