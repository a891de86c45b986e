package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// FrequencyIndex es el indice invertido texto-normalizado -> set de
// aprendices. Lo alimenta el tracker personal en cada deteccion y lo consulta
// el pipeline de promocion para el quorum entre aprendices, evitando el scan
// completo de la poblacion.
type FrequencyIndex interface {
	Record(ctx context.Context, misconceptionText, learnerID string) error
	DistinctLearners(ctx context.Context, misconceptionText string) (int, error)
}

func normalizeMisconceptionKey(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// redisFrequencyIndex guarda cada set bajo un prefijo propio con SADD/SCARD.
type redisFrequencyIndex struct {
	client *redis.Client
	prefix string
}

func NewRedisFrequencyIndex(client *redis.Client) FrequencyIndex {
	if client == nil {
		return nil
	}
	return &redisFrequencyIndex{
		client: client,
		prefix: "misconception:learners:",
	}
}

func (i *redisFrequencyIndex) Record(ctx context.Context, misconceptionText, learnerID string) error {
	key := normalizeMisconceptionKey(misconceptionText)
	if key == "" || learnerID == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	return i.client.SAdd(ctx, i.prefix+key, learnerID).Err()
}

func (i *redisFrequencyIndex) DistinctLearners(ctx context.Context, misconceptionText string) (int, error) {
	key := normalizeMisconceptionKey(misconceptionText)
	if key == "" {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()
	count, err := i.client.SCard(ctx, i.prefix+key).Result()
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

// memoryFrequencyIndex sirve para tests y despliegues sin Redis.
type memoryFrequencyIndex struct {
	mu    sync.Mutex
	items map[string]map[string]struct{}
}

func NewMemoryFrequencyIndex() FrequencyIndex {
	return &memoryFrequencyIndex{items: make(map[string]map[string]struct{})}
}

func (i *memoryFrequencyIndex) Record(_ context.Context, misconceptionText, learnerID string) error {
	key := normalizeMisconceptionKey(misconceptionText)
	if key == "" || learnerID == "" {
		return nil
	}
	i.mu.Lock()
	defer i.mu.Unlock()
	set, ok := i.items[key]
	if !ok {
		set = make(map[string]struct{})
		i.items[key] = set
	}
	set[learnerID] = struct{}{}
	return nil
}

func (i *memoryFrequencyIndex) DistinctLearners(_ context.Context, misconceptionText string) (int, error) {
	key := normalizeMisconceptionKey(misconceptionText)
	i.mu.Lock()
	defer i.mu.Unlock()
	return len(i.items[key]), nil
}
