package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"re2q/internal/domain"
)

// AnswerBuffer is the Redis-backed write-behind buffer for submissions.
//
// Entries are stored as: SET answer:{questionID}:{participantID} {json} EX ttl
// The pending index is a set: SADD answerkeys:{questionID} {participantID}
//
// SADD is the atomic merge that keeps concurrent first-time submissions from
// losing index updates; a plain read-modify-write of a list value would race.
// Both keys carry the TTL as a leak guard against a crashed drain loop.
type AnswerBuffer struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnswerBuffer(client *redis.Client, ttl time.Duration) *AnswerBuffer {
	return &AnswerBuffer{client: client, ttl: ttl}
}

func (b *AnswerBuffer) Put(ctx context.Context, answer domain.PendingAnswer) error {
	payload, err := json.Marshal(answer)
	if err != nil {
		return fmt.Errorf("marshal pending answer: %w", err)
	}

	pipe := b.client.TxPipeline()
	pipe.Set(ctx, b.entryKey(answer.QuestionID, answer.ParticipantID), payload, b.ttl)
	pipe.SAdd(ctx, b.indexKey(answer.QuestionID), answer.ParticipantID)
	pipe.Expire(ctx, b.indexKey(answer.QuestionID), b.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("buffer answer: %w", err)
	}
	return nil
}

func (b *AnswerBuffer) Pending(ctx context.Context, questionID int64) ([]domain.PendingAnswer, error) {
	participantIDs, err := b.client.SMembers(ctx, b.indexKey(questionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("read pending index: %w", err)
	}
	if len(participantIDs) == 0 {
		return nil, nil
	}

	keys := make([]string, 0, len(participantIDs))
	for _, participantID := range participantIDs {
		keys = append(keys, b.entryKey(questionID, participantID))
	}
	values, err := b.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("read pending entries: %w", err)
	}

	pending := make([]domain.PendingAnswer, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			// expired or already drained; skip silently
			continue
		}
		var answer domain.PendingAnswer
		if err := json.Unmarshal([]byte(raw), &answer); err != nil {
			continue
		}
		pending = append(pending, answer)
	}
	return pending, nil
}

func (b *AnswerBuffer) Remove(ctx context.Context, questionID int64, participantIDs []string) error {
	if len(participantIDs) == 0 {
		return nil
	}

	keys := make([]string, 0, len(participantIDs))
	members := make([]interface{}, 0, len(participantIDs))
	for _, participantID := range participantIDs {
		keys = append(keys, b.entryKey(questionID, participantID))
		members = append(members, participantID)
	}

	// Entries first, index second: an interruption between the two leaves
	// index members whose entries are gone, and Pending skips those.
	if err := b.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete pending entries: %w", err)
	}
	if err := b.client.SRem(ctx, b.indexKey(questionID), members...).Err(); err != nil {
		return fmt.Errorf("prune pending index: %w", err)
	}
	return nil
}

func (b *AnswerBuffer) entryKey(questionID int64, participantID string) string {
	return "answer:" + strconv.FormatInt(questionID, 10) + ":" + participantID
}

func (b *AnswerBuffer) indexKey(questionID int64) string {
	return "answerkeys:" + strconv.FormatInt(questionID, 10)
}
