package service

import (
	"context"
	"errors"
	"testing"

	pgvector "github.com/pgvector/pgvector-go"
	"go.uber.org/zap"

	"tutor-llm/internal/domain"
	"tutor-llm/internal/llm"
	"tutor-llm/internal/repository"
)

type mockKBRepo struct {
	neighbors  []repository.NeighborRecord
	nearestErr error
	insertErr  error
	inserted   []domain.GlobalMisconceptionRecord
}

func (m *mockKBRepo) Insert(ctx context.Context, record domain.GlobalMisconceptionRecord) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, record)
	return nil
}

func (m *mockKBRepo) Nearest(ctx context.Context, subject string, embedding pgvector.Vector, k int) ([]repository.NeighborRecord, error) {
	if m.nearestErr != nil {
		return nil, m.nearestErr
	}
	return m.neighbors, nil
}

func neighborAtDistance(text string, distance float64) repository.NeighborRecord {
	return repository.NeighborRecord{
		Record:   domain.GlobalMisconceptionRecord{ID: "kb-1", MisconceptionText: text},
		Distance: distance,
	}
}

func indexWithLearners(t *testing.T, text string, n int) FrequencyIndex {
	t.Helper()
	index := NewMemoryFrequencyIndex()
	for i := 0; i < n; i++ {
		if err := index.Record(context.Background(), text, string(rune('a'+i))); err != nil {
			t.Fatalf("seeding index: %v", err)
		}
	}
	return index
}

func TestCheckAndPromoteRejectsDuplicateRegardlessOfFrequency(t *testing.T) {
	kb := &mockKBRepo{neighbors: []repository.NeighborRecord{
		neighborAtDistance("objects of different mass fall at different rates", 0.1),
	}}
	text := "heavier objects fall faster"
	index := indexWithLearners(t, text, 10)
	svc := NewPromotionService(&llm.MockClient{}, kb, &mockPersonalRepo{}, index, zap.NewNop(), 0.85, 3)

	decision := svc.CheckAndPromote(context.Background(), text, "gravity", "physics")
	if decision.Promoted {
		t.Fatalf("expected rejection")
	}
	if decision.Reason != domain.PromotionReasonDuplicate {
		t.Fatalf("expected reason duplicate, got %s", decision.Reason)
	}
	if decision.Similarity < 0.85 {
		t.Fatalf("expected similarity >= 0.85, got %.2f", decision.Similarity)
	}
	if decision.SimilarTo == "" {
		t.Fatalf("expected the near-duplicate record to be reported")
	}
	if len(kb.inserted) != 0 {
		t.Fatalf("expected no knowledge base insert")
	}
}

func TestCheckAndPromoteRejectsInsufficientFrequency(t *testing.T) {
	kb := &mockKBRepo{neighbors: []repository.NeighborRecord{
		neighborAtDistance("unrelated record", 0.5),
	}}
	text := "heavier objects fall faster"
	index := indexWithLearners(t, text, 2)
	svc := NewPromotionService(&llm.MockClient{}, kb, &mockPersonalRepo{distinctCount: 2}, index, zap.NewNop(), 0.85, 3)

	decision := svc.CheckAndPromote(context.Background(), text, "gravity", "physics")
	if decision.Promoted {
		t.Fatalf("expected rejection")
	}
	if decision.Reason != domain.PromotionReasonInsufficientFrequency {
		t.Fatalf("expected reason insufficient_frequency, got %s", decision.Reason)
	}
	if decision.LearnerCount != 2 || decision.Threshold != 3 {
		t.Fatalf("expected learner count 2 below threshold 3, got %d/%d", decision.LearnerCount, decision.Threshold)
	}
	if len(kb.inserted) != 0 {
		t.Fatalf("expected no knowledge base insert")
	}
}

func TestCheckAndPromotePromotesNovelFrequentMisconception(t *testing.T) {
	kb := &mockKBRepo{neighbors: []repository.NeighborRecord{
		neighborAtDistance("unrelated record", 0.5),
	}}
	text := "heavier objects fall faster"
	index := indexWithLearners(t, text, 4)
	svc := NewPromotionService(&llm.MockClient{}, kb, &mockPersonalRepo{}, index, zap.NewNop(), 0.85, 3)

	decision := svc.CheckAndPromote(context.Background(), text, "gravity", "physics")
	if !decision.Promoted {
		t.Fatalf("expected promotion, got reason %s", decision.Reason)
	}
	if decision.LearnerCount != 4 {
		t.Fatalf("expected 4 supporting learners, got %d", decision.LearnerCount)
	}
	if decision.NoveltyScore != 0.5 {
		t.Fatalf("expected novelty score 0.5 (1 - similarity), got %.2f", decision.NoveltyScore)
	}

	if len(kb.inserted) != 1 {
		t.Fatalf("expected 1 knowledge base insert, got %d", len(kb.inserted))
	}
	record := kb.inserted[0]
	if record.MisconceptionText != text || record.Subject != "physics" || record.Topic != "gravity" {
		t.Fatalf("unexpected record %+v", record)
	}
	if record.Source != domain.KBSourceStudentDiscovered {
		t.Fatalf("expected source student_discovered, got %s", record.Source)
	}
	if record.Frequency != 4 {
		t.Fatalf("expected frequency 4, got %d", record.Frequency)
	}
	if decision.GlobalRecordID != record.ID {
		t.Fatalf("expected decision to carry the new record id")
	}
}

func TestCheckAndPromoteEmptyKnowledgeBaseIsMaximallyNovel(t *testing.T) {
	kb := &mockKBRepo{}
	text := "first ever misconception"
	index := indexWithLearners(t, text, 3)
	svc := NewPromotionService(&llm.MockClient{}, kb, &mockPersonalRepo{}, index, zap.NewNop(), 0.85, 3)

	decision := svc.CheckAndPromote(context.Background(), text, "gravity", "physics")
	if !decision.Promoted {
		t.Fatalf("expected promotion against empty base, got reason %s", decision.Reason)
	}
	if decision.NoveltyScore != 1.0 {
		t.Fatalf("expected novelty 1.0, got %.2f", decision.NoveltyScore)
	}
}

func TestCheckAndPromoteEmbeddingFailureReportsError(t *testing.T) {
	client := &llm.MockClient{EmbeddingErr: errors.New("embedding service down")}
	svc := NewPromotionService(client, &mockKBRepo{}, &mockPersonalRepo{}, nil, zap.NewNop(), 0.85, 3)

	decision := svc.CheckAndPromote(context.Background(), "text", "gravity", "physics")
	if decision.Promoted || decision.Reason != domain.PromotionReasonError {
		t.Fatalf("expected error decision, got %+v", decision)
	}
}

func TestCheckAndPromoteKnowledgeBaseFailureReportsError(t *testing.T) {
	kb := &mockKBRepo{nearestErr: errors.New("pg down")}
	svc := NewPromotionService(&llm.MockClient{}, kb, &mockPersonalRepo{}, nil, zap.NewNop(), 0.85, 3)

	decision := svc.CheckAndPromote(context.Background(), "text", "gravity", "physics")
	if decision.Promoted || decision.Reason != domain.PromotionReasonError {
		t.Fatalf("expected error decision, got %+v", decision)
	}
}

func TestCheckAndPromoteFallsBackToRepoScanWithoutIndex(t *testing.T) {
	kb := &mockKBRepo{}
	repo := &mockPersonalRepo{distinctCount: 5}
	svc := NewPromotionService(&llm.MockClient{}, kb, repo, nil, zap.NewNop(), 0.85, 3)

	decision := svc.CheckAndPromote(context.Background(), "novel misconception text", "gravity", "physics")
	if !decision.Promoted {
		t.Fatalf("expected promotion via repository scan, got reason %s", decision.Reason)
	}
	if decision.LearnerCount != 5 {
		t.Fatalf("expected count 5 from scan, got %d", decision.LearnerCount)
	}
}
