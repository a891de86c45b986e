package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"tutor-llm/internal/domain"
	"tutor-llm/internal/llm"
)

type mockPersonalRepo struct {
	existing *domain.PersonalMisconception
	findErr  error

	created       []domain.PersonalMisconception
	relapses      []string
	corrects      []string
	streakResets  []string
	resolveAt     int
	distinctCount int
	distinctErr   error
	progress      []domain.MisconceptionProgress
	listed        []domain.PersonalMisconception
}

func (m *mockPersonalRepo) Create(ctx context.Context, mc domain.PersonalMisconception) error {
	m.created = append(m.created, mc)
	return nil
}

func (m *mockPersonalRepo) FindByText(ctx context.Context, learnerID, topic, text string) (*domain.PersonalMisconception, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.existing, nil
}

func (m *mockPersonalRepo) ListByLearner(ctx context.Context, learnerID, topic string, onlyUnresolved bool) ([]domain.PersonalMisconception, error) {
	return m.listed, nil
}

func (m *mockPersonalRepo) RecordRelapse(ctx context.Context, id string, occurredAt time.Time) error {
	m.relapses = append(m.relapses, id)
	return nil
}

func (m *mockPersonalRepo) RecordCorrect(ctx context.Context, id string, threshold int, resolvedAt time.Time) (bool, error) {
	m.corrects = append(m.corrects, id)
	return len(m.corrects) >= m.resolveAt && m.resolveAt > 0, nil
}

func (m *mockPersonalRepo) ResetStreak(ctx context.Context, id string) error {
	m.streakResets = append(m.streakResets, id)
	return nil
}

func (m *mockPersonalRepo) CountDistinctLearnersMatching(ctx context.Context, text string) (int, error) {
	if m.distinctErr != nil {
		return 0, m.distinctErr
	}
	return m.distinctCount, nil
}

func (m *mockPersonalRepo) ProgressByTopic(ctx context.Context, learnerID string) ([]domain.MisconceptionProgress, error) {
	return m.progress, nil
}

const classifierJSON = `{
	"misconception_text": "Believes heavier objects fall faster",
	"confidence": 0.85,
	"evidence": "mentions weight as the cause of speed",
	"severity": "high",
	"related_trait": "analytical_depth",
	"suggested_remediation": "demonstrate with vacuum drop experiment"
}`

func incorrectEvent() domain.QuizResponseEvent {
	return domain.QuizResponseEvent{
		QuestionID:     "q1",
		QuestionText:   "Which object lands first?",
		SelectedOption: "The heavier one",
		CorrectOption:  "Both at the same time",
		IsCorrect:      false,
		Confidence:     0.8,
		Reasoning:      "heavier means more force so it falls faster",
	}
}

func TestProcessResponseCorrectAnswerSkipsClassifier(t *testing.T) {
	client := &llm.MockClient{Response: classifierJSON}
	repo := &mockPersonalRepo{}
	svc := NewMisconceptionService(client, repo, nil, zap.NewNop(), 0.6, 3)

	event := incorrectEvent()
	event.IsCorrect = true

	if got := svc.ProcessResponse(context.Background(), "l1", "gravity", event); got != nil {
		t.Fatalf("expected nil for correct answer, got %+v", got)
	}
	if len(client.Prompts) != 0 {
		t.Fatalf("expected no classifier call, got %d", len(client.Prompts))
	}
}

func TestProcessResponseDetectsAndPersistsNewMisconception(t *testing.T) {
	client := &llm.MockClient{Response: classifierJSON}
	repo := &mockPersonalRepo{}
	index := NewMemoryFrequencyIndex()
	svc := NewMisconceptionService(client, repo, index, zap.NewNop(), 0.6, 3)

	got := svc.ProcessResponse(context.Background(), "l1", "gravity", incorrectEvent())
	if got == nil {
		t.Fatalf("expected a discovered misconception")
	}
	if got.MisconceptionText != "Believes heavier objects fall faster" {
		t.Fatalf("unexpected text %q", got.MisconceptionText)
	}
	if got.Severity != domain.SeverityHigh {
		t.Fatalf("expected severity high, got %s", got.Severity)
	}
	if got.RelatedTrait == nil || *got.RelatedTrait != domain.TraitAnalyticalDepth {
		t.Fatalf("expected related trait analytical_depth")
	}

	if len(repo.created) != 1 {
		t.Fatalf("expected 1 create, got %d", len(repo.created))
	}
	created := repo.created[0]
	if created.Frequency != 1 || created.CorrectStreak != 0 || created.Resolved {
		t.Fatalf("expected fresh record with frequency 1, streak 0, active; got %+v", created)
	}
	if created.QuestionContext == "" || created.StudentReasoning == "" {
		t.Fatalf("expected question context and reasoning captured")
	}

	count, err := index.DistinctLearners(context.Background(), got.MisconceptionText)
	if err != nil || count != 1 {
		t.Fatalf("expected learner indexed once, got %d (%v)", count, err)
	}
}

func TestProcessResponseRelapseOnKnownText(t *testing.T) {
	client := &llm.MockClient{Response: classifierJSON}
	repo := &mockPersonalRepo{
		existing: &domain.PersonalMisconception{
			ID:        "mc-1",
			Frequency: 2,
			Resolved:  true,
		},
	}
	svc := NewMisconceptionService(client, repo, nil, zap.NewNop(), 0.6, 3)

	got := svc.ProcessResponse(context.Background(), "l1", "gravity", incorrectEvent())
	if got == nil {
		t.Fatalf("expected detection to still be reported on relapse")
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected no new record on relapse")
	}
	if len(repo.relapses) != 1 || repo.relapses[0] != "mc-1" {
		t.Fatalf("expected relapse recorded on mc-1, got %v", repo.relapses)
	}
}

func TestProcessResponseDiscardsLowConfidenceDetection(t *testing.T) {
	client := &llm.MockClient{Response: `{"misconception_text": "vague guess", "confidence": 0.4}`}
	repo := &mockPersonalRepo{}
	svc := NewMisconceptionService(client, repo, nil, zap.NewNop(), 0.6, 3)

	if got := svc.ProcessResponse(context.Background(), "l1", "gravity", incorrectEvent()); got != nil {
		t.Fatalf("expected low-confidence detection discarded, got %+v", got)
	}
	if len(repo.created) != 0 {
		t.Fatalf("expected nothing persisted")
	}
}

func TestProcessResponseNullMisconceptionMeansGuess(t *testing.T) {
	client := &llm.MockClient{Response: `{"misconception_text": null}`}
	svc := NewMisconceptionService(client, &mockPersonalRepo{}, nil, zap.NewNop(), 0.6, 3)

	if got := svc.ProcessResponse(context.Background(), "l1", "gravity", incorrectEvent()); got != nil {
		t.Fatalf("expected nil for random guess, got %+v", got)
	}
}

func TestProcessResponseClassifierFailureDegrades(t *testing.T) {
	client := &llm.MockClient{Err: errors.New("llm down")}
	svc := NewMisconceptionService(client, &mockPersonalRepo{}, nil, zap.NewNop(), 0.6, 3)

	if got := svc.ProcessResponse(context.Background(), "l1", "gravity", incorrectEvent()); got != nil {
		t.Fatalf("expected nil when classifier unavailable, got %+v", got)
	}
}

func TestProcessResponseMalformedClassifierJSON(t *testing.T) {
	client := &llm.MockClient{Response: "sorry, I cannot help with that"}
	svc := NewMisconceptionService(client, &mockPersonalRepo{}, nil, zap.NewNop(), 0.6, 3)

	if got := svc.ProcessResponse(context.Background(), "l1", "gravity", incorrectEvent()); got != nil {
		t.Fatalf("expected nil on malformed output, got %+v", got)
	}
}

func TestProcessResponseInvalidSeverityFallsBackToMedium(t *testing.T) {
	client := &llm.MockClient{Response: `{"misconception_text": "off-scale severity", "confidence": 0.9, "severity": "catastrophic"}`}
	repo := &mockPersonalRepo{}
	svc := NewMisconceptionService(client, repo, nil, zap.NewNop(), 0.6, 3)

	got := svc.ProcessResponse(context.Background(), "l1", "gravity", incorrectEvent())
	if got == nil {
		t.Fatalf("expected detection")
	}
	if got.Severity != domain.SeverityMedium {
		t.Fatalf("expected severity normalized to medium, got %s", got.Severity)
	}
}

func TestTargetedQuestionCorrectAdvancesStreak(t *testing.T) {
	repo := &mockPersonalRepo{
		existing:  &domain.PersonalMisconception{ID: "mc-1", CorrectStreak: 2},
		resolveAt: 1,
	}
	svc := NewMisconceptionService(&llm.MockClient{}, repo, nil, zap.NewNop(), 0.6, 3)

	event := domain.QuizResponseEvent{
		QuestionID:          "q9",
		IsCorrect:           true,
		Confidence:          0.9,
		MisconceptionTarget: "Believes heavier objects fall faster",
	}
	if got := svc.ProcessResponse(context.Background(), "l1", "gravity", event); got != nil {
		t.Fatalf("expected no new detection on correct targeted answer")
	}
	if len(repo.corrects) != 1 || repo.corrects[0] != "mc-1" {
		t.Fatalf("expected streak advance on mc-1, got %v", repo.corrects)
	}
}

func TestTargetedQuestionIncorrectResetsStreak(t *testing.T) {
	client := &llm.MockClient{Response: `{"misconception_text": null}`}
	repo := &mockPersonalRepo{
		existing: &domain.PersonalMisconception{ID: "mc-1", CorrectStreak: 2},
	}
	svc := NewMisconceptionService(client, repo, nil, zap.NewNop(), 0.6, 3)

	event := incorrectEvent()
	event.MisconceptionTarget = "Believes heavier objects fall faster"

	svc.ProcessResponse(context.Background(), "l1", "gravity", event)
	if len(repo.streakResets) != 1 || repo.streakResets[0] != "mc-1" {
		t.Fatalf("expected streak reset on mc-1, got %v", repo.streakResets)
	}
}

func TestTargetedQuestionUnknownMisconceptionIsNoop(t *testing.T) {
	client := &llm.MockClient{Response: `{"misconception_text": null}`}
	repo := &mockPersonalRepo{}
	svc := NewMisconceptionService(client, repo, nil, zap.NewNop(), 0.6, 3)

	event := domain.QuizResponseEvent{
		QuestionID:          "q9",
		IsCorrect:           true,
		MisconceptionTarget: "never seen before",
	}
	svc.ProcessResponse(context.Background(), "l1", "gravity", event)
	if len(repo.corrects) != 0 || len(repo.streakResets) != 0 {
		t.Fatalf("expected no streak movement for unknown target")
	}
}
