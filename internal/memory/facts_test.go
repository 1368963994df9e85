package memory

import (
	"testing"
	"time"
)

func TestUpsertFactConfidenceOnlyRises(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertFact("u1", FactInput{Predicate: "city", Object: "Питер", Confidence: 0.9}); err != nil {
		t.Fatal(err)
	}
	// re-assert with lower confidence: stored value must not drop
	if err := s.UpsertFact("u1", FactInput{Predicate: "city", Object: "Питер", Confidence: 0.5}); err != nil {
		t.Fatal(err)
	}
	facts, err := s.Facts("u1", "city")
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 1 {
		t.Fatalf("len = %d, want 1", len(facts))
	}
	if facts[0].Confidence != 0.9 {
		t.Errorf("confidence = %v, want 0.9", facts[0].Confidence)
	}

	// higher confidence does win
	if err := s.UpsertFact("u1", FactInput{Predicate: "city", Object: "Питер", Confidence: 0.95}); err != nil {
		t.Fatal(err)
	}
	facts, _ = s.Facts("u1", "city")
	if facts[0].Confidence != 0.95 {
		t.Errorf("confidence = %v, want 0.95", facts[0].Confidence)
	}
}

func TestFactsUniquePerTriple(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertFact("u1", FactInput{Predicate: "hobby", Object: "шахматы"}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertFact("u1", FactInput{Predicate: "hobby", Object: "шахматы"}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertFact("u1", FactInput{Predicate: "hobby", Object: "бег"}); err != nil {
		t.Fatal(err)
	}
	facts, err := s.Facts("u1", "hobby")
	if err != nil {
		t.Fatal(err)
	}
	if len(facts) != 2 {
		t.Errorf("len = %d, want 2 distinct objects", len(facts))
	}
}

func TestTopFactsPrefersConfident(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertFact("u1", FactInput{Predicate: "car_model", Object: "octavia", Confidence: 0.95}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertFact("u1", FactInput{Predicate: "mood", Object: "tired", Confidence: 0.3}); err != nil {
		t.Fatal(err)
	}
	top, err := s.TopFacts("u1", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 {
		t.Fatalf("len = %d, want 1", len(top))
	}
	if top[0].Predicate != "car_model" {
		t.Errorf("top fact = %q, want car_model", top[0].Predicate)
	}
}

func TestPurgeExpiredFacts(t *testing.T) {
	s := newTestStore(t)

	if err := s.UpsertFact("u1", FactInput{Predicate: "mood", Object: "tired", TTL: time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertFact("u1", FactInput{Predicate: "city", Object: "Питер"}); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	n, err := s.PurgeExpiredFacts()
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("purged %d, want 1", n)
	}
	facts, _ := s.Facts("u1")
	if len(facts) != 1 || facts[0].Predicate != "city" {
		t.Errorf("remaining facts: %+v", facts)
	}
}

func TestHistoryRecentOrder(t *testing.T) {
	s := newTestStore(t)

	turns := []struct{ role, content string }{
		{"user", "привет"},
		{"assistant", "Привет! Как дела?"},
		{"user", "нормально, работаю"},
	}
	for _, turn := range turns {
		if err := s.AddMessage("u1", turn.role, turn.content); err != nil {
			t.Fatal(err)
		}
	}

	msgs, err := s.RecentMessages("u1", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	// chronological order, newest last
	if msgs[0].Content != "Привет! Как дела?" || msgs[1].Content != "нормально, работаю" {
		t.Errorf("order wrong: %q, %q", msgs[0].Content, msgs[1].Content)
	}
}

func TestSearchMessages(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddMessage("u1", "user", "вчера купил новые лыжи"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMessage("u1", "user", "сегодня хорошая погода"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMessage("u2", "user", "лыжи это здорово"); err != nil {
		t.Fatal(err)
	}

	msgs, err := s.SearchMessages("u1", "лыжи", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 1 {
		t.Fatalf("len = %d, want 1 (%+v)", len(msgs), msgs)
	}
	if msgs[0].Content != "вчера купил новые лыжи" {
		t.Errorf("got %q", msgs[0].Content)
	}
}

func TestEpisodesAddAndSearch(t *testing.T) {
	s := newTestStore(t)

	id, err := s.AddEpisode("u1", "Поездка в горы", "Пользователь рассказал про поездку на лыжи в Хибины.", 1, 20)
	if err != nil {
		t.Fatal(err)
	}
	if id == "" {
		t.Fatal("empty episode id")
	}
	if _, err := s.AddEpisode("u2", "Другое", "Чужой эпизод.", 1, 3); err != nil {
		t.Fatal(err)
	}

	eps, err := s.SearchEpisodes("u1", "лыжи", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(eps) != 1 {
		t.Fatalf("len = %d, want 1 (%+v)", len(eps), eps)
	}
	if eps[0].Title != "Поездка в горы" {
		t.Errorf("title = %q", eps[0].Title)
	}

	recent, err := s.RecentEpisodes("u1", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != 1 {
		t.Errorf("recent len = %d", len(recent))
	}
}

func TestLegacyColumnMigration(t *testing.T) {
	dir := t.TempDir()
	dbPath := dir + "/legacy.db"

	// first open creates the schema
	s, err := NewStore(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	// simulate a pre-migration database
	if _, err := s.db.Exec(`ALTER TABLE memories DROP COLUMN updated_at`); err != nil {
		t.Skipf("sqlite build without DROP COLUMN: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s2, err := NewStore(dbPath)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	has, err := s2.hasColumn("memories", "updated_at")
	if err != nil {
		t.Fatal(err)
	}
	if !has {
		t.Error("updated_at column not restored by migration")
	}
}
