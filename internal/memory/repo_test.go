package memory

import (
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestKVRoundtrip(t *testing.T) {
	s := newTestStore(t)

	if v, _ := s.GetKV("u1", "user", "city"); v != "" {
		t.Errorf("missing key = %q, want empty", v)
	}
	if err := s.SetKV("u1", "user", "city", "Питер"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetKV("u1", "user", "city"); v != "Питер" {
		t.Errorf("got %q", v)
	}
	// overwrite
	if err := s.SetKV("u1", "user", "city", "Москва"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetKV("u1", "user", "city"); v != "Москва" {
		t.Errorf("after overwrite got %q", v)
	}
	if err := s.DelKV("u1", "user", "city"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetKV("u1", "user", "city"); v != "" {
		t.Errorf("after delete got %q", v)
	}
}

func TestWorldCacheFreshness(t *testing.T) {
	s := newTestStore(t)

	if _, ok := s.WorldCache("spb_world", time.Minute); ok {
		t.Error("empty cache should miss")
	}
	if err := s.SetWorldCache("spb_world", []byte(`{"status":"ok"}`)); err != nil {
		t.Fatal(err)
	}
	raw, ok := s.WorldCache("spb_world", time.Minute)
	if !ok {
		t.Fatal("just-written entry should be a fresh hit")
	}
	if string(raw) != `{"status":"ok"}` {
		t.Errorf("payload = %s", raw)
	}
	// a negative ttl rejects any age
	if _, ok := s.WorldCache("spb_world", -time.Second); ok {
		t.Error("expired entry should miss")
	}
	if raw, ok := s.StaleWorldCache("spb_world"); !ok || len(raw) == 0 {
		t.Error("stale read should still return the payload")
	}
}

func TestFlirtLevelValidation(t *testing.T) {
	s := newTestStore(t)

	if lvl := s.FlirtLevel("u1"); lvl != FlirtOff {
		t.Errorf("default level = %q, want off", lvl)
	}
	if err := s.SetFlirtLevel("u1", "Romantic "); err != nil {
		t.Fatal(err)
	}
	if lvl := s.FlirtLevel("u1"); lvl != FlirtRomantic {
		t.Errorf("level = %q, want romantic", lvl)
	}
	// unknown value collapses to off
	if err := s.SetFlirtLevel("u1", "spicy"); err != nil {
		t.Fatal(err)
	}
	if lvl := s.FlirtLevel("u1"); lvl != FlirtOff {
		t.Errorf("level = %q, want off", lvl)
	}
}

func TestAdultAndConsentFlags(t *testing.T) {
	s := newTestStore(t)

	if s.AdultConfirmed("u1") || s.FlirtConsent("u1") {
		t.Error("flags should default to false")
	}
	if err := s.SetAdultConfirmed("u1", true); err != nil {
		t.Fatal(err)
	}
	if err := s.SetFlirtConsent("u1", true); err != nil {
		t.Fatal(err)
	}
	if !s.AdultConfirmed("u1") || !s.FlirtConsent("u1") {
		t.Error("flags should be true after set")
	}
	if err := s.SetFlirtConsent("u1", false); err != nil {
		t.Fatal(err)
	}
	if s.FlirtConsent("u1") {
		t.Error("consent should be false after revoke")
	}
}

func TestAffinityClamps(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetAffinity("u1", 500); err != nil {
		t.Fatal(err)
	}
	if got := s.Affinity("u1"); got != 100 {
		t.Errorf("set clamp high = %d, want 100", got)
	}
	if err := s.SetAffinity("u1", -500); err != nil {
		t.Fatal(err)
	}
	if got := s.Affinity("u1"); got != -100 {
		t.Errorf("set clamp low = %d, want -100", got)
	}

	// bumps work in a narrow band
	if err := s.SetAffinity("u1", 0); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 50; i++ {
		if err := s.BumpAffinity("u1", 3); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Affinity("u1"); got != 20 {
		t.Errorf("bump ceiling = %d, want 20", got)
	}
	for i := 0; i < 50; i++ {
		if err := s.BumpAffinity("u1", -3); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.Affinity("u1"); got != -5 {
		t.Errorf("bump floor = %d, want -5", got)
	}
}

func TestDisplayNameFilter(t *testing.T) {
	s := newTestStore(t)

	cases := []struct {
		name string
		want string
	}{
		{"Андрей", "Андрей"},
		{"запомнила", ""}, // known extractor misfire
		{"Ок", ""},        // suspicious regardless of case
		{"Я", ""},         // too short
		{"абвгдежзиклмнопрстуфхцчшщab", ""}, // too long
	}
	for _, tc := range cases {
		if err := s.SetDisplayName("u1", tc.name); err != nil {
			t.Fatal(err)
		}
		got := s.DisplayName("u1")
		if got != tc.want {
			t.Errorf("SetDisplayName(%q): got %q, want %q", tc.name, got, tc.want)
		}
		_ = s.DelKV("u1", "user", "display_name")
	}
}

func TestSetFacts(t *testing.T) {
	s := newTestStore(t)

	if err := s.AddToSetFact("u1", "likes", "розы"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddToSetFact("u1", "likes", "кофе"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddToSetFact("u1", "likes", "розы"); err != nil {
		t.Fatal(err)
	}
	got := s.SetFact("u1", "likes")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (%v)", len(got), got)
	}

	if err := s.RemoveSetFact("u1", "likes", "розы"); err != nil {
		t.Fatal(err)
	}
	got = s.SetFact("u1", "likes")
	if len(got) != 1 || got[0] != "кофе" {
		t.Errorf("after remove: %v", got)
	}

	if err := s.RemoveSetFact("u1", "likes", "кофе"); err != nil {
		t.Fatal(err)
	}
	if got := s.SetFact("u1", "likes"); len(got) != 0 {
		t.Errorf("after final remove: %v", got)
	}
}

func TestDialogStateFreshWindow(t *testing.T) {
	s := newTestStore(t)
	now := time.Now()

	if err := s.SetDialogState("u1", "weather", "tomorrow", now.Add(-60*time.Second)); err != nil {
		t.Fatal(err)
	}
	st, ok := s.FreshDialogState("u1", now, 180*time.Second)
	if !ok {
		t.Fatal("state within window should be fresh")
	}
	if st.Intent != "weather" || st.Payload != "tomorrow" {
		t.Errorf("state = %+v", st)
	}

	if err := s.SetDialogState("u1", "weather", "", now.Add(-200*time.Second)); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.FreshDialogState("u1", now, 180*time.Second); ok {
		t.Error("stale state should not be fresh")
	}

	if err := s.ClearDialogState("u1"); err != nil {
		t.Fatal(err)
	}
	if st := s.GetDialogState("u1"); st.Intent != "" {
		t.Errorf("after clear: %+v", st)
	}
}

func TestTurnCounter(t *testing.T) {
	s := newTestStore(t)

	if got := s.Turn("u1"); got != 0 {
		t.Errorf("initial turn = %d", got)
	}
	for i := 1; i <= 3; i++ {
		n, err := s.IncTurn("u1")
		if err != nil {
			t.Fatal(err)
		}
		if n != i {
			t.Errorf("IncTurn #%d = %d", i, n)
		}
	}
	// counters are per-user
	if got := s.Turn("u2"); got != 0 {
		t.Errorf("other user turn = %d", got)
	}
}

func TestGreetCounters(t *testing.T) {
	s := newTestStore(t)
	today := time.Now()

	if got := s.DailyGreetCount("u1", today); got != 0 {
		t.Errorf("initial count = %d", got)
	}
	for i := 0; i < 2; i++ {
		if err := s.IncDailyGreet("u1", today); err != nil {
			t.Fatal(err)
		}
	}
	if got := s.DailyGreetCount("u1", today); got != 2 {
		t.Errorf("count = %d, want 2", got)
	}
	// different day keys do not collide
	if got := s.DailyGreetCount("u1", today.AddDate(0, 0, 1)); got != 0 {
		t.Errorf("tomorrow count = %d, want 0", got)
	}
}

func TestResetUser(t *testing.T) {
	s := newTestStore(t)

	if err := s.SetKV("u1", "user", "display_name", "Андрей"); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMessage("u1", "user", "привет"); err != nil {
		t.Fatal(err)
	}
	if err := s.UpsertFact("u1", FactInput{Predicate: "age", Object: "30"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.AddEpisode("u1", "t", "s", 1, 5); err != nil {
		t.Fatal(err)
	}

	if err := s.ResetUser("u1"); err != nil {
		t.Fatal(err)
	}
	if v, _ := s.GetKV("u1", "user", "display_name"); v != "" {
		t.Error("kv survived reset")
	}
	msgs, _ := s.RecentMessages("u1", 10)
	if len(msgs) != 0 {
		t.Error("messages survived reset")
	}
	facts, _ := s.Facts("u1")
	if len(facts) != 0 {
		t.Error("facts survived reset")
	}
}
