package dialogue

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/ayalabs/aya/internal/memory"
)

func newTestStore(t *testing.T) *memory.Store {
	t.Helper()
	store, err := memory.NewStore(filepath.Join(t.TempDir(), "aya.db"))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.EnsureUser("u1", "", "", "", ""); err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	return store
}

func TestDetectFlirtSignal(t *testing.T) {
	cases := []struct {
		text string
		want string
	}{
		{"", ""},
		{"стоп, без флирта", SignalStop},
		{"мне 16 лет", SignalAgeMinor},
		{"мне 25 лет", ""}, // plain age mention goes to fact extraction
		{"мне больше 18", SignalAgeOK},
		{"я совершеннолетний", SignalAgeOK},
		{"я несовершеннолетний", SignalAgeMinor},
		{"даю согласие на флирт", SignalConsent},
		{"поцелуй ниже", SignalSuggestive},
		{"давай пофлиртуем", SignalOpen},
		{"можно помягче?", SignalSofter},
		{"давай посмелее", SignalWarmer},
		{"сыграем сценку?", SignalRoleplay},
		{"🍑", SignalSuggestive},
		{"видел на pornhub", SignalExplicit},
		{"какая погода", ""},
	}
	for _, tc := range cases {
		if got := DetectFlirtSignal(tc.text); got != tc.want {
			t.Errorf("DetectFlirtSignal(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestStopWinsOverEverything(t *testing.T) {
	got := DetectFlirtSignal("хватит, стоп, хотя давай пофлиртуем 🍑")
	if got != SignalStop {
		t.Errorf("signal = %q, want stop", got)
	}
}

func TestFlirtStopResetsState(t *testing.T) {
	store := newTestStore(t)
	store.SetFlirtConsent("u1", true)
	store.SetFlirtLevel("u1", memory.FlirtRomantic)

	reply, err := ApplyFlirtSignal(store, "u1", SignalStop)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "нейтральный") {
		t.Errorf("reply = %q", reply)
	}
	if store.FlirtConsent("u1") {
		t.Error("consent should be revoked")
	}
	if lvl := store.FlirtLevel("u1"); lvl != memory.FlirtOff {
		t.Errorf("level = %q, want off", lvl)
	}
}

func TestFlirtMinorLocksDown(t *testing.T) {
	store := newTestStore(t)
	store.SetFlirtConsent("u1", true)
	store.SetFlirtLevel("u1", memory.FlirtSuggestive)

	reply, err := ApplyFlirtSignal(store, "u1", SignalAgeMinor)
	if err != nil {
		t.Fatal(err)
	}
	if reply == "" {
		t.Fatal("expected deterministic reply")
	}
	if store.FlirtConsent("u1") || store.FlirtLevel("u1") != memory.FlirtOff {
		t.Error("minor signal must land in off with consent revoked")
	}
}

func TestFlirtConsentOpensSoft(t *testing.T) {
	store := newTestStore(t)
	if _, err := ApplyFlirtSignal(store, "u1", SignalOpen); err != nil {
		t.Fatal(err)
	}
	if !store.FlirtConsent("u1") {
		t.Error("consent should be granted")
	}
	if lvl := store.FlirtLevel("u1"); lvl != memory.FlirtSoft {
		t.Errorf("level = %q, want soft", lvl)
	}
}

func TestFlirtWarmerCapsAtSuggestive(t *testing.T) {
	store := newTestStore(t)
	store.SetFlirtLevel("u1", memory.FlirtSuggestive)
	if _, err := ApplyFlirtSignal(store, "u1", SignalWarmer); err != nil {
		t.Fatal(err)
	}
	if lvl := store.FlirtLevel("u1"); lvl != memory.FlirtSuggestive {
		t.Errorf("level = %q, warmer must not escalate past suggestive", lvl)
	}
}

func TestFlirtWarmerStepsUpOne(t *testing.T) {
	store := newTestStore(t)
	store.SetFlirtLevel("u1", memory.FlirtSoft)
	if _, err := ApplyFlirtSignal(store, "u1", SignalWarmer); err != nil {
		t.Fatal(err)
	}
	if lvl := store.FlirtLevel("u1"); lvl != memory.FlirtRomantic {
		t.Errorf("level = %q, want romantic", lvl)
	}
}

func TestRoleplayNeedsAdultAndConsent(t *testing.T) {
	store := newTestStore(t)

	reply, err := ApplyFlirtSignal(store, "u1", SignalRoleplay)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "возраст") {
		t.Errorf("no-adult reply = %q", reply)
	}
	if lvl := store.FlirtLevel("u1"); lvl != memory.FlirtRomantic {
		t.Errorf("level = %q, off should redirect to romantic", lvl)
	}

	store.SetAdultConfirmed("u1", true)
	reply, err = ApplyFlirtSignal(store, "u1", SignalRoleplay)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "согласию") {
		t.Errorf("no-consent reply = %q", reply)
	}
	if lvl := store.FlirtLevel("u1"); lvl == memory.FlirtRoleplay {
		t.Error("roleplay entered without consent")
	}

	store.SetFlirtConsent("u1", true)
	if _, err := ApplyFlirtSignal(store, "u1", SignalRoleplay); err != nil {
		t.Fatal(err)
	}
	if lvl := store.FlirtLevel("u1"); lvl != memory.FlirtRoleplay {
		t.Errorf("level = %q, want roleplay", lvl)
	}
}

func TestExplicitDowngradesToHints(t *testing.T) {
	store := newTestStore(t)
	reply, err := ApplyFlirtSignal(store, "u1", SignalExplicit)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(reply, "намёками") {
		t.Errorf("reply = %q", reply)
	}
	if lvl := store.FlirtLevel("u1"); lvl != memory.FlirtSuggestive {
		t.Errorf("level = %q, want suggestive", lvl)
	}
}

func TestEmptySignalIsNoop(t *testing.T) {
	store := newTestStore(t)
	reply, err := ApplyFlirtSignal(store, "u1", "")
	if err != nil || reply != "" {
		t.Errorf("noop = (%q, %v)", reply, err)
	}
}
