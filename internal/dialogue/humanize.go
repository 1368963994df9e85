package dialogue

import (
	"bytes"
	"fmt"
	"log"
	"strings"
	"text/template"

	"github.com/ayalabs/aya/internal/memory"
	"github.com/ayalabs/aya/internal/policy"
)

// HumanizeInput carries everything the playbooks can mention.
type HumanizeInput struct {
	Intent      string
	Plan        policy.DialoguePlan
	PersonaName string
	UserName    string
	City        string
	LocalTime   string
	WeatherText string
	Facts       []memory.Fact
	Smalltalk   string
	PlanHint    string
}

type playbookVars struct {
	PersonaName  string
	NameHint     string
	City         string
	LocalTime    string
	WeatherText  string
	RecalledFact string
	Smalltalk    string
	PlanHint     string
	RainyOverlay string
}

var playbooks = map[string]*template.Template{}

func init() {
	raw := map[string]string{
		IntentGreeting:    "Привет{{.NameHint}}! Рада тебя видеть. Как ты",
		IntentWeather:     "Сейчас {{.WeatherText}} в {{.City}}.",
		IntentTime:        "Сейчас {{.LocalTime}} по времени {{.City}}.",
		IntentMemoryQuery: "Я помню, что {{.RecalledFact}}.",
		IntentSOS:         "Я рядом{{.NameHint}}. Дыши со мной: вдох на четыре счёта, выдох на шесть. Расскажи, что случилось",
		IntentSmalltalk:   "{{.RainyOverlay}}{{.Smalltalk}}",
		IntentFlirt:       "Мне нравится твой настрой{{.NameHint}} 🙂",
		IntentPlan:        "{{.RainyOverlay}}{{.PlanHint}}",
		"default":         "Я тебя слушаю{{.NameHint}}. Расскажи подробнее.",
	}
	for intent, text := range raw {
		playbooks[intent] = template.Must(template.New(intent).Parse(text))
	}
}

var followUpLines = map[string]string{
	"ask_name":        "Как мне тебя называть?",
	"offer_plan":      "Хочешь, придумаем план на вечер?",
	"invite_response": "Что думаешь?",
	"light_follow_up": "А у тебя как дела?",
}

// FollowUpAsks reports whether a follow-up strategy ends the reply with
// a question, which authorizes the ask for that turn.
func FollowUpAsks(strategy string) bool {
	if strategy == "grounding" {
		return true
	}
	_, ok := followUpLines[strategy]
	return ok
}

// Humanize renders a reply without the model: the playbook for the
// intent, filled from the plan, persona and recalled facts. Used when
// the model is down or in demo mode.
func Humanize(in HumanizeInput) string {
	vars := playbookVars{
		PersonaName:  in.PersonaName,
		City:         in.City,
		LocalTime:    in.LocalTime,
		WeatherText:  in.WeatherText,
		RecalledFact: recalledFact(in.Facts),
		Smalltalk:    in.Smalltalk,
		PlanHint:     in.PlanHint,
	}
	if in.UserName != "" {
		vars.NameHint = ", " + in.UserName
	}
	if vars.Smalltalk == "" {
		vars.Smalltalk = "Понимаю. Я рядом."
	}
	if vars.PlanHint == "" {
		vars.PlanHint = "Можем начать с чего-то маленького: чай, плед и один хороший трек."
	}
	if vars.WeatherText == "" {
		vars.WeatherText = "спокойно на улице"
	}
	if imagery, ok := in.Plan.StyleMods["imagery"]; ok && imagery == "indoors" {
		vars.RainyOverlay = fmt.Sprintf("Сейчас %s, так что ", vars.WeatherText)
	}

	tmpl, ok := playbooks[in.Intent]
	if !ok {
		tmpl = playbooks["default"]
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		log.Printf("[dialogue] playbook %s render failed: %v", in.Intent, err)
		return "Я тебя слушаю. Расскажи подробнее."
	}
	out := strings.TrimSpace(buf.String())

	if line, ok := followUpLines[in.Plan.FollowUpStrategy]; ok && !strings.HasSuffix(out, "?") {
		out += " " + line
	} else if (in.Intent == IntentGreeting || in.Intent == IntentSOS) && !strings.HasSuffix(out, "?") {
		out += "?"
	}
	return out
}

// recalledFact picks the one fact worth saying out loud: health limits
// first, then identity basics, then whatever we are most sure of.
func recalledFact(facts []memory.Fact) string {
	if len(facts) == 0 {
		return "мы ещё собираем факты"
	}
	byPredicate := func(pred string) *memory.Fact {
		for i := range facts {
			if facts[i].Predicate == pred {
				return &facts[i]
			}
		}
		return nil
	}
	if f := byPredicate("intolerance"); f != nil {
		return fmt.Sprintf("тебе не подходит %s", f.Object)
	}
	if f := byPredicate("age"); f != nil {
		return fmt.Sprintf("тебе %s лет", f.Object)
	}
	if f := byPredicate("location"); f != nil {
		return fmt.Sprintf("ты из %s", f.Object)
	}
	if f := byPredicate("name"); f != nil {
		return fmt.Sprintf("ты представился как %s", f.Object)
	}
	best := facts[0]
	for _, f := range facts[1:] {
		if f.Confidence > best.Confidence {
			best = f
		}
	}
	return fmt.Sprintf("ты рассказывал про %s", best.Object)
}

// WeatherLine formats a snapshot into the phrase the playbooks use.
func WeatherLine(tempC *float64, rainy bool) string {
	cond := "без осадков"
	if rainy {
		cond = "дождливо"
	}
	if tempC == nil {
		if rainy {
			return "дождливо"
		}
		return "спокойно на улице"
	}
	return fmt.Sprintf("%.0f°C и %s", *tempC, cond)
}
