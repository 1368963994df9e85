package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
)

// ChatClient is the slice of the model client the extraction pipeline
// needs. Kept minimal so tests can fake it.
type ChatClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

const extractSystem = `Ты — парсер фактов. Верни ТОЛЬКО JSON-массив без текста. ` +
	`Каждый элемент: {predicate, object, dtype, unit?, confidence}. ` +
	`predicate — короткий латинский снейк-кейс (например: age, job_title, company, city, hobby, favorite_flower, car_model). ` +
	`dtype ∈ {str,int,float,bool,date}. object — значение в этом типе. unit — опционально. ` +
	`Не придумывай факты. Уверенность от 0 до 1. Без повторов.`

const extractUserTmpl = "Извлеки факты из реплики пользователя:\nTEXT: ```%s```\nЕсли фактов нет — верни пустой массив []."

// \b and \w in Go regexp are ASCII-only and never fire next to
// Cyrillic, so the rules use explicit \p{L} anchors instead.
var (
	ageRe         = regexp.MustCompile(`(?i)(?:^|[^\p{L}\d])мне\s+(\d{1,2})(?:\s*(?:год(?:а|ов)?|лет))?(?:[^\d]|$)`)
	nameRe        = regexp.MustCompile(`(?i)меня\s+зовут\s+([\p{L}][\p{L}-]{1,23})`)
	nicknameRe    = regexp.MustCompile(`(?i)(?:зови|называй)\s+меня\s+([\p{L}][\p{L}-]{1,23})`)
	locationRe    = regexp.MustCompile(`(?i)(?:(?:^|[^\p{L}])я\s+из|живу\s+в)\s+([\p{L}][\p{L}-]{1,39})`)
	intoleranceRe = regexp.MustCompile(`(?i)непереносимость\s+([\p{L}][\p{L}-]{1,39})`)
	formalityRe   = regexp.MustCompile(`(?i)(?:давай|можно|лучше)\s+на\s+(ты|вы)`)
)

// Interest tags mined from casual mentions. Low confidence, the model
// pass refines them when it is available.
var interestRules = []struct {
	tag string
	re  *regexp.Regexp
}{
	{"bike", regexp.MustCompile(`(?i)велосипед|покатушк`)},
	{"films", regexp.MustCompile(`(?i)фильм|кино|сериал`)},
	{"music", regexp.MustCompile(`(?i)музык|плейлист|концерт`)},
	{"tea", regexp.MustCompile(`(?i)(?:^|[^\p{L}])ча[йяё]`)},
	{"sports", regexp.MustCompile(`(?i)спорт|тренир|пробежк`)},
}

// ruleFacts runs the deterministic patterns that must work even when
// the model is unavailable. Age also implies adulthood.
func ruleFacts(text string) []FactInput {
	var out []FactInput
	text = strings.TrimSpace(text)
	if text == "" {
		return out
	}
	if m := ageRe.FindStringSubmatch(text); m != nil {
		age, err := strconv.Atoi(m[1])
		if err == nil && age >= 1 && age <= 99 {
			out = append(out, FactInput{
				Predicate: "age", Object: strconv.Itoa(age),
				DType: "int", Unit: "years", Confidence: 0.98,
			})
			if age >= 18 {
				out = append(out, FactInput{
					Predicate: "adult", Object: "true",
					DType: "bool", Confidence: 0.95,
				})
			}
		}
	}
	if m := nameRe.FindStringSubmatch(text); m != nil {
		out = append(out, FactInput{
			Predicate: "name", Object: m[1], DType: "str", Confidence: 0.95,
		})
	}
	if m := nicknameRe.FindStringSubmatch(text); m != nil {
		out = append(out, FactInput{
			Predicate: "nickname", Object: m[1], DType: "str", Confidence: 0.9,
		})
	}
	if m := locationRe.FindStringSubmatch(text); m != nil {
		out = append(out, FactInput{
			Predicate: "location", Object: m[1], DType: "str", Confidence: 0.8,
		})
	}
	if m := intoleranceRe.FindStringSubmatch(text); m != nil {
		out = append(out, FactInput{
			Predicate: "intolerance", Object: strings.ToLower(m[1]),
			DType: "str", Confidence: 0.9,
		})
	}
	if m := formalityRe.FindStringSubmatch(text); m != nil {
		form := "ty"
		if strings.EqualFold(m[1], "вы") {
			form = "vy"
		}
		out = append(out, FactInput{
			Predicate: "formality", Object: form, DType: "str", Confidence: 0.9,
		})
	}
	for _, ir := range interestRules {
		if ir.re.MatchString(text) {
			out = append(out, FactInput{
				Predicate: "interest", Object: ir.tag, DType: "str", Confidence: 0.6,
			})
		}
	}
	return out
}

type rawFact struct {
	Predicate  string          `json:"predicate"`
	Object     json.RawMessage `json:"object"`
	DType      string          `json:"dtype"`
	Unit       string          `json:"unit"`
	Confidence float64         `json:"confidence"`
}

// ExtractFacts combines rule-based and model-based extraction and
// deduplicates by (predicate, object). Model failures are logged and
// swallowed so the rule facts always survive.
func ExtractFacts(ctx context.Context, text string, llm ChatClient) []FactInput {
	facts := ruleFacts(text)

	if llm != nil {
		resp, err := llm.Complete(ctx, extractSystem, fmt.Sprintf(extractUserTmpl, text))
		if err != nil {
			log.Printf("[memory] fact extraction model call failed: %v", err)
		} else if parsed := parseFactArray(resp); parsed != nil {
			facts = append(facts, parsed...)
		}
	}

	seen := make(map[string]bool, len(facts))
	uniq := facts[:0]
	for _, f := range facts {
		key := f.Predicate + "\x00" + f.Object
		if seen[key] {
			continue
		}
		seen[key] = true
		uniq = append(uniq, f)
	}
	return uniq
}

func parseFactArray(resp string) []FactInput {
	content := stripFence(resp)
	var raw []rawFact
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		log.Printf("[memory] fact extraction returned non-JSON output")
		return nil
	}
	out := make([]FactInput, 0, len(raw))
	for _, r := range raw {
		pred := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(r.Predicate)), " ", "_")
		if pred == "" || len(r.Object) == 0 {
			continue
		}
		obj, dtype := decodeObject(r.Object)
		if obj == "" {
			continue
		}
		if r.DType != "" {
			dtype = r.DType
		}
		conf := r.Confidence
		if conf <= 0 {
			conf = 0.7
		}
		out = append(out, FactInput{
			Predicate:  pred,
			Object:     obj,
			DType:      dtype,
			Unit:       r.Unit,
			Confidence: conf,
		})
	}
	return out
}

// decodeObject renders a JSON value as its storage string and infers
// the dtype when the model omitted it.
func decodeObject(raw json.RawMessage) (string, string) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", ""
	}
	switch t := v.(type) {
	case bool:
		return strconv.FormatBool(t), "bool"
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10), "int"
		}
		return strconv.FormatFloat(t, 'f', -1, 64), "float"
	case string:
		return strings.TrimSpace(t), "str"
	default:
		return "", ""
	}
}

// stripFence removes a markdown code fence the model may wrap JSON in.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.Trim(s, "` \n")
		s = strings.TrimPrefix(s, "json")
		s = strings.TrimSpace(s)
	}
	return s
}
