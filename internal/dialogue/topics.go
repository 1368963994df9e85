package dialogue

import (
	"regexp"
	"sync"
	"time"
)

const (
	maxThreads          = 6
	defaultHookCooldown = 180 * time.Second
)

type thread struct {
	key       string
	prompt    string
	lastAsked time.Time
}

// TopicThreader remembers conversation threads worth returning to and
// offers a follow-up hook once a thread has cooled down. One instance
// per chat session.
type TopicThreader struct {
	mu       sync.Mutex
	cooldown time.Duration
	threads  []thread
}

var topicTriggers = []struct {
	key    string
	re     *regexp.Regexp
	prompt string
}{
	{"project_bot", regexp.MustCompile(`(?i)бот\w*|telegram`), "Кстати, как там твой бот поживает?"},
	{"study", regexp.MustCompile(`(?i)учеб\w*|сесс\w*|курс\w*|универ\w*|лекци\w*`), "Как продвигается учёба?"},
	{"fitness", regexp.MustCompile(`(?i)спорт\w*|вел\w*|тренир\w*|бег\w*|зала?|пульс\w*`), "Ты сегодня тренировался?"},
	{"media", regexp.MustCompile(`(?i)фильм\w*|сериал\w*|книг\w*|читал\w*|смотрел\w*`), "Досмотрел то, о чём рассказывал?"},
	{"music", regexp.MustCompile(`(?i)музык\w*|плейлист\w*|трек\w*|альбом\w*`), "Нашёл что-нибудь новое в музыке?"},
}

func NewTopicThreader(cooldown time.Duration) *TopicThreader {
	if cooldown <= 0 {
		cooldown = defaultHookCooldown
	}
	return &TopicThreader{cooldown: cooldown}
}

// Observe scans a user message and opens threads for any trigger hit.
func (t *TopicThreader) Observe(text string, now time.Time) {
	for _, tr := range topicTriggers {
		if tr.re.MatchString(text) {
			t.push(tr.key, tr.prompt, now)
		}
	}
}

// push reopens an existing thread or appends a new one, evicting the
// oldest past the cap.
func (t *TopicThreader) push(key, prompt string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.threads {
		if t.threads[i].key == key {
			t.threads[i].lastAsked = now
			return
		}
	}
	t.threads = append(t.threads, thread{key: key, prompt: prompt, lastAsked: now})
	if len(t.threads) > maxThreads {
		t.threads = t.threads[len(t.threads)-maxThreads:]
	}
}

// MaybeHook returns a follow-up prompt for the first thread past its
// cooldown, stamping it so the same thread is not asked again soon.
func (t *TopicThreader) MaybeHook(now time.Time) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.threads {
		if now.Sub(t.threads[i].lastAsked) >= t.cooldown {
			t.threads[i].lastAsked = now
			return t.threads[i].prompt
		}
	}
	return ""
}

// Active lists the open thread keys, oldest first.
func (t *TopicThreader) Active() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	keys := make([]string, 0, len(t.threads))
	for _, th := range t.threads {
		keys = append(keys, th.key)
	}
	return keys
}
