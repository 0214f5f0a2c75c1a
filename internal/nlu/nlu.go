package nlu

import (
	"regexp"
	"strings"
)

type Intent string

const (
	WaterReminder Intent = "water_reminder"
	JournalEntry  Intent = "journal_entry"
	SetReminder   Intent = "set_reminder"
	AddTodo       Intent = "add_todo"
	ListReminders Intent = "list_reminders"
	ListTodos     Intent = "list_todos"
	OpenYoutube   Intent = "open_youtube"
	CurrentTime   Intent = "current_time"
	Greeting      Intent = "greeting"
	Fallback      Intent = "fallback"
)

// Entity keys filled by the extractors.
const (
	EntityTask = "task"
	EntityTime = "time"
	EntityItem = "item"
	EntityText = "text"
)

type Result struct {
	Intent   Intent            `json:"intent"`
	Entities map[string]string `json:"entities"`
	Query    string            `json:"query"`
}

// Input is a transcript prepared for matching.
type Input struct {
	Raw   string // verbatim transcript
	Text  string // trimmed, whitespace runs collapsed
	Lower string // Text lower-cased
}

// Rule pairs an intent with the predicate that recognizes it and extracts
// its entities.
type Rule struct {
	Intent Intent
	Match  func(in Input) (map[string]string, bool)
}

// Matcher classifies transcripts by walking its rules in order. The order
// matters: later rules assume earlier ones did not match.
type Matcher struct {
	rules []Rule
}

func NewMatcher() *Matcher {
	return &Matcher{rules: DefaultRules()}
}

func NewMatcherWithRules(rules []Rule) *Matcher {
	return &Matcher{rules: append([]Rule(nil), rules...)}
}

func (m *Matcher) Match(transcript string) Result {
	text := normalize(transcript)
	in := Input{Raw: transcript, Text: text, Lower: strings.ToLower(text)}

	for _, r := range m.rules {
		if ents, ok := r.Match(in); ok {
			return Result{
				Intent:   r.Intent,
				Entities: ents,
				Query:    transcript,
			}
		}
	}

	return Result{
		Intent: Fallback,
		Query:  transcript,
	}
}

var (
	reminderRe      = regexp.MustCompile(`(?i)remind me to (.+) at (.+)`)
	todoRe          = regexp.MustCompile(`(?i)add (.+) to (my )?(todo|to-do|to do) list`)
	trailingClockRe = regexp.MustCompile(`^\s+at\s+\S`)
)

const waterPhrase = "remind me to drink water"

func DefaultRules() []Rule {
	return []Rule{
		{Intent: WaterReminder, Match: matchWater},
		{Intent: JournalEntry, Match: matchJournal},
		{Intent: SetReminder, Match: matchReminder},
		{Intent: AddTodo, Match: matchTodo},
		{Intent: ListReminders, Match: contains("read my reminders")},
		{Intent: ListTodos, Match: contains("read my to-do", "read my todo")},
		{Intent: OpenYoutube, Match: contains("open youtube")},
		{Intent: CurrentTime, Match: contains("what time is it")},
		{Intent: Greeting, Match: contains("hello")},
	}
}

// matchWater accepts the bare phrase only; "remind me to drink water at 5:00"
// belongs to the generic reminder rule.
func matchWater(in Input) (map[string]string, bool) {
	idx := strings.Index(in.Lower, waterPhrase)
	if idx < 0 {
		return nil, false
	}
	if trailingClockRe.MatchString(in.Lower[idx+len(waterPhrase):]) {
		return nil, false
	}
	return nil, true
}

func matchJournal(in Input) (map[string]string, bool) {
	if !strings.Contains(in.Lower, "journal this") {
		return nil, false
	}
	return map[string]string{EntityText: in.Raw}, true
}

func matchReminder(in Input) (map[string]string, bool) {
	m := reminderRe.FindStringSubmatch(in.Text)
	if m == nil {
		return nil, false
	}

	task := strings.TrimSpace(m[1])
	if task == "" {
		return nil, false
	}

	return map[string]string{
		EntityTask: task,
		EntityTime: strings.TrimSpace(m[2]),
	}, true
}

func matchTodo(in Input) (map[string]string, bool) {
	m := todoRe.FindStringSubmatch(in.Text)
	if m == nil {
		return nil, false
	}

	item := strings.TrimSpace(m[1])
	if item == "" {
		return nil, false
	}

	return map[string]string{EntityItem: item}, true
}

func contains(phrases ...string) func(Input) (map[string]string, bool) {
	return func(in Input) (map[string]string, bool) {
		for _, p := range phrases {
			if strings.Contains(in.Lower, p) {
				return nil, true
			}
		}
		return nil, false
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
