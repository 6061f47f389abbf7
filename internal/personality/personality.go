// Package personality holds the immutable registry of named system prompts
// that a trigger's leading identifier resolves to.
package personality

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Personality is one named system-prompt profile.
type Personality struct {
	Name        string `yaml:"name"         json:"name"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Description string `yaml:"description"  json:"description"`
	Prompt      string `yaml:"prompt"       json:"-"`
}

// Label returns DisplayName, falling back to the title-cased Name.
func (p Personality) Label() string {
	if strings.TrimSpace(p.DisplayName) != "" {
		return p.DisplayName
	}
	return cases.Title(language.Und).String(p.Name)
}

// NameClass is the character class a personality name is drawn from. The
// multi-personality trigger matches its leading identifier with it, so every
// registered name stays invocable.
const NameClass = `[a-z0-9_-]`

var validName = regexp.MustCompile(`^` + NameClass + `+$`)

// Registry is a read-only name → Personality map. It is safe for concurrent
// use because it is never mutated after construction.
type Registry struct {
	byName map[string]Personality
	names  []string
	def    string
}

var (
	// ErrEmptyRegistry is returned when no personality is defined.
	ErrEmptyRegistry = errors.New("personality registry is empty")
	// ErrUnknownDefault is returned when the default names no entry.
	ErrUnknownDefault = errors.New("default personality is not defined")
)

// New builds a registry. Names are folded to lower case; the first entry is
// the default when defaultName is empty.
func New(list []Personality, defaultName string) (*Registry, error) {
	if len(list) == 0 {
		return nil, ErrEmptyRegistry
	}
	r := &Registry{byName: make(map[string]Personality, len(list))}
	for i, p := range list {
		key := strings.ToLower(strings.TrimSpace(p.Name))
		if key == "" {
			return nil, fmt.Errorf("personality %d: name is required", i)
		}
		if !validName.MatchString(key) {
			return nil, fmt.Errorf("personality %q: name may only contain letters, digits, '_' and '-'", key)
		}
		if strings.TrimSpace(p.Prompt) == "" {
			return nil, fmt.Errorf("personality %q: prompt is required", key)
		}
		if _, dup := r.byName[key]; dup {
			return nil, fmt.Errorf("personality %q defined twice", key)
		}
		p.Name = key
		p.Prompt = strings.TrimSpace(p.Prompt)
		r.byName[key] = p
		r.names = append(r.names, key)
	}
	sort.Strings(r.names)

	r.def = strings.ToLower(strings.TrimSpace(defaultName))
	if r.def == "" {
		r.def = strings.ToLower(strings.TrimSpace(list[0].Name))
	}
	if _, ok := r.byName[r.def]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDefault, r.def)
	}
	return r, nil
}

// Get resolves name case-insensitively.
func (r *Registry) Get(name string) (Personality, bool) {
	p, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return p, ok
}

// Names returns the sorted personality names. The slice is a copy.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Default returns the personality used when no name is given.
func (r *Registry) Default() Personality { return r.byName[r.def] }

// Len returns the number of personalities.
func (r *Registry) Len() int { return len(r.names) }

// Suggest returns the names containing partial (case-insensitive), sorted.
// An empty partial matches everything.
func (r *Registry) Suggest(partial string) []string {
	partial = strings.ToLower(strings.TrimSpace(partial))
	var out []string
	for _, n := range r.names {
		if strings.Contains(n, partial) {
			out = append(out, n)
		}
	}
	return out
}

// file is the on-disk YAML layout.
type file struct {
	Default       string        `yaml:"default"`
	Personalities []Personality `yaml:"personalities"`
}

// Load reads a registry from a YAML file. An empty path yields Defaults.
func Load(path string) (*Registry, error) {
	if strings.TrimSpace(path) == "" {
		return Defaults(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read personalities: %w", err)
	}
	return Parse(raw)
}

// Parse decodes a YAML registry document.
func Parse(raw []byte) (*Registry, error) {
	var f file
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse personalities: %w", err)
	}
	return New(f.Personalities, f.Default)
}

// Defaults returns the built-in registry.
func Defaults() *Registry {
	r, err := New(builtin, "karigpt")
	if err != nil {
		panic(err)
	}
	return r
}

var builtin = []Personality{
	{
		Name:        "karigpt",
		DisplayName: "KariGPT",
		Description: "Casual, friendly helper who talks like a Gen Z teen and gets straight to the point.",
		Prompt: `KariGPT is an AI assistant that talks like an American Gen Z teenage boy: casual, friendly, and easy to understand without sounding forced or cringe.
It focuses on being genuinely helpful first, then adds personality through light slang, humor, and a chill tone.
Answers are clear, practical, and straight to the point, with examples or step-by-step help when needed.
KariGPT avoids sounding robotic, corporate, or preachy, and explains things like it's helping a friend.
It adapts its energy to the user, staying short and simple unless more depth is asked for.
The bot admits when it doesn't know something and never pretends to be right.
It follows strong safety boundaries, avoiding harmful, illegal, or inappropriate content.
**Important:** Always respond **only in plain text**, without extra commentary, formatting, or notes.
Overall, KariGPT aims to feel smart, relatable, and trustworthy, like the one friend who actually explains things well.`,
	},
	{
		Name:        "tag",
		DisplayName: "Tag",
		Description: "Calm, curious programmer; precise on informatics, philosophical on everything else.",
		Prompt: `Tag is an AI assistant who thinks like a curious and kind programmer: calm, thoughtful, and genuinely enthusiastic about informatics.
He enjoys explaining technical concepts clearly, breaking down complex ideas into understandable pieces without talking down to the user.
When questions are related to programming, systems, or informatics, Tag gives precise, structured, and practical answers, often with examples or clear reasoning.
If a question falls outside informatics, he responds in a more philosophical way, reflecting thoughtfully rather than forcing a technical answer.
Tag avoids sounding arrogant, robotic, or dismissive, and prefers clarity over showing off knowledge.
He is honest about uncertainty and values learning as a shared process.
He respects strong safety boundaries and avoids harmful, misleading, or inappropriate content.
**Important:** Always respond **only in plain text**, without extra commentary, formatting, or notes.
Overall, Tag aims to feel intelligent, calm, and insightful, like a thoughtful developer who enjoys both code and deeper questions.`,
	},
	{
		Name:        "oracle",
		DisplayName: "Oracle",
		Description: "An ancient oracle speaking in short, cryptic and playful prophecies.",
		Prompt: `You are an ancient oracle.
You speak in short, mysterious prophecies.
You are wise, slightly sarcastic, and funny.
You never give direct answers.
You sound cryptic but playful.
Do not mention being an AI.`,
	},
}
