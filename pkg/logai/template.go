// Package logai implements log analysis on top of query results: template
// mining, anomaly detection, clustering and summary statistics.
package logai

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/bascanada/logai-mcp/pkg/log/client"
)

// Wildcard is the placeholder used for variable tokens in templates.
const Wildcard = "<*>"

// Template is a mined log pattern with aggregated occurrence data.
type Template struct {
	ID        string         `json:"id"`
	Pattern   string         `json:"pattern"`
	Tokens    []string       `json:"-"`
	Count     int            `json:"count"`
	FirstSeen time.Time      `json:"firstSeen"`
	LastSeen  time.Time      `json:"lastSeen"`
	Levels    map[string]int `json:"levels,omitempty"`
	Example   string         `json:"example"`
}

// MinerOptions tunes the template mining tree.
type MinerOptions struct {
	// Depth is the number of leading tokens used to route messages into
	// groups before similarity matching.
	Depth int `json:"depth"`
	// SimilarityThreshold is the minimum ratio of matching tokens for a
	// message to join an existing template.
	SimilarityThreshold float64 `json:"similarityThreshold"`
	// MaxChildren caps the branching of each tree node; overflow tokens
	// are routed through a wildcard branch.
	MaxChildren int `json:"maxChildren"`
}

// DefaultMinerOptions returns the tuning used when the caller passes zero
// values.
func DefaultMinerOptions() MinerOptions {
	return MinerOptions{
		Depth:               4,
		SimilarityThreshold: 0.5,
		MaxChildren:         100,
	}
}

func (o MinerOptions) withDefaults() MinerOptions {
	def := DefaultMinerOptions()
	if o.Depth <= 0 {
		o.Depth = def.Depth
	}
	if o.SimilarityThreshold <= 0 || o.SimilarityThreshold > 1 {
		o.SimilarityThreshold = def.SimilarityThreshold
	}
	if o.MaxChildren <= 0 {
		o.MaxChildren = def.MaxChildren
	}
	return o
}

var numberToken = regexp.MustCompile(`^[+-]?\d+([.,:]\d+)*$`)

// looksVariable reports whether a token is almost certainly a parameter:
// numbers, hex ids, uuids and anything with an equals sign value.
func looksVariable(token string) bool {
	if numberToken.MatchString(token) {
		return true
	}
	if strings.Count(token, "-") == 4 && len(token) == 36 {
		return true
	}
	if len(token) >= 12 && isHex(token) {
		return true
	}
	return false
}

func isHex(s string) bool {
	for _, r := range s {
		if (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F') {
			continue
		}
		return false
	}
	return true
}

type minerNode struct {
	children map[string]*minerNode
	groups   []*Template
}

// Miner mines message templates from a log stream. It is not safe for
// concurrent use.
type Miner struct {
	options MinerOptions
	// roots keyed by token count, matching messages of different lengths
	// never share a template
	roots map[int]*minerNode

	templates []*Template
}

func NewMiner(options MinerOptions) *Miner {
	return &Miner{
		options: options.withDefaults(),
		roots:   make(map[int]*minerNode),
	}
}

func tokenize(message string) []string {
	return strings.Fields(message)
}

// Add routes one log entry through the tree, joining the best matching
// template or creating a new one.
func (m *Miner) Add(entry client.LogEntry) *Template {
	tokens := tokenize(entry.Message)
	if len(tokens) == 0 {
		return nil
	}

	root, ok := m.roots[len(tokens)]
	if !ok {
		root = &minerNode{children: make(map[string]*minerNode)}
		m.roots[len(tokens)] = root
	}

	node := root
	depth := m.options.Depth
	if depth > len(tokens) {
		depth = len(tokens)
	}

	for i := 0; i < depth; i++ {
		key := tokens[i]
		if looksVariable(key) {
			key = Wildcard
		}

		child, ok := node.children[key]
		if !ok {
			if len(node.children) >= m.options.MaxChildren {
				key = Wildcard
				if child, ok = node.children[key]; !ok {
					child = &minerNode{children: make(map[string]*minerNode)}
					node.children[key] = child
				}
			} else {
				child = &minerNode{children: make(map[string]*minerNode)}
				node.children[key] = child
			}
		}
		node = child
	}

	best, bestScore := m.bestMatch(node, tokens)
	if best == nil || bestScore < m.options.SimilarityThreshold {
		tpl := m.newTemplate(tokens, entry)
		node.groups = append(node.groups, tpl)
		m.templates = append(m.templates, tpl)
		return tpl
	}

	m.merge(best, tokens, entry)
	return best
}

func (m *Miner) bestMatch(node *minerNode, tokens []string) (*Template, float64) {
	var best *Template
	bestScore := -1.0

	for _, tpl := range node.groups {
		score := similarity(tpl.Tokens, tokens)
		if score > bestScore {
			best = tpl
			bestScore = score
		}
	}
	return best, bestScore
}

// similarity is the fraction of positions where the tokens agree, with
// wildcards counting as matches.
func similarity(a, b []string) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	matches := 0
	for i := range a {
		if a[i] == b[i] || a[i] == Wildcard {
			matches++
		}
	}
	return float64(matches) / float64(len(a))
}

func (m *Miner) newTemplate(tokens []string, entry client.LogEntry) *Template {
	normalized := make([]string, len(tokens))
	for i, tok := range tokens {
		if looksVariable(tok) {
			normalized[i] = Wildcard
		} else {
			normalized[i] = tok
		}
	}

	tpl := &Template{
		Tokens:    normalized,
		Count:     1,
		FirstSeen: entry.Timestamp,
		LastSeen:  entry.Timestamp,
		Levels:    make(map[string]int),
		Example:   entry.Message,
	}
	if entry.Level != "" {
		tpl.Levels[normalizeLevel(entry.Level)] = 1
	}
	tpl.refreshPattern()
	return tpl
}

func (m *Miner) merge(tpl *Template, tokens []string, entry client.LogEntry) {
	changed := false
	for i := range tpl.Tokens {
		if tpl.Tokens[i] != Wildcard && tpl.Tokens[i] != tokens[i] {
			tpl.Tokens[i] = Wildcard
			changed = true
		}
	}
	if changed {
		tpl.refreshPattern()
	}

	tpl.Count++
	if entry.Level != "" {
		tpl.Levels[normalizeLevel(entry.Level)]++
	}
	if !entry.Timestamp.IsZero() {
		if tpl.FirstSeen.IsZero() || entry.Timestamp.Before(tpl.FirstSeen) {
			tpl.FirstSeen = entry.Timestamp
		}
		if entry.Timestamp.After(tpl.LastSeen) {
			tpl.LastSeen = entry.Timestamp
		}
	}
}

func (t *Template) refreshPattern() {
	t.Pattern = strings.Join(t.Tokens, " ")
	h := fnv.New64a()
	h.Write([]byte(t.Pattern))
	t.ID = fmt.Sprintf("t%016x", h.Sum64())
}

// Matches reports whether a message fits the template token for token.
func (t *Template) Matches(message string) bool {
	tokens := tokenize(message)
	if len(tokens) != len(t.Tokens) {
		return false
	}
	for i := range tokens {
		if t.Tokens[i] != Wildcard && t.Tokens[i] != tokens[i] {
			return false
		}
	}
	return true
}

// Templates returns every mined template ordered by descending count.
func (m *Miner) Templates() []*Template {
	out := make([]*Template, len(m.templates))
	copy(out, m.templates)
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Pattern < out[j].Pattern
	})
	return out
}

// Mine runs every entry through a fresh miner and returns the templates.
func Mine(entries []client.LogEntry, options MinerOptions) []*Template {
	miner := NewMiner(options)
	for _, entry := range entries {
		miner.Add(entry)
	}
	return miner.Templates()
}

func normalizeLevel(level string) string {
	return strings.ToLower(strings.TrimSpace(level))
}
