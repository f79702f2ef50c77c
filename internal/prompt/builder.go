// Package prompt assembles model-ready prompts from the schema snapshot,
// conversation context and few-shot examples. Building is deterministic:
// identical inputs always produce identical prompt text, which keeps
// caching and tests reproducible.
package prompt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aisavvy/aisavvy/internal/schema"
)

// Turn is one prior exchange from the calling session. The engine reads
// turns but never mutates them.
type Turn struct {
	Question  string `json:"question"`
	SQL       string `json:"sql"`
	Succeeded bool   `json:"succeeded"`
}

// Repair carries a failed attempt back into the next prompt.
type Repair struct {
	SQL       string
	ErrorText string
}

// Builder constructs prompts under a byte budget.
type Builder struct {
	examples ExampleSet
	maxBytes int
	maxTurns int
}

const defaultMaxPromptBytes = 16384

// NewBuilder creates a prompt builder. maxBytes bounds the prompt size;
// maxTurns bounds how much conversation history is rendered.
func NewBuilder(examples ExampleSet, maxBytes, maxTurns int) *Builder {
	if maxBytes <= 0 {
		maxBytes = defaultMaxPromptBytes
	}

	return &Builder{examples: examples, maxBytes: maxBytes, maxTurns: maxTurns}
}

// Build renders the full prompt for a question. When repair is non-nil the
// prompt switches to correction mode: it embeds the failing SQL and the
// exact error text and instructs the model to fix that statement rather
// than start over.
func (b *Builder) Build(question string, snap *schema.Snapshot, history []Turn, repair *Repair) string {
	tables := b.fitTables(question, snap, history, repair)

	var sb strings.Builder

	sb.WriteString("You are an expert PostgreSQL assistant. Convert the natural language question " +
		"into a single SQL query based on the provided database schema.\n\n")

	sb.WriteString("### Instructions:\n")
	sb.WriteString("1. Use only the tables and columns listed in the schema. Do not guess names.\n")
	sb.WriteString("2. Output exactly one read-only SELECT query and nothing else.\n")
	sb.WriteString("3. Prefer explicit column lists over SELECT *.\n")
	sb.WriteString("4. No markdown, no explanation.\n\n")

	sb.WriteString("### Database Schema:\n")

	for _, table := range tables {
		sb.WriteString(table.DDL())
		sb.WriteString("\n")
	}

	examples := b.examples.relevant(snap, 2)
	if len(examples) > 0 {
		sb.WriteString("### Examples:\n")

		for _, ex := range examples {
			fmt.Fprintf(&sb, "Question: %q\nSQL Query: %s\n\n", ex.Question, ex.SQL)
		}
	}

	if turns := b.recentSuccessfulTurns(history); len(turns) > 0 {
		sb.WriteString("### Conversation so far:\n")

		for _, turn := range turns {
			fmt.Fprintf(&sb, "Question: %q\nSQL Query: %s\n\n", turn.Question, turn.SQL)
		}
	}

	if repair != nil {
		sb.WriteString("### Previous attempt failed:\n")

		if strings.TrimSpace(repair.SQL) != "" {
			fmt.Fprintf(&sb, "SQL: %s\n", repair.SQL)
		}

		fmt.Fprintf(&sb, "Error: %s\n", repair.ErrorText)
		sb.WriteString("Correct the statement above so it no longer produces this error. " +
			"Do not regenerate from scratch; change only what the error requires.\n\n")
	}

	sb.WriteString("### Your Task:\n")
	fmt.Fprintf(&sb, "Question: %q\n\n### SQL Query:\n", question)

	return sb.String()
}

// recentSuccessfulTurns returns the newest maxTurns turns that produced
// working SQL, oldest first.
func (b *Builder) recentSuccessfulTurns(history []Turn) []Turn {
	var turns []Turn

	for _, turn := range history {
		if turn.Succeeded && strings.TrimSpace(turn.SQL) != "" {
			turns = append(turns, turn)
		}
	}

	if b.maxTurns > 0 && len(turns) > b.maxTurns {
		turns = turns[len(turns)-b.maxTurns:]
	}

	return turns
}

// fitTables returns the snapshot tables that fit the byte budget. When the
// full prompt would exceed it, the least-referenced tables are dropped
// first (fewest incoming foreign keys, then fewest columns). The question
// itself is never truncated.
func (b *Builder) fitTables(question string, snap *schema.Snapshot, history []Turn, repair *Repair) []schema.Table {
	tables := make([]schema.Table, len(snap.Tables))
	copy(tables, snap.Tables)

	if b.promptSize(question, tables, snap, history, repair) <= b.maxBytes {
		return tables
	}

	counts := snap.ReferenceCounts()

	// Keep order: most-referenced first, larger tables before smaller,
	// name as the deterministic tiebreaker.
	ranked := make([]schema.Table, len(tables))
	copy(ranked, tables)
	sort.SliceStable(ranked, func(i, j int) bool {
		if counts[ranked[i].Name] != counts[ranked[j].Name] {
			return counts[ranked[i].Name] > counts[ranked[j].Name]
		}

		if len(ranked[i].Columns) != len(ranked[j].Columns) {
			return len(ranked[i].Columns) > len(ranked[j].Columns)
		}

		return ranked[i].Name < ranked[j].Name
	})

	for len(ranked) > 1 {
		ranked = ranked[:len(ranked)-1]
		if b.promptSize(question, ranked, snap, history, repair) <= b.maxBytes {
			break
		}
	}

	// Restore the snapshot's original table order for determinism.
	kept := make(map[string]bool, len(ranked))
	for _, table := range ranked {
		kept[table.Name] = true
	}

	var result []schema.Table

	for _, table := range tables {
		if kept[table.Name] {
			result = append(result, table)
		}
	}

	return result
}

func (b *Builder) promptSize(question string, tables []schema.Table, snap *schema.Snapshot, history []Turn, repair *Repair) int {
	size := len(question)

	for _, table := range tables {
		size += len(table.DDL())
	}

	for _, ex := range b.examples.relevant(snap, 2) {
		size += len(ex.Question) + len(ex.SQL)
	}

	for _, turn := range b.recentSuccessfulTurns(history) {
		size += len(turn.Question) + len(turn.SQL)
	}

	if repair != nil {
		size += len(repair.SQL) + len(repair.ErrorText)
	}

	// Fixed sections (instructions, headers) cost roughly half a KiB.
	return size + 512
}
