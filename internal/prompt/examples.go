package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/aisavvy/aisavvy/internal/schema"
)

// Example is a worked (question, SQL) pair included in prompts to steer
// generation by demonstration.
type Example struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
}

// ExampleSet is a versioned collection of few-shot examples. Sets are
// external configuration: they can be tuned and swapped without touching
// pipeline logic.
type ExampleSet struct {
	Version  string    `json:"version"`
	Examples []Example `json:"examples"`
}

// LoadExampleSet reads an example set from a JSON file.
func LoadExampleSet(path string) (ExampleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ExampleSet{}, fmt.Errorf("failed to read example set: %w", err)
	}

	var set ExampleSet
	if err := json.Unmarshal(data, &set); err != nil {
		return ExampleSet{}, fmt.Errorf("failed to parse example set: %w", err)
	}

	if len(set.Examples) == 0 {
		return ExampleSet{}, fmt.Errorf("example set %q contains no examples", path)
	}

	return set, nil
}

// DefaultExampleSet returns the built-in examples used when no external
// set is configured.
func DefaultExampleSet() ExampleSet {
	return ExampleSet{
		Version: "builtin-v1",
		Examples: []Example{
			{
				Question: "Who is the manager of the Engineering department?",
				SQL:      "SELECT manager FROM departments WHERE department_name = 'Engineering';",
			},
			{
				Question: "How many employees are in the Sales department?",
				SQL: "SELECT COUNT(*) AS total_employees FROM employees e " +
					"JOIN departments d ON e.department_id = d.department_id " +
					"WHERE d.department_name = 'Sales';",
			},
			{
				Question: "List all department names.",
				SQL:      "SELECT department_name FROM departments;",
			},
		},
	}
}

// relevant picks the examples whose SQL references at least one table in
// the snapshot, preserving set order. When none match, the first example
// is returned so the prompt always demonstrates the expected output shape.
func (s ExampleSet) relevant(snap *schema.Snapshot, limit int) []Example {
	var picked []Example

	for _, ex := range s.Examples {
		lower := strings.ToLower(ex.SQL)
		for _, table := range snap.Tables {
			if strings.Contains(lower, strings.ToLower(table.Name)) {
				picked = append(picked, ex)
				break
			}
		}

		if len(picked) == limit {
			break
		}
	}

	if len(picked) == 0 && len(s.Examples) > 0 {
		picked = append(picked, s.Examples[0])
	}

	return picked
}
