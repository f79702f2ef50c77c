package cmd

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"

	"github.com/aisavvy/aisavvy/internal/engine"
	"github.com/aisavvy/aisavvy/internal/executor"
	"github.com/aisavvy/aisavvy/internal/format"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the database a question in plain language",
	Example: `  aisavvy ask "Who is the manager of the Engineering department?"
  aisavvy ask how many employees work in sales`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	question := strings.Join(args, " ")

	spin := spinner.New(spinner.CharSets[14], 100*time.Millisecond,
		spinner.WithWriter(os.Stderr))
	spin.Suffix = " Translating question..."
	spin.Start()

	resp, err := rt.engine.Answer(ctx, engine.Request{Question: question})

	spin.Stop()

	if err != nil {
		var failure *engine.Failure
		if errors.As(err, &failure) && failure.SQL != "" {
			format.SQL(os.Stdout, failure.SQL, false)
		}

		format.Errorf(os.Stderr, "could not answer the question: %v", err)

		return err
	}

	format.SQL(os.Stdout, resp.SQL, resp.Cached)
	format.Table(os.Stdout, &executor.Result{Columns: resp.Columns, Rows: resp.Rows})

	return nil
}
