// Command extract runs a saved chat-completion response through the topic
// extractor and prints the topics it recovers.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"leanpass/internal/extract"
)

// exitExtractFailed is the exit status for responses the extractor rejects.
const exitExtractFailed = 2

func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	var (
		shapeName string
		trace     bool
	)
	cmd := &cobra.Command{
		Use:   "extract [file]",
		Short: "Extract study topics from a chat-completion response body",
		Long: `extract reads a raw chat-completion response (a file, or stdin when no file
or "-" is given), repairs the JSON payload inside the first choice and prints
the validated topics as indented JSON.

Failures are reported with their kind: malformed envelope, empty completion,
truncation by the token limit, or an unrepairable payload.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			shape, ok := extract.ParseShape(shapeName)
			if !ok {
				return fmt.Errorf("unknown shape %q (want basic or extended)", shapeName)
			}

			body, err := readInput(stdin, args)
			if err != nil {
				return err
			}

			var opts []extract.Option
			if trace {
				opts = append(opts, extract.WithTracer(func(ev extract.Event) {
					fmt.Fprintf(stderr, "%-9s", ev.Stage)
					for _, key := range slices.Sorted(maps.Keys(ev.Attrs)) {
						fmt.Fprintf(stderr, " %s=%v", key, ev.Attrs[key])
					}
					fmt.Fprintln(stderr)
				}))
			}

			result, err := extract.New(opts...).Extract(string(body), shape)
			if err != nil {
				return err
			}
			if result.Dropped > 0 {
				fmt.Fprintf(stderr, "dropped %d invalid records\n", result.Dropped)
			}

			enc := json.NewEncoder(stdout)
			enc.SetEscapeHTML(false)
			enc.SetIndent("", "  ")
			return enc.Encode(result.Topics)
		},
	}
	cmd.SetIn(stdin)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.Flags().StringVar(&shapeName, "shape", "basic", "topic layout to validate against: basic or extended")
	cmd.Flags().BoolVar(&trace, "trace", false, "print every pipeline stage to stderr")
	return cmd
}

func readInput(stdin io.Reader, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}

func exitCode(err error) int {
	var extractErr *extract.Error
	if errors.As(err, &extractErr) {
		return exitExtractFailed
	}
	return 1
}

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}
