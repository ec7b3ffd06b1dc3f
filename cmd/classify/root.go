package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newRootCommand(factory classifierFactory) *cobra.Command {
	var provider string
	var perLine bool

	cmd := &cobra.Command{
		Use:   "classify [text...]",
		Short: "Classify caller transcript text into a call intent",
		Long: "Classify reads transcript text from the arguments, or from stdin when no\n" +
			"arguments are given, and prints the intent chosen by the configured classifier.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			inputs, err := collectInputs(cmd.InOrStdin(), args, perLine)
			if err != nil {
				return err
			}
			if len(inputs) == 0 {
				return fmt.Errorf("no transcript text given")
			}

			ctx := cmd.Context()
			c, err := factory(ctx, provider)
			if err != nil {
				return err
			}

			tw := table.NewWriter()
			tw.SetStyle(table.StyleRounded)
			tw.AppendHeader(table.Row{"Transcript", "Intent", "Latency"})
			failed := 0
			for _, text := range inputs {
				start := time.Now()
				label, err := c.Classify(ctx, text)
				result := label.String()
				if err != nil {
					failed++
					result = "error: " + err.Error()
				}
				tw.AppendRow(table.Row{truncate(text, 60), result, time.Since(start).Round(time.Millisecond)})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "provider: %s\n", c.Provider())
			fmt.Fprintln(out, tw.Render())
			if failed > 0 {
				return fmt.Errorf("%d of %d classifications failed", failed, len(inputs))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", "", "Override CLASSIFIER_PROVIDER (openai, bedrock, gemini, auto)")
	cmd.Flags().BoolVar(&perLine, "lines", false, "Treat each stdin line as a separate transcript")
	return cmd
}

func collectInputs(in io.Reader, args []string, perLine bool) ([]string, error) {
	if len(args) > 0 {
		return []string{strings.Join(args, " ")}, nil
	}
	if perLine {
		var inputs []string
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				inputs = append(inputs, line)
			}
		}
		return inputs, scanner.Err()
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	if text := strings.TrimSpace(string(data)); text != "" {
		return []string{text}, nil
	}
	return nil, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
