package commands

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/panyam/shaderdeck/include"
)

var inlineOutput string

var inlineCmd = &cobra.Command{
	Use:   "inline <shader>",
	Short: "Prints a shader with its includes inlined",
	Long: `The inline command fetches a shader through the base URL, resolves every
#include directive in it and writes the result to stdout or to --output.
Includes are inlined one level deep, each preceded by a #line 1 marker.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := inlineShader(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if inlineOutput == "" {
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		}
		return os.WriteFile(inlineOutput, []byte(out), 0644)
	},
}

func inlineShader(ctx context.Context, name string) (out string, err error) {
	fetcher := newFetcher("")
	source, err := fetcher.Fetch(ctx, name)
	if err != nil {
		return "", err
	}
	err = include.Process(ctx, fetcher, source, func(inlined string) { out = inlined }, sessionOptions()...)
	if err != nil {
		return "", fmt.Errorf("unable to inline '%s': %w", name, err)
	}
	return out, nil
}

func init() {
	inlineCmd.Flags().StringVarP(&inlineOutput, "output", "o", "", "Write the inlined shader to this file")
	AddCommand(inlineCmd)
}
