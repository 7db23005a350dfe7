package loader

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// LoadAndReport loads every spec and prints one status line per program to
// w.  It returns false if any program failed.
func (l *ProgramLoader) LoadAndReport(ctx context.Context, w io.Writer, specs ...ProgramSpec) (success bool) {
	result := l.LoadAll(ctx, specs)
	for i, prog := range result.Programs {
		name := specs[i].Name
		if prog == nil {
			continue
		}
		fmt.Fprintf(w, "%s %s (%s)\n", color.GreenString("✅"), name, describe(prog.Spec))
	}
	for _, err := range result.Errors.Errors {
		fmt.Fprintf(w, "%s %v\n", color.RedString("❌"), err)
	}
	return !result.Errors.HasErrors()
}

func describe(spec ProgramSpec) string {
	if spec.IsProgressive() {
		return fmt.Sprintf("vertex=%s viewer=%s progressive=%s", spec.Vertex, spec.Fragment, spec.Progressive)
	}
	return fmt.Sprintf("vertex=%s fragment=%s", spec.Vertex, spec.Fragment)
}
