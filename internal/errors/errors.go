package errors

import (
	stderrors "errors"
	"fmt"
	"os"

	"github.com/julianstephens/ididit/internal/logger"
)

// Format renders err for the terminal with an "Error: " prefix. A classified
// error prints the message meant for the user, not the underlying cause.
func Format(err error) string {
	if err == nil {
		return ""
	}
	var ue *UserError
	if stderrors.As(err, &ue) {
		return "Error: " + ue.Message
	}
	return fmt.Sprintf("Error: %v", err)
}

// Fatal logs err with its kind, prints it and exits with status 1.
func Fatal(err error) {
	if err == nil {
		return
	}
	logger.Error("command failed", "error", err, "kind", Classify(err))
	fmt.Fprintln(os.Stderr, Format(err))
	os.Exit(1)
}
