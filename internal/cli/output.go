// Package cli provides output formatting for the command-line interface.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/rblake2320/multi-agent-rag/internal/models"
	"github.com/rblake2320/multi-agent-rag/pkg/utils"
)

// OutputFormat is the format for CLI output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseFormat validates an output format name.
func ParseFormat(name string) (OutputFormat, error) {
	switch name {
	case "text", "":
		return OutputText, nil
	case "json":
		return OutputJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", name)
	}
}

// WriteAnswer writes an answer to w in the given format.
func WriteAnswer(w io.Writer, answer *models.Answer, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(answer)
	}
	fmt.Fprintf(w, "%s\n\n", answer.Text)
	fmt.Fprintf(w, "domain:     %s\n", answer.Domain)
	fmt.Fprintf(w, "confidence: %.4f\n", answer.Confidence)
	fmt.Fprintf(w, "grounded:   %t\n", answer.Grounded)
	fmt.Fprintf(w, "generated:  %t\n", answer.Generated)
	if len(answer.SupportingChunkIDs) > 0 {
		fmt.Fprintf(w, "sources:    %s\n", strings.Join(answer.SupportingChunkIDs, ", "))
	}
	return nil
}

// WriteReport writes an ingestion report to w in the given format.
func WriteReport(w io.Writer, report *models.IngestReport, format OutputFormat) error {
	if format == OutputJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	fmt.Fprintln(w, report.String())
	for _, s := range report.Skipped {
		fmt.Fprintf(w, "  skipped %s: %s\n", utils.Truncate(s.SourceID, 40), s.Reason)
	}
	return nil
}
