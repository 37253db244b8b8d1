package printer

import (
	"context"
	"fmt"
	"io"
	"os"
	"regexp"
	"text/template"

	"github.com/bascanada/logai-mcp/pkg/log/client"
)

// DefaultTemplate renders one entry per line with timestamp, context,
// level and message.
const DefaultTemplate = `[{{Format "15:04:05" .Timestamp}}]{{if .ContextID}} [{{.ContextID}}]{{end}} {{.Level}} {{.Message}}`

type LogPrinter interface {
	Display(ctx context.Context, result client.LogSearchResult) (bool, error)
}

// WrapIoWriter renders the result entries to writer using the search's
// printer options. It returns true when a follow channel keeps streaming
// entries in the background.
func WrapIoWriter(ctx context.Context, result client.LogSearchResult, writer io.Writer, update func()) (bool, error) {

	printerOptions := result.GetSearch().PrinterOptions

	var colorEnabled *bool
	if printerOptions.Color.Set {
		colorEnabled = &printerOptions.Color.Value
	}
	InitColorState(colorEnabled, writer)

	templateConfig := printerOptions.Template

	if templateConfig.Value == "" {
		templateConfig.S(DefaultTemplate)
	}

	tmpl, err := template.New("print_printer").Funcs(GetTemplateFunctionsMap()).Parse(templateConfig.Value + "\n")
	if err != nil {
		return false, err
	}

	var messageRegex *regexp.Regexp
	if printerOptions.MessageRegex.Set && printerOptions.MessageRegex.Value != "" {
		messageRegex, err = regexp.Compile(printerOptions.MessageRegex.Value)
		if err != nil {
			return false, err
		}
	}

	entries, newEntriesChannel, err := result.GetEntries(ctx)
	if err != nil {
		return false, err
	}

	if err := processEntries(writer, tmpl, messageRegex, entries); err != nil {
		return false, err
	}

	update()

	if newEntriesChannel != nil {
		go func() {
			for entries := range newEntriesChannel {
				if len(entries) > 0 {
					if err := processEntries(writer, tmpl, messageRegex, entries); err != nil {
						fmt.Fprintf(os.Stderr, "error printing log entries: %v\n", err)
					}
					update()
				}
			}
		}()
	}

	return newEntriesChannel != nil, nil
}

func processEntries(writer io.Writer, tmpl *template.Template, messageRegex *regexp.Regexp, entries []client.LogEntry) error {
	for i, entry := range entries {
		if messageRegex != nil {
			matches := messageRegex.FindStringSubmatch(entry.Message)
			if len(matches) > 1 {
				entries[i].Message = matches[1]
			}
		}
		if err := tmpl.Execute(writer, entries[i]); err != nil {
			return err
		}
	}
	return nil
}
