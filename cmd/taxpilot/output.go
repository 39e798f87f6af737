package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

func printJSON(writer io.Writer, value any) error {
	encoded, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("cli.output.encode: %w", err)
	}
	_, err = fmt.Fprintln(writer, string(encoded))
	return err
}

func isTerminal(stream any) bool {
	file, ok := stream.(*os.File)
	return ok && term.IsTerminal(int(file.Fd()))
}

// renderMarkdown styles markdown for terminals and passes it through for pipes or when color is off.
func renderMarkdown(writer io.Writer, markdown string, noColor bool) string {
	if noColor || !isTerminal(writer) {
		return markdown
	}
	rendered, err := glamour.Render(markdown, "auto")
	if err != nil {
		return markdown
	}
	return rendered
}

// readSecret reads a password without echo from a terminal, or one line from any other reader.
func readSecret(in io.Reader, prompt io.Writer, label string) (string, error) {
	_, _ = fmt.Fprint(prompt, label)
	if file, ok := in.(*os.File); ok && term.IsTerminal(int(file.Fd())) {
		secret, err := term.ReadPassword(int(file.Fd()))
		_, _ = fmt.Fprintln(prompt)
		if err != nil {
			return "", fmt.Errorf("cli.prompt.read_password: %w", err)
		}
		return string(secret), nil
	}
	return readLine(in)
}

// readLine reads byte by byte so consecutive prompts on one reader do not lose buffered input.
func readLine(in io.Reader) (string, error) {
	var builder strings.Builder
	buffer := make([]byte, 1)
	for {
		count, err := in.Read(buffer)
		if count > 0 {
			if buffer[0] == '\n' {
				break
			}
			builder.WriteByte(buffer[0])
		}
		if err != nil {
			if errors.Is(err, io.EOF) && builder.Len() > 0 {
				break
			}
			return "", fmt.Errorf("cli.prompt.read_line: %w", err)
		}
	}
	return strings.TrimRight(builder.String(), "\r"), nil
}
