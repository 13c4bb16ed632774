package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Kai-project-00/clipgo/internal/app"
	"github.com/Kai-project-00/clipgo/internal/errors"
)

// maxStdinBytes bounds clip text read from stdin.
const maxStdinBytes = 1 << 20

// newCLIApp creates the CLI application with all commands. a may be nil
// when only help or version output is needed.
func newCLIApp(a *app.App) *cli.App {
	cliApp := &cli.App{
		Name:    "clipgo",
		Usage:   "Save and organize text clipped from AI chats",
		Version: Version,
		Commands: []*cli.Command{
			clipCmd(a),
			categoryCmd(a),
			backupCmd(a),
			storageCmd(a),
			settingsCmd(a),
			exportCmd(a),
			importCmd(a),
			serveCmd(a),
			uiCmd(a),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	cliApp.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return cliApp
}

// Helper functions

// outputJSON writes v to the app's writer as indented JSON.
func outputJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputError formats error for CLI as "[CODE] message".
func outputError(err error) error {
	if cErr, ok := errors.As(err); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", cErr.Code, errors.Message(err)), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// inputText returns the --text flag, or the piped stdin when the flag is empty.
func inputText(c *cli.Context) (string, error) {
	if text := c.String("text"); text != "" {
		return text, nil
	}
	if c.App.Reader == os.Stdin && !stdinHasData() {
		return "", errors.NewInvalidRequest("text must be given with --text or piped via stdin")
	}
	text, err := readStdin(c.App.Reader, maxStdinBytes)
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.NewInvalidRequest("text is required")
	}
	return text, nil
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from r.
func readStdin(r io.Reader, limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return "", errors.NewInternal(err)
	}
	if int64(len(data)) > limit {
		return "", errors.NewInvalidRequest(fmt.Sprintf("input exceeds %d bytes", limit))
	}
	return strings.TrimSpace(string(data)), nil
}

// parseTags splits a comma-separated string into a slice of tags.
func parseTags(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	tags := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

// parseDuration parses "7d" format to days.
func parseDuration(s string) (int, error) {
	if numStr, ok := strings.CutSuffix(s, "d"); ok {
		days, err := strconv.Atoi(numStr)
		if err != nil {
			return 0, fmt.Errorf("invalid duration: %s", s)
		}
		if days < 0 {
			return 0, fmt.Errorf("duration must be non-negative")
		}
		return days, nil
	}
	return 0, fmt.Errorf("duration must end with 'd' (days), e.g., 7d")
}

// requireArg returns the first positional argument or an INVALID_REQUEST error.
func requireArg(c *cli.Context, name string) (string, error) {
	if c.NArg() == 0 || c.Args().First() == "" {
		return "", errors.NewInvalidRequest(name + " is required")
	}
	return c.Args().First(), nil
}
