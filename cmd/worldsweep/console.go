package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/worldsweep/extension/internal/dispatcher"
)

// consoleLines feeds stdin lines to the run loop. The reader goroutine
// exits when stdin closes.
func consoleLines() <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			lines <- sc.Text()
		}
	}()
	return lines
}

// dispatchLine routes one console line the way a host call arrives: the
// command name, then pipe-separated arguments.
func dispatchLine(d *dispatcher.Dispatcher, line string) string {
	parts := strings.Split(line, "|")
	command := strings.TrimSpace(parts[0])
	if command == "" {
		return ""
	}
	if !d.HasHandler(command) {
		return fmt.Sprintf(`["error", "no handler registered: %s"]`, command)
	}

	result, err := d.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      parts[1:],
		Timestamp: time.Now(),
	})
	return formatResponse(result, err)
}

// formatResponse renders a dispatch outcome in the bracketed reply format
// host-side scripts parse. Strings pass through unescaped; everything
// else is JSON.
func formatResponse(result any, err error) string {
	if err != nil {
		return fmt.Sprintf(`["error", "%s"]`, err.Error())
	}
	if result == nil {
		return `["ok"]`
	}
	if s, ok := result.(string); ok {
		return fmt.Sprintf(`["ok", "%s"]`, s)
	}
	out, err := json.Marshal(result)
	if err != nil {
		return fmt.Sprintf(`["error", "%s"]`, err.Error())
	}
	return fmt.Sprintf(`["ok", %s]`, out)
}
