package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/codewandler/realtime-go/events"
	"github.com/spf13/cobra"
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file.jsonl>",
	Short: "Decode a captured stream of server events",
	Long: `Decode one server event per line and print its type and ids.
Lines that do not decode are reported with their line number. Use - to
read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = cmd.InOrStdin()
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		stats, err := decodeStream(r, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		if stats.bad > 0 {
			return fmt.Errorf("%d of %d lines could not be decoded", stats.bad, stats.total())
		}
		return nil
	},
}

type decodeStats struct {
	ok  int
	bad int
}

func (s decodeStats) total() int { return s.ok + s.bad }

func decodeStream(r io.Reader, w io.Writer) (decodeStats, error) {
	var stats decodeStats

	scanner := bufio.NewScanner(r)
	// audio deltas are large
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		evt, err := events.Decode([]byte(text))
		if err != nil {
			stats.bad++
			printError(w, "line %d: %v", line, err)
			continue
		}
		stats.ok++
		fmt.Fprintln(w, describe(evt))
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("line %d: %w", line+1, err)
	}

	printInfo(w, "%d events, %d undecodable", stats.ok, stats.bad)
	return stats, nil
}

func describe(evt events.ServerEvent) string {
	s := fmt.Sprintf("%-52s %s", evt.EventType(), evt.ID())
	switch e := evt.(type) {
	case events.Keyed:
		s += " " + e.Key().String()
	case *events.ErrorEvent:
		s += " " + e.Error()
	case *events.ResponseDoneEvent:
		s += fmt.Sprintf(" %s %s", e.Response.ID, e.Response.Status)
	case *events.SessionUpdatedEvent:
		s += " " + e.Session.ID
	}
	return s
}
