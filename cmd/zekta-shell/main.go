// zekta-shell is a REPL for poking at a zekta series on disk.
//
// Usage:
//
//	zekta-shell [--value-bytes=N] [--create] <series-dir>
//
// Commands (in REPL):
//
//	push <time> <hex-value>          Insert one entry
//	select [from] [to] [desc]        Range query, defaults to everything ascending
//	delete <from> <to>                Remove entries in [from,to]
//	drop                               Truncate every bucket
//	flush [unload]                     Persist dirty buckets
//	info                               Show series value width
//	help                                Show this help
//	exit / quit / q                    Exit
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"

	"github.com/thingmate/zekta"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	flags := pflag.NewFlagSet("zekta-shell", pflag.ContinueOnError)

	valueBytes := flags.IntP("value-bytes", "b", 0, "value byte length, required when creating a new series")
	create := flags.BoolP("create", "c", false, "create the series if it doesn't exist")

	flags.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: zekta-shell [options] <series-dir>\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flags.PrintDefaults()
	}

	if err := flags.Parse(os.Args[1:]); err != nil {
		return err
	}

	if flags.NArg() < 1 {
		flags.Usage()

		return errors.New("missing series directory")
	}

	dir := flags.Arg(0)

	s, err := zekta.Open(dir, zekta.OpenOptions{
		ValueByteLength: *valueBytes,
		Create:          *create,
	})
	if err != nil {
		return fmt.Errorf("opening series: %w", err)
	}

	defer s.Close()

	repl := &REPL{series: s}

	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	series *zekta.Series
	liner  *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".zekta_shell_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("zekta-shell (value_byte_length=%d)\n", r.series.ValueByteLength())
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("zekta> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Println("\nBye!")

				break
			}

			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()

			return nil

		case "help", "?":
			r.printHelp()

		case "push":
			r.cmdPush(args)

		case "select", "sel":
			r.cmdSelect(args)

		case "delete", "del":
			r.cmdDelete(args)

		case "drop":
			r.cmdDrop()

		case "flush":
			r.cmdFlush(args)

		case "info":
			r.cmdInfo()

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{"push", "select", "sel", "delete", "del", "drop", "flush", "info", "help", "exit", "quit", "q"}

	var completions []string

	lower := strings.ToLower(line)
	for _, c := range commands {
		if strings.HasPrefix(c, lower) {
			completions = append(completions, c)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  push <time> <hex-value>      Insert one entry")
	fmt.Println("  select [from] [to] [desc]    Range query (default: everything, ascending)")
	fmt.Println("  delete <from> <to>           Remove entries with from <= t <= to")
	fmt.Println("  drop                         Truncate every bucket")
	fmt.Println("  flush [unload]               Persist dirty buckets")
	fmt.Println("  info                         Show series info")
	fmt.Println("  help                         Show this help")
	fmt.Println("  exit / quit / q              Exit")
}

func (r *REPL) cmdPush(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: push <time> <hex-value>")

		return
	}

	t, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Printf("Error parsing time: %v\n", err)

		return
	}

	value, err := hex.DecodeString(args[1])
	if err != nil {
		fmt.Printf("Error parsing value (expected hex): %v\n", err)

		return
	}

	if err := r.series.Push(t, value); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("OK: pushed t=%v\n", t)
}

func (r *REPL) cmdSelect(args []string) {
	opts := zekta.SelectOptions{}

	var positional []string

	for _, a := range args {
		if a == "desc" {
			opts.Desc = true

			continue
		}

		positional = append(positional, a)
	}

	if len(positional) >= 1 {
		from, err := strconv.ParseFloat(positional[0], 64)
		if err != nil {
			fmt.Printf("Error parsing from: %v\n", err)

			return
		}

		opts.From = &from
	}

	if len(positional) >= 2 {
		to, err := strconv.ParseFloat(positional[1], 64)
		if err != nil {
			fmt.Printf("Error parsing to: %v\n", err)

			return
		}

		opts.To = &to
	}

	entries, err := r.series.Select(opts)
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	if len(entries) == 0 {
		fmt.Println("(empty)")

		return
	}

	for i, e := range entries {
		fmt.Printf("%4d. t=%v  value=%s\n", i+1, e.Time, hex.EncodeToString(e.Value))
	}
}

func (r *REPL) cmdDelete(args []string) {
	if len(args) < 2 {
		fmt.Println("Usage: delete <from> <to>")

		return
	}

	from, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		fmt.Printf("Error parsing from: %v\n", err)

		return
	}

	to, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Printf("Error parsing to: %v\n", err)

		return
	}

	if err := r.series.Delete(zekta.RangeOptions{From: &from, To: &to}); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("OK")
}

func (r *REPL) cmdDrop() {
	if err := r.series.Drop(); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("OK")
}

func (r *REPL) cmdFlush(args []string) {
	unload := len(args) > 0 && args[0] == "unload"

	if err := r.series.Flush(unload); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("OK")
}

func (r *REPL) cmdInfo() {
	fmt.Printf("Value byte length: %d\n", r.series.ValueByteLength())
}
