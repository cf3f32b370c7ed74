// TableTalk CLI
//
// Ask natural-language questions against a SQL database. Every generated
// statement passes a lexical safety check and a semantic review before it
// is executed.
//
// Usage:
//
//	tabletalk ask "Who has the highest salary?"
//	tabletalk schema                     # Show the introspected schema
//	tabletalk ask --show-sql "..."       # Include the approved SQL
package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tabletalk-labs/tabletalk/agentcore/refine"
)

const version = "0.3.0"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "tabletalk",
		Short: "Natural-language questions over SQL databases",
		Long: `TableTalk converts natural-language questions into read-only SQL,
validates every candidate statement through layered safety checks,
executes approved queries, and answers in plain English.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().String("config", "", "path to config file (default: tabletalk.yaml in the working directory)")

	root.AddCommand(newAskCommand())
	root.AddCommand(newSchemaCommand())
	root.AddCommand(newVersionCommand())

	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "TableTalk v%s\n", version)
		},
	}
}

// =============================================================================
// LOGGER
// =============================================================================

// logLevel orders severities for threshold filtering.
var logLevels = map[string]int{
	"DEBUG": 0,
	"INFO":  1,
	"WARN":  2,
	"ERROR": 3,
}

// stdLogger implements refine.Logger using standard library log, with a
// severity threshold and bound fields carried through Bind.
type stdLogger struct {
	threshold int
	fields    []any
}

func newStdLogger(level string) *stdLogger {
	threshold, ok := logLevels[strings.ToUpper(level)]
	if !ok {
		threshold = logLevels["INFO"]
	}
	return &stdLogger{threshold: threshold}
}

func (l *stdLogger) Debug(msg string, keysAndValues ...any) {
	l.log("DEBUG", msg, keysAndValues...)
}

func (l *stdLogger) Info(msg string, keysAndValues ...any) {
	l.log("INFO", msg, keysAndValues...)
}

func (l *stdLogger) Warn(msg string, keysAndValues ...any) {
	l.log("WARN", msg, keysAndValues...)
}

func (l *stdLogger) Error(msg string, keysAndValues ...any) {
	l.log("ERROR", msg, keysAndValues...)
}

func (l *stdLogger) Bind(fields ...any) refine.Logger {
	bound := make([]any, 0, len(l.fields)+len(fields))
	bound = append(bound, l.fields...)
	bound = append(bound, fields...)
	return &stdLogger{threshold: l.threshold, fields: bound}
}

func (l *stdLogger) log(level, msg string, keysAndValues ...any) {
	if logLevels[level] < l.threshold {
		return
	}
	all := make([]any, 0, len(l.fields)+len(keysAndValues))
	all = append(all, l.fields...)
	all = append(all, keysAndValues...)
	if len(all) == 0 {
		log.Printf("[%s] %s", level, msg)
		return
	}
	log.Printf("[%s] %s %v", level, msg, all)
}
