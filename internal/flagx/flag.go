// Package flagx splits a command line between several consumers: the JSON
// config loader, the config flag parser and the CLI command dispatcher each
// take only the arguments meant for them.
package flagx

import (
	"flag"
	"io"
	"strings"
)

// FilterArgs returns the arguments that belong to allowedFlags, keeping each
// flag's value. Both "-d phone" and "-d=phone" forms are recognised; a
// following argument that starts with "-" is never taken as a value.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// Positional is the complement of FilterArgs: it drops the known flags and
// their values and returns everything else in order. Unknown flags are kept,
// they belong to whoever handles the positional part.
func Positional(args []string, knownFlags []string) []string {
	known := make(map[string]struct{}, len(knownFlags))
	for _, f := range knownFlags {
		known[f] = struct{}{}
	}

	rest := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			if _, ok := known[strings.SplitN(arg, "=", 2)[0]]; ok {
				continue
			}
			rest = append(rest, arg)
			continue
		}
		if _, ok := known[arg]; ok {
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
			continue
		}
		rest = append(rest, arg)
	}
	return rest
}

// ConfigFileFlags lists the flags naming the JSON config file.
var ConfigFileFlags = []string{"-c", "-config"}

// JsonConfigFlags returns the config file path given with -c or -config, or
// "" when there is none. Later occurrences win.
func JsonConfigFlags(args []string) string {
	var config string

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&config, "config", "", "path to config file")
	fs.StringVar(&config, "c", "", "path to config file (short)")
	_ = fs.Parse(FilterArgs(args, ConfigFileFlags))

	return config
}
