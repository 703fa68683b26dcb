// Command pf records portfolio events and reconstructs the portfolio from
// them.
package main

import (
	"context"
	"flag"
	"os"
	"path"
	"strings"

	"github.com/etnz/folio"
	"github.com/etnz/folio/cmd"
	"github.com/etnz/folio/docs"
	"github.com/google/subcommands"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"
)

func main() {
	completion().Complete("pf")

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	flag.Parse()
	if name := flag.Arg(0); name != "" && !known(name) {
		if found, code := cmd.RunExtension(name, flag.Args()[1:]); found {
			os.Exit(code)
		}
	}
	os.Exit(int(commander.Execute(context.Background())))
}

func known(name string) bool {
	switch name {
	case "help", "flags", "commands":
		return true
	}
	for _, c := range cmd.Commands() {
		if c.Name() == name {
			return true
		}
	}
	return false
}

// completion describes the commands and their flags for shell completion.
func completion() *complete.Command {
	root := &complete.Command{
		Sub:   make(map[string]*complete.Command),
		Flags: flags("", flag.CommandLine),
	}
	for _, c := range cmd.Commands() {
		f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
		c.SetFlags(f)
		sub := &complete.Command{Flags: flags(c.Name(), f)}
		if c.Name() == "topic" {
			topics, _ := docs.GetAllTopics()
			sub.Args = predict.Set(topics)
		}
		root.Sub[c.Name()] = sub
	}
	return root
}

func flags(command string, f *flag.FlagSet) map[string]complete.Predictor {
	m := make(map[string]complete.Predictor)
	f.VisitAll(func(fl *flag.Flag) {
		switch {
		case isBool(fl):
			m[fl.Name] = predict.Nothing
		case fl.Name == "from" || fl.Name == "config" || strings.HasSuffix(fl.Name, "dir"):
			m[fl.Name] = predict.Files("*")
		case fl.Name == "type" && command == "note":
			m[fl.Name] = predict.Set{"note", "goal", "strategy"}
		case fl.Name == "type":
			m[fl.Name] = eventTypes()
		default:
			m[fl.Name] = predict.Something
		}
	})
	return m
}

func isBool(fl *flag.Flag) bool {
	b, ok := fl.Value.(interface{ IsBoolFlag() bool })
	return ok && b.IsBoolFlag()
}

func eventTypes() predict.Set {
	var types predict.Set
	for _, t := range folio.EventTypes() {
		types = append(types, t.String())
	}
	return types
}
