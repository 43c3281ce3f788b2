package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"text/tabwriter"
	"time"

	"github.com/kmrgirish/simsuite/internal/config"
	"github.com/kmrgirish/simsuite/internal/history"
)

func openHistory(configPath string) *history.DB {
	wd, err := os.Getwd()
	if err != nil {
		log.Fatal(err)
	}
	cfg, err := config.Load(wd, configPath)
	if err != nil {
		log.Fatal(err)
	}
	db, err := history.Open(cfg.Path(cfg.History))
	if err != nil {
		log.Fatal(err)
	}
	return db
}

func historyCommand(args []string) int {
	flags := flag.NewFlagSet(commandName("history"), flag.ContinueOnError)
	configPath := flags.String("config", "", "config file (default "+config.FileName+")")
	n := flags.Int("n", 20, "number of runs to show")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() > 1 || *n < 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-config file] [-n n] [suite[/scenario]]\n", commandName("history"))
		return 2
	}
	suite, scenario := splitSelector(flags.Arg(0))

	db := openHistory(*configPath)
	defer db.Close()

	runs, err := db.Recent(suite, scenario, *n)
	if err != nil {
		log.Fatal(err)
	}
	if len(runs) == 0 {
		fmt.Println("no runs recorded")
		return 0
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "START\tSCENARIO\tRESULT\tEXIT\tDURATION")
	for _, r := range runs {
		result := "ok"
		if !r.Passed {
			result = "FAIL"
		}
		fmt.Fprintf(w, "%s\t%s/%s\t%s\t%d\t%s\n", r.Start.Format(time.DateTime), r.Suite, r.Scenario, result, r.ExitCode, r.Duration.Round(time.Millisecond))
	}
	if err := w.Flush(); err != nil {
		log.Fatal(err)
	}
	return 0
}

func cleanCommand(args []string) int {
	flags := flag.NewFlagSet(commandName("clean"), flag.ContinueOnError)
	configPath := flags.String("config", "", "config file (default "+config.FileName+")")
	days := flags.Int("days", 7, "keep runs from the last this many days")
	if err := flags.Parse(args); err != nil {
		return 2
	}
	if flags.NArg() != 0 || *days < 0 {
		fmt.Fprintf(os.Stderr, "usage: %s [-config file] [-days n]\n", commandName("clean"))
		return 2
	}

	db := openHistory(*configPath)
	defer db.Close()

	deleted, err := db.Clean(time.Now().Add(-time.Duration(*days) * 24 * time.Hour))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("deleted %d runs\n", deleted)
	return 0
}
