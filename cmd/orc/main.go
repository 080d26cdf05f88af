// orc compiles a Csound-style orchestra and performs a score with it
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/orc/config"
)

var log = commonlog.GetLogger("orc")

func main() {
	configPath := flag.String("config", "", "Configuration file (default: orc.toml found from the orchestra's directory up)")
	sr := flag.Float64("sr", 0, "Sample rate override")
	kr := flag.Float64("kr", 0, "Control rate override")
	ksmps := flag.Int("ksmps", 0, "Samples per control period override")
	check := flag.Bool("check", false, "Compile the given orchestras and exit")
	dumpLayout := flag.String("dump-layout", "", "Write the compiled layout snapshot (CBOR) to this file")
	statsDB := flag.String("stats-db", "", "Record run statistics in this SQLite database")
	serveAddr := flag.String("serve", "", "Serve the engine over Connect on this address instead of performing offline")
	beats := flag.Bool("beats", false, "Order turnoffs by beats")
	realtime := flag.Bool("realtime", false, "Keep performing after the score until an e event arrives")
	cscore := flag.Bool("cscore", false, "Replay the score as a cscore list, one segment per section")
	rt := flag.Bool("rt", false, "Play through the default audio device")
	verbose := flag.Int("v", 0, "Log verbosity (0 notices, 1 info, 2 debug)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: orc [options] file.orc [file.sco]\n")
		fmt.Fprintf(os.Stderr, "       orc -check file.orc...\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  orc synth.orc synth.sco              # Perform offline\n")
		fmt.Fprintf(os.Stderr, "  orc -check *.orc                     # Compile only\n")
		fmt.Fprintf(os.Stderr, "  orc -serve :4410 -realtime synth.orc # Accept events over Connect\n")
	}
	flag.Parse()

	commonlog.Configure(*verbose, nil)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadConfig(*configPath, filepath.Dir(args[0]))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// Flags override the configuration file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sr":
			cfg.Rates.Sr = *sr
		case "kr":
			cfg.Rates.Kr = *kr
		case "ksmps":
			cfg.Rates.Ksmps = *ksmps
		case "beats":
			cfg.Performance.BeatMode = *beats
		case "realtime":
			cfg.Performance.RealtimeEvents = *realtime
		case "cscore":
			cfg.Performance.Cscore = *cscore
		case "dump-layout":
			cfg.Output.LayoutDump = *dumpLayout
		case "stats-db":
			cfg.Output.StatsDB = *statsDB
		case "serve":
			cfg.Server.Listen = *serveAddr
		}
	})
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n", err)
		os.Exit(1)
	}

	if *check {
		if failed := checkAll(args, cfg.CompilerOptions()); failed > 0 {
			fmt.Fprintf(os.Stderr, "%d of %d orchestras failed to compile\n", failed, len(args))
			os.Exit(1)
		}
		os.Exit(0)
	}

	r := &run{
		cfg:   cfg,
		orc:   args[0],
		rt:    *rt,
		serve: *serveAddr != "",
	}
	if len(args) > 1 {
		r.sco = args[1]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := r.execute(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads the file named by -config, or looks for orc.toml from dir
// upwards, falling back to the defaults.
func loadConfig(path, dir string) (*config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		return config.Default(), nil
	}
	log.Infof("using %s", filepath.Join(cfg.Dir, config.FileName))
	return cfg, nil
}
