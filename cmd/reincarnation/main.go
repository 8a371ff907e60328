package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reincarnation/internal/config"
	"reincarnation/internal/store"
	"reincarnation/pkg/logx"
)

const usage = `usage: reincarnation [flags] <command> [args]

commands:
  show                  print the effective settings
  validate              run every field check over the stored settings
  check <field> <value> run a single live check (cronTime, regExValue, regExCronTime)
  apply <file>          submit a form payload (json or yaml) and persist it
  watch                 follow external edits to the settings file
`

func main() {
	var (
		driver   string
		path     string
		logLevel string
		logFile  string
	)
	flag.StringVar(&driver, "store", "file", "store driver (file, sqlite, none)")
	flag.StringVar(&path, "path", "./reincarnation.yaml", "settings record path")
	flag.StringVar(&logLevel, "log-level", "info", "log level")
	flag.StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log := logx.NewConsole(logLevel)
	if logFile != "" {
		l, err := logx.New(logx.Config{
			Level:   logLevel,
			Console: true,
			File:    logx.FileConfig{Enabled: true, Path: logFile},
		})
		if err != nil {
			fmt.Println("fatal:", err)
			os.Exit(1)
		}
		log = l
	}

	st, err := store.Open(store.Config{Driver: driver, Path: path}, log)
	if err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
	if st != nil {
		defer func() { _ = st.Close() }()
	}

	mgr := config.NewManager(st)
	mgr.SetLogger(log)

	if err := run(ctx, mgr, flag.Args()); err != nil {
		fmt.Println("fatal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, mgr *config.Manager, args []string) error {
	switch args[0] {
	case "show":
		return cmdShow(ctx, mgr)
	case "validate":
		return cmdValidate(ctx, mgr)
	case "check":
		if len(args) != 3 {
			return fmt.Errorf("check needs a field name and a value")
		}
		return cmdCheck(args[1], args[2])
	case "apply":
		if len(args) != 2 {
			return fmt.Errorf("apply needs a payload file")
		}
		return cmdApply(ctx, mgr, args[1])
	case "watch":
		return cmdWatch(ctx, mgr)
	default:
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func cmdShow(ctx context.Context, mgr *config.Manager) error {
	cfg, err := mgr.Load(ctx)
	if err != nil {
		return err
	}
	printConfig(cfg)
	return nil
}

func printConfig(cfg *config.Config) {
	fmt.Printf("cron restart enabled:      %v\n", cfg.CronRestartEnabled())
	fmt.Printf("trigger restart enabled:   %v\n", cfg.TriggerRestartEnabled())
	fmt.Printf("restart unchanged enabled: %v\n", cfg.RestartUnchangedEnabled())
	fmt.Printf("max retry depth:           %d\n", cfg.MaxRetryDepth())
	fmt.Printf("cron time:                 %s\n", cfg.CronTime)
	for i, r := range cfg.RegExprs {
		fmt.Printf("rule %d: %q", i, r.Value)
		if r.CronTime != "" {
			fmt.Printf(" (cron %q)", r.CronTime)
		}
		fmt.Println()
	}
	if cfg.CronRestartEnabled() {
		if next, err := cfg.NextRestartTimes(3, time.Now()); err == nil {
			for _, t := range next {
				fmt.Printf("next restart:              %s\n", t.Format(time.RFC3339))
			}
		}
	}
}

func cmdValidate(ctx context.Context, mgr *config.Manager) error {
	cfg, err := mgr.Load(ctx)
	if err != nil {
		return err
	}
	failed := false
	for _, fc := range cfg.Check() {
		loc := fc.Field
		if fc.Rule >= 0 {
			loc = fmt.Sprintf("%s[%d]", fc.Field, fc.Rule)
		}
		msg := fc.Result.Message
		if msg == "" {
			msg = "ok"
		}
		fmt.Printf("%-8s %-20s %s\n", fc.Result.Level, loc, msg)
		if fc.Result.Level == config.LevelError {
			failed = true
		}
	}
	if failed {
		return fmt.Errorf("settings have errors")
	}
	return nil
}

func cmdCheck(field, value string) error {
	res, err := config.CheckField(field, value)
	if err != nil {
		return err
	}
	msg := res.Message
	if msg == "" {
		msg = "ok"
	}
	fmt.Printf("%s: %s\n", res.Level, msg)
	if res.Level == config.LevelError {
		os.Exit(1)
	}
	return nil
}

func cmdApply(ctx context.Context, mgr *config.Manager, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	sub, err := config.ParseSubmission(b)
	if err != nil {
		return err
	}
	cfg, err := mgr.Apply(ctx, sub)
	if err != nil {
		return err
	}
	printConfig(cfg)
	return nil
}

func cmdWatch(ctx context.Context, mgr *config.Manager) error {
	if _, err := mgr.Load(ctx); err != nil {
		return err
	}
	updates := mgr.Subscribe(1)
	defer mgr.Unsubscribe(updates)

	go func() {
		if err := mgr.Watch(ctx); err != nil {
			fmt.Println("watch:", err)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case cfg := <-updates:
			if cfg == nil {
				return nil
			}
			fmt.Println("--- settings changed ---")
			printConfig(cfg)
		}
	}
}
