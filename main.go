package main

import (
	"context"
	"flag"
	"fmt"
	"github.com/m3stack/m3-stack/config"
	"github.com/m3stack/m3-stack/tool/provider"
	"github.com/rs/zerolog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

func main() {
	var logger *zerolog.Logger
	{
		l := zerolog.New(os.Stdout).
			Level(zerolog.InfoLevel).
			Output(zerolog.ConsoleWriter{
				Out:          os.Stdout,
				PartsExclude: []string{zerolog.TimestampFieldName},
			})
		logger = &l
	}

	flagDebug := flag.Bool("debug", false,
		"Print debug messages.",
	)
	flagDir := flag.String("C", "",
		"Run as if m3-stack was started in this directory.",
	)
	flag.Usage = printHelp
	flag.Parse()

	if flag.NArg() == 0 {
		printHelp()
		os.Exit(1)
	}
	command, args := flag.Arg(0), flag.Args()[1:]
	if command == "help" {
		printHelp()
		return
	}
	if _, ok := commands[command]; !ok {
		fmt.Printf("Unknown command: %s\n", command)
		printHelp()
		os.Exit(1)
	}

	base := *flagDir
	if base == "" {
		base = "."
	}
	base, err := filepath.Abs(base)
	if err != nil {
		logger.Fatal().Msgf("Unable to get current working directory.")
	}

	var dotenv []string
	if command != "create" {
		dotenv, err = config.LoadDotEnv(base)
		if err != nil {
			logger.Fatal().Msgf("Error trying to read the .env files: %v", err)
		}
	}
	env := config.FromEnv()
	a := &app{log: logger, base: base, env: env}
	if command != "create" {
		logger.Debug().Msgf("Reading m3-stack config...")
		a.cfg, err = config.Load(logger, base, env)
		if err != nil {
			logger.Fatal().Msgf("Error trying to load the config: %v", err)
		}
		if *flagDebug || a.cfg.Bundler.Debug {
			l := logger.Level(zerolog.DebugLevel)
			a.log = &l
		}
	} else if *flagDebug {
		l := logger.Level(zerolog.DebugLevel)
		a.log = &l
	}

	for _, name := range dotenv {
		a.log.Debug().Msgf("Loaded environment from %s.", name)
	}

	provider.RegisterAll()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := commands[command].run(a, ctx, args); err != nil {
		a.log.Error().Msg(err.Error())
		stop()
		os.Exit(1)
	}
}

type command struct {
	usage string
	run   func(a *app, ctx context.Context, args []string) error
}

var commands = map[string]command{
	"build":                {"Build the client app and the server", (*app).build},
	"build-watch":          {"Build the server and rebuild it when its sources change", (*app).buildWatch},
	"dev":                  {"Run the server and the Vite dev server, restarting the server on changes", (*app).dev},
	"start":                {"Run the built server, rebuilding it first if it is outdated", (*app).start},
	"vercel-build":         {"Build for Vercel and write .vercel/output", (*app).vercelBuild},
	"auth-generate-schema": {"Generate the better-auth schema", (*app).authGenerateSchema},
	"drizzle-kit":          {"Run drizzle-kit with an auto detected config", (*app).drizzleKit},
	"create":               {"Create a new project in a directory", (*app).create},
}

var commandOrder = []string{
	"build", "build-watch", "dev", "start", "vercel-build", "auth-generate-schema", "drizzle-kit", "create",
}

func printHelp() {
	fmt.Println("m3-stack - build and run full-stack TypeScript apps")
	fmt.Println("\nUsage:")
	fmt.Println("  m3-stack [-debug] [-C dir] <command> [arguments]")
	fmt.Println("\nCommands:")
	for _, name := range commandOrder {
		fmt.Printf("  %-22s %s\n", name, commands[name].usage)
	}
	fmt.Printf("  %-22s %s\n", "help", "Show this help message")
	fmt.Println("\nFlags:")
	flag.CommandLine.SetOutput(os.Stdout)
	flag.PrintDefaults()
}
