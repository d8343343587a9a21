package main

import (
	"fmt"
	"log"
	"os"
	"syscall"

	"github.com/jessevdk/go-flags"
	"golang.org/x/term"

	"github.com/oracleguard/gateway/config"
	"github.com/oracleguard/gateway/oracle"
)

var version = "0.0.1"

// cliOptions mirrors the teacher's flat go-flags options struct
// (cmd/mysqldef/mysqldef.go), narrowed from a DDL tool's source/target
// database flags to the gateway's single Oracle connection plus admission
// pipeline config file.
type cliOptions struct {
	User           string `short:"u" long:"user" description:"Oracle user name, overridden by $ORACLE_USER" value-name:"user_name"`
	Password       string `short:"p" long:"password" description:"Oracle password, overridden by $ORACLE_PASSWORD" value-name:"password"`
	Host           string `short:"H" long:"host" description:"Oracle host name" value-name:"host_name" default:"127.0.0.1"`
	Port           int    `short:"P" long:"port" description:"Oracle listener port" value-name:"port_num" default:"1521"`
	Service        string `short:"s" long:"service" description:"Oracle service name" value-name:"service_name"`
	SSL            bool   `long:"ssl" description:"Use SSL/TLS to connect to Oracle"`
	PasswordPrompt bool   `long:"password-prompt" description:"Force an interactive Oracle password prompt"`
	Config         string `long:"config" description:"YAML file overriding admission pipeline defaults" value-name:"config_file"`
	Debug          bool   `long:"debug" description:"Pretty-print the resolved config at startup (validation verdicts are not printed)"`
	Help           bool   `long:"help" description:"Show this help"`
	Version        bool   `long:"version" description:"Show this version"`
}

type parsedCLI struct {
	oracle config.Config
	oraCfg oracle.Config
	debug  bool
}

func parseOptions(args []string) parsedCLI {
	var opts cliOptions

	parser := flags.NewParser(&opts, flags.None)
	parser.Usage = "[options]"
	_, err := parser.ParseArgs(args)
	if err != nil {
		log.Fatal(err)
	}

	if opts.Help {
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	if opts.Version {
		fmt.Println(version)
		os.Exit(0)
	}

	cfg, err := config.Load(opts.Config)
	if err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	user, ok := os.LookupEnv("ORACLE_USER")
	if !ok {
		user = opts.User
	}
	password, ok := os.LookupEnv("ORACLE_PASSWORD")
	if !ok {
		password = opts.Password
	}

	if opts.PasswordPrompt {
		fmt.Print("Enter Oracle Password: ")
		pass, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			log.Fatal(err)
		}
		password = string(pass)
	}

	if user == "" || password == "" {
		fmt.Println("Missing ORACLE_USER or ORACLE_PASSWORD; refusing to start.")
		parser.WriteHelp(os.Stdout)
		os.Exit(1)
	}

	return parsedCLI{
		oracle: cfg,
		oraCfg: oracle.Config{
			Host:       opts.Host,
			Port:       opts.Port,
			Service:    opts.Service,
			User:       user,
			Password:   password,
			SSL:        opts.SSL,
			FetchChunk: cfg.FetchChunk,
		},
		debug: opts.Debug,
	}
}
