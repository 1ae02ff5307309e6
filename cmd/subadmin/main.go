package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"golang.org/x/term"

	"github.com/edvin/subadmin/internal/bootstrap"
	"github.com/edvin/subadmin/internal/config"
	"github.com/edvin/subadmin/internal/console"
	"github.com/edvin/subadmin/internal/crypto"
	"github.com/edvin/subadmin/internal/logging"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "hash-password":
			cmdHashPassword(os.Args[2:])
			return
		case "help", "-h", "--help":
			printUsage()
			return
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
			printUsage()
			os.Exit(1)
		}
	}
	cmdConsole()
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage:
  subadmin                   start the interactive console
  subadmin hash-password     print an argon2id hash for an admin_account row`)
}

func cmdConsole() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewConsoleLogger(cfg)

	// Interrupts keep their default behaviour so Ctrl-C leaves a blocked prompt.
	ctx := context.Background()

	gw, closeGateway, err := bootstrap.OpenGateway(ctx, cfg, nil, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open gateway")
	}
	defer closeGateway()

	services, err := bootstrap.NewServices(cfg, gw, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build services")
	}

	c := console.New(services, cfg.DefaultAgentID, os.Stdin, os.Stdout, readPassword)
	if err := c.Run(ctx); err != nil {
		logger.Error().Err(err).Msg("console")
		os.Exit(1)
	}
}

func cmdHashPassword(args []string) {
	fs := flag.NewFlagSet("hash-password", flag.ExitOnError)
	password := fs.String("password", "", "password to hash (prompted when omitted)")
	fs.Parse(args)

	secret := *password
	if secret == "" {
		var err error
		secret, err = readPassword("Password: ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if secret == "" {
		fmt.Fprintln(os.Stderr, "Error: empty password")
		os.Exit(1)
	}

	hash, err := crypto.HashPassword(secret)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(hash)
}

// readPassword prompts on stderr and reads from the terminal with echo disabled.
func readPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for password prompt")
	}
	fmt.Fprint(os.Stderr, prompt)
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
