// Package console implements the interactive operator shell.
package console

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/edvin/subadmin/internal/core"
	"github.com/edvin/subadmin/internal/model"
)

// PasswordReader prompts for a secret without echoing it.
type PasswordReader func(prompt string) (string, error)

type Console struct {
	services     *core.Services
	defaultAgent int64
	in           *bufio.Scanner
	out          io.Writer
	readPassword PasswordReader

	// lastList repeats the previous listing after writes.
	lastList core.ListOptions
}

func New(services *core.Services, defaultAgent int64, in io.Reader, out io.Writer, readPassword PasswordReader) *Console {
	return &Console{
		services:     services,
		defaultAgent: defaultAgent,
		in:           bufio.NewScanner(in),
		out:          out,
		readPassword: readPassword,
	}
}

var errQuit = errors.New("quit")

type command struct {
	usage string
	help  string
	run   func(c *Console, ctx context.Context, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"login":  {"login <email>", "log in; tries the managed account, then the user directory", (*Console).login},
		"logout": {"logout", "end the session and forget the stored identity", (*Console).logout},
		"whoami": {"whoami", "show the current operator", (*Console).whoami},
		"list":   {"list [-mode subscriptions|agent-users] [-agent N] [name]", "list users with their subscription", (*Console).list},
		"users":  {"users [name]", "list users, to pick a user id", (*Console).users},
		"create": {"create -user N [-agent N] [-inactive] [-status S] [-email E] [-start YYYY-MM-DD] [-end YYYY-MM-DD]", "create a subscription", (*Console).create},
		"edit":   {"edit (-id N | -user N -agent N) [-active true|false] [-status S] [-email E] [-start D] [-end D] [-identificator X]", "edit a subscription; empty values clear a field", (*Console).edit},
		"steps":  {"steps", "list agent steps", (*Console).steps},
		"help":   {"help", "show this help", (*Console).help},
		"quit":   {"quit", "leave the console", func(*Console, context.Context, []string) error { return errQuit }},
	}
}

// authRequired lists commands that need a logged-in operator.
var authRequired = map[string]bool{"list": true, "users": true, "create": true, "edit": true, "steps": true}

// Run reads commands until EOF, quit or ctx is cancelled.
func (c *Console) Run(ctx context.Context) error {
	fmt.Fprintln(c.out, `subadmin console, type "help" for commands`)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(c.out, "> ")
		if !c.in.Scan() {
			fmt.Fprintln(c.out)
			return c.in.Err()
		}
		if err := c.Exec(ctx, c.in.Text()); err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintf(c.out, "error: %v\n", err)
		}
	}
}

// Exec runs one command line.
func (c *Console) Exec(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	name := args[0]
	if name == "exit" {
		name = "quit"
	}
	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command %q, try help", args[0])
	}
	if authRequired[name] && c.services.Identity.GetCurrentIdentity(ctx) == nil {
		return errors.New("not logged in")
	}
	return cmd.run(c, ctx, args[1:])
}

func (c *Console) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: login <email>")
	}
	secret, err := c.readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	identity, err := c.services.Identity.Login(ctx, args[0], secret)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.out, "logged in as %s (%s)\n", identity.Email, identity.Source)
	return nil
}

func (c *Console) logout(ctx context.Context, _ []string) error {
	if err := c.services.Identity.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "logged out")
	return nil
}

func (c *Console) whoami(ctx context.Context, _ []string) error {
	identity := c.services.Identity.GetCurrentIdentity(ctx)
	if identity == nil {
		fmt.Fprintln(c.out, "not logged in")
		return nil
	}
	printIdentity(c.out, identity)
	return nil
}

func printIdentity(w io.Writer, identity *model.Identity) {
	fmt.Fprintf(w, "%s\t%s", identity.Source, identity.Email)
	if identity.Name != "" {
		fmt.Fprintf(w, "\t%s", identity.Name)
	}
	fmt.Fprintln(w)
}

func (c *Console) list(ctx context.Context, args []string) error {
	fs := newFlagSet("list", c.out)
	mode := fs.String("mode", "", "listing mode")
	agent := fs.Int64("agent", 0, "agent id")
	if err := fs.Parse(args); err != nil {
		return err
	}
	parsed, err := core.ParseListingMode(*mode)
	if err != nil {
		return err
	}
	c.lastList = core.ListOptions{Mode: parsed, AgentID: *agent, Name: strings.Join(fs.Args(), " ")}
	return c.printList(ctx)
}

func (c *Console) printList(ctx context.Context) error {
	rows, err := c.services.ReadModel.List(ctx, c.lastList)
	if err != nil && rows == nil {
		return err
	}
	if err != nil {
		fmt.Fprintf(c.out, "warning: %v; showing the last good list\n", err)
	}

	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tNAME\tIDENTIFICATOR\tEMAIL\tSUB\tAGENT\tACTIVE\tSTATUS\tSTART\tEND")
	for _, r := range rows {
		sub := "-"
		if r.SubscriptionID != nil {
			sub = fmt.Sprint(*r.SubscriptionID)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%t\t%s\t%s\t%s\n",
			r.UserID, r.UserName, r.UserIdentificator, r.Email, sub, r.AgentID, r.Activation, r.Status, r.YearlyStart, r.YearlyEnd)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "%d rows\n", len(rows))
	return nil
}

func (c *Console) users(ctx context.Context, args []string) error {
	users, err := c.services.Directory.ListUsers(ctx, strings.Join(args, " "))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tIDENTIFICATOR")
	for _, u := range users {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", u.ID, u.UserName, u.EmailOrEmpty(), u.UserIdentificator)
	}
	return tw.Flush()
}

func (c *Console) create(ctx context.Context, args []string) error {
	fs := newFlagSet("create", c.out)
	user := fs.Int64("user", 0, "user id")
	agent := fs.Int64("agent", c.defaultAgent, "agent id")
	inactive := fs.Bool("inactive", false, "create the subscription inactive")
	status := fs.String("status", "", "status")
	email := fs.String("email", "", "contact email")
	start := fs.String("start", "", "yearly start")
	end := fs.String("end", "", "yearly end")
	if err := fs.Parse(args); err != nil {
		return err
	}

	activation := !*inactive
	err := c.services.Creator.Create(ctx, core.NewSubscription{
		UserID:      *user,
		AgentID:     *agent,
		Activation:  &activation,
		Status:      *status,
		Email:       *email,
		YearlyStart: *start,
		YearlyEnd:   *end,
	})
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "subscription created")
	return c.printList(ctx)
}

func (c *Console) edit(ctx context.Context, args []string) error {
	fs := newFlagSet("edit", c.out)
	var key core.SubscriptionKey
	fs.Int64Var(&key.ID, "id", 0, "subscription id")
	fs.Int64Var(&key.UserID, "user", 0, "user id")
	fs.Int64Var(&key.AgentID, "agent", 0, "agent id")
	active := fs.Bool("active", true, "activation")
	status := fs.String("status", "", "status")
	email := fs.String("email", "", "contact email")
	start := fs.String("start", "", "yearly start")
	end := fs.String("end", "", "yearly end")
	identificator := fs.String("identificator", "", "user identificator")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// Only flags given on the command line are written.
	patch := core.SubscriptionPatch{UserID: key.UserID}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "active":
			patch.Activation = active
		case "status":
			patch.Status = status
		case "email":
			patch.Email = email
		case "start":
			patch.YearlyStart = start
		case "end":
			patch.YearlyEnd = end
		case "identificator":
			patch.UserIdentificator = identificator
		}
	})

	if err := c.services.Editor.Update(ctx, key, patch); err != nil {
		return err
	}
	fmt.Fprintln(c.out, "subscription updated")
	return c.printList(ctx)
}

func (c *Console) steps(ctx context.Context, _ []string) error {
	steps, err := c.services.Directory.ListAgentSteps(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME")
	for _, s := range steps {
		fmt.Fprintf(tw, "%d\t%s\n", s.ID, s.Name)
	}
	return tw.Flush()
}

var helpOrder = []string{"login", "logout", "whoami", "list", "users", "create", "edit", "steps", "help", "quit"}

func (c *Console) help(context.Context, []string) error {
	for _, name := range helpOrder {
		cmd := commands[name]
		fmt.Fprintf(c.out, "  %s\n      %s\n", cmd.usage, cmd.help)
	}
	return nil
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// splitArgs splits a command line on whitespace. Double quotes group words
// and may enclose an empty argument.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case !inQuote && (r == ' ' || r == '\t'):
			if started {
				args = append(args, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, current.String())
	}
	return args, nil
}
