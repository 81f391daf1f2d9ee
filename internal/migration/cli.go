package migration

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
)

// CLI renders migrator operations for the urmombot migrate subcommand.
type CLI struct {
	migrator *Migrator
	output   io.Writer
}

// NewCLI wraps migrator with stdout rendering.
func NewCLI(migrator *Migrator) *CLI {
	return &CLI{migrator: migrator, output: os.Stdout}
}

// SetOutput redirects CLI output, used by tests.
func (c *CLI) SetOutput(w io.Writer) { c.output = w }

// RunUp applies every pending migration and prints the resulting version.
func (c *CLI) RunUp() error {
	fmt.Fprintln(c.output, "applying pending migrations...")
	if err := c.migrator.Up(); err != nil {
		return err
	}
	return c.printVersion()
}

// RunDown rolls back the most recent migration and prints the resulting
// version.
func (c *CLI) RunDown() error {
	fmt.Fprintln(c.output, "rolling back one migration...")
	if err := c.migrator.Down(); err != nil {
		return err
	}
	return c.printVersion()
}

// RunStatus prints a table of every embedded migration and whether the
// database has applied it.
func (c *CLI) RunStatus() error {
	statuses, err := c.migrator.Status()
	if err != nil {
		return err
	}
	if len(statuses) == 0 {
		fmt.Fprintln(c.output, "no migrations found")
		return nil
	}

	applied := 0
	w := tabwriter.NewWriter(c.output, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tSTATUS")
	for _, s := range statuses {
		state := "pending"
		switch {
		case s.Dirty:
			state = "dirty"
		case s.Applied:
			state = "applied"
			applied++
		}
		fmt.Fprintf(w, "%06d\t%s\t%s\n", s.Version, s.Name, state)
	}
	w.Flush()

	fmt.Fprintf(c.output, "\n%d applied, %d pending\n", applied, len(statuses)-applied)
	return nil
}

func (c *CLI) printVersion() error {
	version, dirty, err := c.migrator.Version()
	if err != nil {
		return err
	}
	if dirty {
		fmt.Fprintf(c.output, "schema at version %d (dirty)\n", version)
		return nil
	}
	fmt.Fprintf(c.output, "schema at version %d\n", version)
	return nil
}
