package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"peer-review/api/internal/admin"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

type commandLine struct {
	console *admin.Console
	out     io.Writer
	in      *bufio.Reader
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  list [-module M]                  - list submissions, optionally for one module")
	fmt.Fprintln(cli.out, "  stats                             - total records, distinct groups and modules")
	fmt.Fprintln(cli.out, "  export [-o FILE]                  - write the ledger as CSV (stdout by default)")
	fmt.Fprintln(cli.out, "  delete -index N                   - delete the record at position N")
	fmt.Fprintln(cli.out, "  delete-group -group G [-module M] - delete a group's records")
	fmt.Fprintln(cli.out, "  clear                             - delete every record")
}

func (cli *commandLine) run(ctx context.Context, args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	listCmd := flag.NewFlagSet("list", flag.ContinueOnError)
	listModule := listCmd.String("module", "", "module number, slug or label")
	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportOut := exportCmd.String("o", "", "output file")
	deleteCmd := flag.NewFlagSet("delete", flag.ContinueOnError)
	deleteIndex := deleteCmd.Int("index", -1, "record position as shown by list")
	groupCmd := flag.NewFlagSet("delete-group", flag.ContinueOnError)
	groupGroup := groupCmd.String("group", "", "group number")
	groupModule := groupCmd.String("module", "", "limit to one module")
	for _, fs := range []*flag.FlagSet{listCmd, exportCmd, deleteCmd, groupCmd} {
		fs.SetOutput(cli.out)
	}

	var cmd *admin.Command
	switch args[1] {
	case "list":
		if err := listCmd.Parse(args[2:]); err != nil {
			return err
		}
	case "stats":
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return err
		}
	case "delete":
		if err := deleteCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *deleteIndex < 0 {
			deleteCmd.Usage()
			return errHelp
		}
		cmd = &admin.Command{Kind: admin.DeleteIndex, Index: *deleteIndex}
	case "delete-group":
		if err := groupCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *groupGroup == "" {
			groupCmd.Usage()
			return errHelp
		}
		cmd = &admin.Command{Kind: admin.DeleteGroup, Group: *groupGroup, Module: *groupModule}
	case "clear":
		cmd = &admin.Command{Kind: admin.Clear}
	default:
		cli.printUsage()
		return errHelp
	}

	token, err := cli.login(ctx)
	if err != nil {
		return err
	}
	defer cli.console.Logout(ctx, token)

	switch {
	case cmd != nil:
		return cli.execute(ctx, *cmd)
	case args[1] == "list":
		return cli.list(ctx, *listModule)
	case args[1] == "stats":
		return cli.stats(ctx)
	default:
		return cli.export(ctx, *exportOut)
	}
}

func (cli *commandLine) login(ctx context.Context) (string, error) {
	fmt.Fprint(cli.out, "Admin password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	return cli.console.Login(ctx, string(pwd))
}

func (cli *commandLine) list(ctx context.Context, module string) error {
	entries, err := cli.console.List(ctx, module)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "INDEX\tTIMESTAMP\tMODULE\tGROUP\tFIGURES")
	for _, e := range entries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", e.Index, e.Timestamp.Format(time.RFC3339), e.Module, e.GroupNumber, e.IncludedFigures)
	}
	return tw.Flush()
}

func (cli *commandLine) stats(ctx context.Context) error {
	st, err := cli.console.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "total: %d\ngroups: %d\nmodules: %d\n", st.Total, st.Groups, st.Modules)
	mods := make([]string, 0, len(st.ByModule))
	for m := range st.ByModule {
		mods = append(mods, m)
	}
	sort.Strings(mods)
	for _, m := range mods {
		fmt.Fprintf(cli.out, "  %s: %d\n", m, st.ByModule[m])
	}
	return nil
}

func (cli *commandLine) export(ctx context.Context, path string) error {
	if path == "" {
		return cli.console.Export(ctx, cli.out)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := cli.console.Export(ctx, f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// execute arms cmd and runs it only after the operator types "yes".
func (cli *commandLine) execute(ctx context.Context, cmd admin.Command) error {
	p, err := cli.console.Arm(ctx, cmd)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "About to %s. Type \"yes\" to confirm: ", describe(p.Command))
	answer, err := cli.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		cli.console.Cancel(ctx, p.Token)
		return err
	}
	if strings.TrimSpace(answer) != "yes" {
		cli.console.Cancel(ctx, p.Token)
		return errAborted
	}
	out, err := cli.console.Confirm(ctx, p.Token)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "deleted %d record(s)\n", out.Deleted)
	return nil
}

func describe(cmd admin.Command) string {
	switch cmd.Kind {
	case admin.DeleteIndex:
		return fmt.Sprintf("delete record %d", cmd.Index)
	case admin.DeleteGroup:
		if cmd.Module != "" {
			return fmt.Sprintf("delete group %s in %s", cmd.Group, cmd.Module)
		}
		return fmt.Sprintf("delete every record of group %s", cmd.Group)
	default:
		return "clear the whole ledger"
	}
}
