package setup

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
)

// CLI implements the "setup" subcommand of the MCP server.
type CLI struct {
	out            io.Writer
	executable     string
	defaultDataDir string
}

// NewCLI creates a setup CLI. executable is the default binary to register.
func NewCLI(out io.Writer, executable, defaultDataDir string) *CLI {
	return &CLI{out: out, executable: executable, defaultDataDir: defaultDataDir}
}

const usage = `Skin lesion advisor MCP setup

Usage:
  mcp-server setup <command> --config <client config file> [options]

Commands:
  register    Add or update the advisor in an MCP client configuration
  unregister  Remove the advisor from an MCP client configuration
  status      Show how the advisor is registered

Options for register:
  --binary      Server binary (default: this executable)
  --data-dir    Results database directory
  --catalog     Catalog extension file
  --log-level   Server log level

The client config may also be given with ADVISOR_CLIENT_CONFIG.
`

// Run executes the subcommand named by args[0].
func (c *CLI) Run(args []string) error {
	if len(args) == 0 {
		fmt.Fprint(c.out, usage)
		return nil
	}

	fs := flag.NewFlagSet("setup "+args[0], flag.ContinueOnError)
	fs.SetOutput(c.out)
	configPath := fs.String("config", os.Getenv("ADVISOR_CLIENT_CONFIG"), "MCP client configuration file")
	binary := fs.String("binary", c.executable, "server binary")
	dataDir := fs.String("data-dir", "", "results database directory")
	catalog := fs.String("catalog", "", "catalog extension file")
	logLevel := fs.String("log-level", "", "server log level")

	switch args[0] {
	case "register", "unregister", "status":
	case "help", "--help", "-h":
		fmt.Fprint(c.out, usage)
		return nil
	default:
		fmt.Fprint(c.out, usage)
		return fmt.Errorf("unknown setup command: %s", args[0])
	}

	if err := fs.Parse(args[1:]); err != nil {
		return err
	}
	if *configPath == "" {
		return errors.New("--config is required")
	}

	switch args[0] {
	case "register":
		entry, err := Register(*configPath, Options{
			BinaryPath:  *binary,
			DataDir:     *dataDir,
			CatalogPath: *catalog,
			LogLevel:    *logLevel,
		})
		if err != nil {
			return fmt.Errorf("failed to register server: %w", err)
		}
		fmt.Fprintf(c.out, "Registered %s in %s\n  command: %s\n", ServerName, *configPath, entry.Command)
		fmt.Fprintln(c.out, "Restart the MCP client to load the new configuration.")
	case "unregister":
		removed, err := Unregister(*configPath)
		if err != nil {
			return fmt.Errorf("failed to unregister server: %w", err)
		}
		if removed {
			fmt.Fprintf(c.out, "Removed %s from %s\n", ServerName, *configPath)
		} else {
			fmt.Fprintf(c.out, "%s was not registered in %s\n", ServerName, *configPath)
		}
	case "status":
		status, err := GetStatus(*configPath, c.defaultDataDir)
		if err != nil {
			return err
		}
		c.printStatus(status)
	}
	return nil
}

func (c *CLI) printStatus(status *Status) {
	fmt.Fprintf(c.out, "Config file: %s\n", status.ConfigPath)
	if status.Registered {
		fmt.Fprintln(c.out, "Registered:  yes")
		fmt.Fprintf(c.out, "Binary:      %s\n", status.BinaryPath)
	} else {
		fmt.Fprintln(c.out, "Registered:  no")
	}
	fmt.Fprintf(c.out, "Data dir:    %s\n", status.DataDir)
	for _, issue := range status.Issues {
		fmt.Fprintf(c.out, "  ! %s\n", issue)
	}
}
