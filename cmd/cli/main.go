// Command khoshgolpo is a terminal client for the KhoshGolpo forum API.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Avishekdevnath/KhoshGolpo-sub001/pkg/client"
)

// cli carries what every command needs. setup fills in the client after
// flags are parsed.
type cli struct {
	configPath string
	apiURL     string
	outputFmt  string
	verbose    bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer

	settings *settings
	log      *log.Logger
	client   *client.Client
}

func newCLI() *cli {
	return &cli{in: os.Stdin, out: os.Stdout, errOut: os.Stderr}
}

func newRootCmd(c *cli) *cobra.Command {
	root := &cobra.Command{
		Use:   "khoshgolpo",
		Short: "KhoshGolpo CLI - forum threads, posts and notifications from the terminal",
		Long: `khoshgolpo talks to a KhoshGolpo API server. Sign in with
"khoshgolpo auth login", then browse threads, reply, follow your
notifications live or, as a moderator, manage the community.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "Path to config file (default: <user config dir>/khoshgolpo/config.toml)")
	root.PersistentFlags().StringVar(&c.apiURL, "api", "", "API base URL (overrides config and "+client.BaseURLEnv+")")
	root.PersistentFlags().StringVarP(&c.outputFmt, "output", "o", "", "Output format: text or json")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		newAuthCmd(c),
		newThreadsCmd(c),
		newUsersCmd(c),
		newNotificationsCmd(c),
		newAdminCmd(c),
		newHealthCmd(c),
		newWatchCmd(c),
	)
	return root
}

func (c *cli) setup() error {
	s, err := loadSettings(c.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if c.apiURL != "" {
		s.BaseURL = c.apiURL
	}
	if c.outputFmt != "" {
		s.Output = c.outputFmt
	}
	if s.Output != formatText && s.Output != formatJSON {
		return fmt.Errorf("unknown output format %q (want text or json)", s.Output)
	}
	c.settings = s

	c.log = newLogger(s, c.verbose, c.errOut)

	if f, ok := c.out.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		color.NoColor = true
	}

	c.client = client.New(client.Config{
		BaseURL: s.BaseURL,
		Timeout: s.Timeout,
		Tokens:  newFileStore(s.CredentialsPath),
		Cache:   client.NewCache(0, s.CacheTTL),
		Logger:  c.log,
		OnSessionExpired: func() {
			c.warn("Your session has expired. Run \"khoshgolpo auth login\" to sign in again.")
		},
	})
	c.log.Debug("Configured", "api", s.BaseURL, "config", s.ConfigFile)
	return nil
}

// newLogger writes to the configured log file, or errOut when it cannot be
// opened. --verbose forces debug level and also mirrors to errOut.
func newLogger(s *settings, verbose bool, errOut io.Writer) *log.Logger {
	var w io.Writer = errOut
	if s.LogFile != "" {
		if f, err := os.OpenFile(s.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600); err == nil {
			w = f
			if verbose {
				w = io.MultiWriter(f, errOut)
			}
		}
	}

	logger := log.NewWithOptions(w, log.Options{Prefix: "khoshgolpo", ReportTimestamp: true})
	level, err := log.ParseLevel(s.LogLevel)
	if err != nil {
		level = log.WarnLevel
	}
	if verbose {
		level = log.DebugLevel
	}
	logger.SetLevel(level)
	return logger
}

func main() {
	c := newCLI()
	root := newRootCmd(c)
	if err := root.ExecuteContext(context.Background()); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %s\n", client.DisplayMessage(err))
		os.Exit(1)
	}
}
