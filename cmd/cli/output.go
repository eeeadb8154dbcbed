package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var (
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)
	green  = color.New(color.FgGreen)
	cyan   = color.New(color.FgCyan)
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed)
)

func (c *cli) jsonOutput() bool {
	return c.settings != nil && c.settings.Output == formatJSON
}

// emit writes v as indented JSON in json mode, otherwise calls text
func (c *cli) emit(v interface{}, text func(w io.Writer)) error {
	if c.jsonOutput() {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(c.out, string(data))
		return err
	}
	text(c.out)
	return nil
}

func (c *cli) success(format string, args ...interface{}) {
	if c.jsonOutput() {
		return
	}
	green.Fprintf(c.out, format+"\n", args...)
}

func (c *cli) warn(format string, args ...interface{}) {
	yellow.Fprintf(c.errOut, format+"\n", args...)
}

func table(w io.Writer, headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, bold.Sprint(strings.Join(headers, "\t")))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

func pageFooter(w io.Writer, shown int, total int64, offset int) {
	if total > int64(offset+shown) {
		dim.Fprintf(w, "Showing %d-%d of %d. Use --offset %d for more.\n", offset+1, offset+shown, total, offset+shown)
	}
}

func ago(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("2006-01-02")
}

func truncate(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (c *cli) prompt(label string) (string, error) {
	fmt.Fprint(c.errOut, label)
	line, err := bufio.NewReader(c.in).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword hides input on a terminal and falls back to a plain line
// read when stdin is piped
func (c *cli) promptPassword(label string) (string, error) {
	if f, ok := c.in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(c.errOut, label)
		pw, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(c.errOut)
		if err != nil {
			return "", err
		}
		return string(pw), nil
	}
	return c.prompt(label)
}
