package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/1broseidon/awm/internal/ipc"
	"github.com/1broseidon/awm/internal/runtimepath"
)

var (
	statusSocket string
	statusJSON   bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the running window manager",
	Long: `Queries the status socket of the awm instance managing $DISPLAY and
prints its managed clients and monitors.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := statusSocket
		if path == "" {
			var err error
			if path, err = runtimepath.SocketPath(""); err != nil {
				return err
			}
		}

		c := ipc.NewClient(path)
		status, err := c.GetStatus()
		if err != nil {
			return err
		}
		clients, err := c.GetClients()
		if err != nil {
			return err
		}
		monitors, err := c.GetMonitors()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if statusJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(ipc.Snapshot{Status: *status, Clients: clients.Clients, Monitors: monitors.Monitors})
		}
		return printStatus(out, status, clients.Clients, monitors.Monitors)
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusSocket, "socket", "", "Status socket path (default: derived from $DISPLAY)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
}

func printStatus(w io.Writer, st *ipc.StatusData, clients []ipc.ClientInfo, monitors []ipc.MonitorInfo) error {
	if f, ok := w.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		keyColor.DisableColor()
		okColor.DisableColor()
	}

	field := func(k, v string) {
		keyColor.Fprintf(w, "%-10s", k+":")
		fmt.Fprintln(w, v)
	}
	okColor.Fprintf(w, "awm %s is running\n", st.Version)
	field("Display", st.Display)
	field("Discovery", st.Strategy)
	config := st.ConfigPath
	if config == "" {
		config = "(defaults)"
	}
	field("Config", config)
	field("Uptime", (time.Duration(st.UptimeSeconds) * time.Second).String())

	fmt.Fprintln(w)
	keyColor.Fprintf(w, "Monitors (%d)\n", len(monitors))
	mt := tablewriter.NewWriter(w)
	mt.Header("Output", "Name", "Geometry", "Primary")
	for _, m := range monitors {
		primary := ""
		if m.Primary {
			primary = "yes"
		}
		if err := mt.Append(
			fmt.Sprintf("0x%08x", m.Output),
			m.Name,
			fmt.Sprintf("%dx%d+%d+%d", m.Width, m.Height, m.X, m.Y),
			primary,
		); err != nil {
			return err
		}
	}
	if err := mt.Render(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	keyColor.Fprintf(w, "Clients (%d)\n", len(clients))
	ct := tablewriter.NewWriter(w)
	ct.Header("Window", "Frame", "Name", "Geometry", "Fullscreen")
	for _, c := range clients {
		fs := ""
		if c.Fullscreen {
			fs = "yes"
		}
		if err := ct.Append(
			fmt.Sprintf("0x%08x", c.Inner),
			fmt.Sprintf("0x%08x", c.Frame),
			truncate(c.Name, 40),
			fmt.Sprintf("%dx%d+%d+%d", c.Width, c.Height, c.X, c.Y),
			fs,
		); err != nil {
			return err
		}
	}
	return ct.Render()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
