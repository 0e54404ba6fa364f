package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// version is set at link time.
var version = "dev"

var (
	configRoot    string
	forceRandR14  bool
	forceXinerama bool
	showVersion   bool

	errorColor = color.New(color.FgRed, color.Bold)
	keyColor   = color.New(color.FgYellow)
	okColor    = color.New(color.FgGreen)
)

var rootCmd = &cobra.Command{
	Use:   "awm [-h] [-V] [-R | -X] [-p path]",
	Short: "A stacking window manager for X11",
	Long: `awm frames top-level windows, lets them be dragged around and made
fullscreen, and tracks the monitor layout through RandR or Xinerama.

Run without a subcommand to manage the display named by $DISPLAY.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if showVersion {
			fmt.Fprintf(cmd.ErrOrStderr(), "awm %s\n", version)
			return nil
		}
		return runManager()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configRoot, "path", "p", "", "Search the specified base config path first")
	rootCmd.PersistentFlags().BoolVarP(&forceRandR14, "randr14", "R", false, "Force older RandR <=1.4 functions if applicable")
	rootCmd.PersistentFlags().BoolVarP(&forceXinerama, "xinerama", "X", false, "Force the Xinerama API instead of RandR")
	rootCmd.MarkFlagsMutuallyExclusive("randr14", "xinerama")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "V", false, "Print the version")

	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

func printError(err error) {
	errorColor.Fprintf(os.Stderr, "awm: %v\n", err)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError(err)
		os.Exit(1)
	}
}
