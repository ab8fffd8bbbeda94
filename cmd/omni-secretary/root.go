package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version = "dev"

	cfgPath string

	red  = color.New(color.FgRed).SprintFunc()
	cyan = color.New(color.FgCyan).SprintFunc()
	gray = color.New(color.FgHiBlack).SprintFunc()
)

var rootCmd = &cobra.Command{
	Use:           "omni-secretary",
	Short:         "Personal assistant backend with pluggable tool servers",
	Long:          "omni-secretary runs an LLM agent loop over a fleet of tool servers, exposed through an HTTP and SSE API.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "path to config file")
	rootCmd.AddCommand(serveCmd)
}

// Execute runs the CLI. Errors are printed once, here.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, red("error: ")+err.Error())
		return err
	}
	return nil
}
