package main

import (
	"os"

	"github.com/spf13/cobra"

	cmd_commons "github.com/cyverse/objcache/cmd/commons"
	"github.com/cyverse/objcache/cmd/subcmd"
	log "github.com/sirupsen/logrus"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:           "objcache [command]",
	Short:         "Manage a persistent object cache",
	Long:          "Manage a two-tier object cache: put, get and remove objects, sweep expired entries or run the cache service.",
	RunE:          processCommand,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func processCommand(command *cobra.Command, args []string) error {
	_, logWriter, cont, err := cmd_commons.ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil {
		return err
	}

	if !cont {
		return nil
	}

	return cmd_commons.PrintHelp(command)
}

func main() {
	log.SetFormatter(&log.TextFormatter{
		TimestampFormat: "2006-01-02 15:04:05.000000",
		FullTimestamp:   true,
	})

	log.SetLevel(log.InfoLevel)

	logger := log.WithFields(log.Fields{
		"package":  "main",
		"function": "main",
	})

	// attach common flags
	cmd_commons.SetCommonFlags(rootCmd)

	subcmd.AddPutCommand(rootCmd)
	subcmd.AddGetCommand(rootCmd)
	subcmd.AddRmCommand(rootCmd)
	subcmd.AddSweepCommand(rootCmd)
	subcmd.AddClearCommand(rootCmd)
	subcmd.AddStatCommand(rootCmd)
	subcmd.AddServeCommand(rootCmd)

	err := Execute()
	if err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}
