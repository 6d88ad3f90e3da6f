package subcmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	cmd_commons "github.com/cyverse/objcache/cmd/commons"
	"github.com/cyverse/objcache/utils"
	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Remove expired objects",
	Args:  cobra.NoArgs,
	RunE:  processSweepCommand,
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all objects of the store",
	Args:  cobra.NoArgs,
	RunE:  processClearCommand,
}

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Show the store usage",
	Args:  cobra.NoArgs,
	RunE:  processStatCommand,
}

func AddSweepCommand(rootCmd *cobra.Command) {
	rootCmd.AddCommand(sweepCmd)
}

func AddClearCommand(rootCmd *cobra.Command) {
	rootCmd.AddCommand(clearCmd)
}

func AddStatCommand(rootCmd *cobra.Command) {
	statCmd.Flags().BoolP("long", "l", false, "List every entry")
	rootCmd.AddCommand(statCmd)
}

func processSweepCommand(command *cobra.Command, args []string) error {
	config, logWriter, cont, err := cmd_commons.ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	storage, err := cmd_commons.OpenStorage(config)
	if err != nil {
		return err
	}
	defer storage.Release()

	removed := storage.RemoveExpired()
	fmt.Printf("removed %d expired objects\n", removed)
	return nil
}

func processClearCommand(command *cobra.Command, args []string) error {
	config, logWriter, cont, err := cmd_commons.ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	storage, err := cmd_commons.OpenStorage(config)
	if err != nil {
		return err
	}
	defer storage.Release()

	return storage.RemoveAll()
}

func processStatCommand(command *cobra.Command, args []string) error {
	config, logWriter, cont, err := cmd_commons.ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	storage, err := cmd_commons.OpenStorage(config)
	if err != nil {
		return err
	}
	defer storage.Release()

	diskStore := storage.GetDiskStore()

	maxSize := "unbounded"
	if diskStore.GetMaxSize() > 0 {
		maxSize = humanize.Bytes(uint64(diskStore.GetMaxSize()))
	}

	fmt.Printf("store:    %s\n", diskStore.GetName())
	fmt.Printf("path:     %s\n", diskStore.GetStorePath())
	fmt.Printf("entries:  %d\n", storage.GetTotalEntries())
	fmt.Printf("size:     %s / %s\n", humanize.Bytes(uint64(storage.TotalSize())), maxSize)

	long, err := command.Flags().GetBool("long")
	if err != nil || !long {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(writer, "KEY\tSIZE\tLAST ACCESS\tEXPIRES")

	for _, key := range storage.GetEntryKeys() {
		entry, entryErr := storage.GetEntry(key)
		if entryErr != nil {
			continue
		}

		expires := "never"
		if !entry.IsNeverExpire() {
			expires = humanize.Time(entry.ExpiresAt)
		}

		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", key, humanize.Bytes(uint64(entry.SizeBytes)), utils.MakeTimeToString(entry.LastAccessedAt), expires)
	}

	return writer.Flush()
}
