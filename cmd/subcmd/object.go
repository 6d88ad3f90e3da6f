package subcmd

import (
	"io"
	"os"

	cmd_commons "github.com/cyverse/objcache/cmd/commons"
	"github.com/cyverse/objcache/commons"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"
)

var putCmd = &cobra.Command{
	Use:   "put KEY [FILE|-]",
	Short: "Store an object",
	Long:  "Store the content of FILE, or stdin if FILE is - or missing, under KEY.",
	Args:  cobra.RangeArgs(1, 2),
	RunE:  processPutCommand,
}

var getCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print an object",
	Long:  "Write the object stored under KEY to stdout or to the file given with --output.",
	Args:  cobra.ExactArgs(1),
	RunE:  processGetCommand,
}

var rmCmd = &cobra.Command{
	Use:   "rm KEY...",
	Short: "Remove objects",
	Args:  cobra.MinimumNArgs(1),
	RunE:  processRmCommand,
}

func AddPutCommand(rootCmd *cobra.Command) {
	putCmd.Flags().StringP("ttl", "t", "", "Set expiry of this object, overriding the default")
	rootCmd.AddCommand(putCmd)
}

func AddGetCommand(rootCmd *cobra.Command) {
	getCmd.Flags().StringP("output", "o", "", "Write the object to the file")
	rootCmd.AddCommand(getCmd)
}

func AddRmCommand(rootCmd *cobra.Command) {
	rootCmd.AddCommand(rmCmd)
}

func readInput(path string) ([]byte, error) {
	if len(path) == 0 || path == "-" {
		return io.ReadAll(os.Stdin)
	}

	return os.ReadFile(path)
}

func processPutCommand(command *cobra.Command, args []string) error {
	logger := log.WithFields(log.Fields{
		"package":  "subcmd",
		"function": "processPutCommand",
	})

	config, logWriter, cont, err := cmd_commons.ProcessCommonFlags(command)
	if logWriter != nil {
		defer logWriter.Close()
	}

	if err != nil || !cont {
		return err
	}

	key := args[0]
	inputPath := ""
	if len(args) > 1 {
		inputPath = args[1]
	}

	data, err := readInput(inputPath)
	if err != nil {
		return xerrors.Errorf("failed to read input: %w", err)
	}

	storage, err := cmd_commons.OpenStorage(config)
	if err != nil {
		return err
	}
	defer storage.Release()

	expiry, err := config.GetExpiry()
	if err != nil {
		return err
	}

	ttl, err := command.Flags().GetString("ttl")
	if err != nil {
		return err
	}

	if len(ttl) > 0 {
		expiry, err = commons.ParseExpiry(ttl)
		if err != nil {
			return err
		}
	}

	entry, err := storage.PutWithExpiry(key, data, expiry)
	if err != nil {
		return xerrors.Errorf("failed to put %q: %w", key, err)
	}

	logger.Infof("stored %s, %d bytes on disk, expires %s", key, entry.SizeBytes, expiry.String())
	return nil
}

func processGetCommand(command *cobra.Command, args []string) error {
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

	key := args[0]
	data, err := storage.Get(key)
	if err != nil {
		if commons.IsNotFoundError(err) {
			return xerrors.Errorf("object %q is not in the cache", key)
		}
		return xerrors.Errorf("failed to get %q: %w", key, err)
	}

	outputPath, err := command.Flags().GetString("output")
	if err != nil {
		return err
	}

	if len(outputPath) > 0 && outputPath != "-" {
		return os.WriteFile(outputPath, data, 0o644)
	}

	_, err = os.Stdout.Write(data)
	return err
}

func processRmCommand(command *cobra.Command, args []string) error {
	logger := log.WithFields(log.Fields{
		"package":  "subcmd",
		"function": "processRmCommand",
	})

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

	for _, key := range args {
		err = storage.Remove(key)
		if err != nil {
			return xerrors.Errorf("failed to remove %q: %w", key, err)
		}

		logger.Debugf("removed %s", key)
	}

	return nil
}
