package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var clearConfirmed bool

var storageCmd = &cobra.Command{
	Use:   "storage",
	Short: "Inspect or clear the local key/value store",
}

var storageKeysCmd = &cobra.Command{
	Use:   "keys [prefix]",
	Short: "List stored keys",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStorageKeys,
}

var storageClearCmd = &cobra.Command{
	Use:   "clear [prefix]",
	Short: "Delete stored keys (all of them without a prefix)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runStorageClear,
}

func initStorageCommands() {
	storageClearCmd.Flags().BoolVarP(&clearConfirmed, "yes", "y", false, "Do not ask for confirmation")
	storageCmd.AddCommand(storageKeysCmd, storageClearCmd)
}

func prefixArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

func runStorageKeys(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	keys, err := a.KV.Keys(prefixArg(args))
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Println("No keys stored")
		return nil
	}
	for _, k := range keys {
		fmt.Println(k)
	}
	return nil
}

func runStorageClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	prefix := prefixArg(args)
	if prefix == "" && !clearConfirmed {
		return errors.New("this deletes the session, saved plans and all progress; rerun with --yes to confirm")
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.KV.Clear(prefix)
	if err != nil {
		return err
	}
	fmt.Printf("Deleted %d key(s) from %s\n", n, a.KV.Path())
	return nil
}
