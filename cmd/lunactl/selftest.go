package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var selfTestCmd = &cobra.Command{
	Use:   "test",
	Short: "Send a test message through the provider chain",
	Long:  `Sends a fixed greeting through every configured provider in order and reports which one answered.`,
	Args:  cobra.NoArgs,
	RunE:  runSelfTest,
}

func runSelfTest(cmd *cobra.Command, _ []string) error {
	eng, err := newEngine(cmd.Context())
	if err != nil {
		return err
	}
	defer eng.Close()

	out := cmd.OutOrStdout()
	for _, b := range eng.chain.Backends() {
		line := fmt.Sprintf("%-16s priority=%d %s", b.Name, b.Priority, b.Readiness)
		if b.InitError != "" {
			line += " (" + b.InitError + ")"
		}
		fmt.Fprintln(out, line)
	}

	resp := eng.chain.SelfTest(cmd.Context())
	fmt.Fprintln(out, resp.Text)
	printReplyFooter(out, &resp)
	return nil
}
