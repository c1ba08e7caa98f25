//go:build !portaudio

package control

import "github.com/spf13/cobra"

func newMicListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available microphones",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println("this binary has no microphone support; rebuild with -tags portaudio")
			return nil
		},
	}
}
