//go:build !portaudio

package control

import "github.com/spf13/cobra"

func NewRecordCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "record",
		Short: "Record from the microphone (build with -tags portaudio)",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.Println("build with '-tags portaudio' to record from the microphone; use import for existing files")
			return nil
		},
	}
}
