package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/studyctl/internal/server"
)

// version is set via -ldflags at build time.
var version = "(devel)"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current version",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println("studyctl", version)
		fmt.Println("api", server.APIVersion)

		remote, _ := cmd.Flags().GetBool("server")
		if !remote {
			return nil
		}
		v, err := newClient("").CheckVersion(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("server api %s at %s\n", v, cfg.Client.ServerURL)
		return nil
	},
}

func init() {
	versionCmd.Flags().Bool("server", false, "Also query the server's API version")
}
