package configcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/relay/pkg/config"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration values",
		Long:  "Displays every configuration key and its effective value from config.toml or the defaults.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfger, err := openConfiger(cmd)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if target := cfger.GetTarget(); target != "" {
				fmt.Fprintf(w, "Using config file: %s\n\n", target)
			} else {
				fmt.Fprint(w, "No config file found. Using default config.\n\n")
			}

			keys := config.ValidConfigKeys()
			maxLen := 0
			for _, k := range keys {
				maxLen = max(maxLen, len(k))
			}

			for _, key := range keys {
				value, err := cfger.GetConfigValue(key)
				if err != nil {
					return err
				}

				if value == "" {
					fmt.Fprintf(w, "%-*s = <not set>\n", maxLen, key)
				} else {
					fmt.Fprintf(w, "%-*s = %q\n", maxLen, key, value)
				}
			}
			return nil
		},
	}
}
