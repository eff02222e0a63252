// Package versioncmder prints build information for the relay binaries.
package versioncmder

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/relay/pkg/utils"
)

type versionCommander struct {
	json bool
}

type buildInfo struct {
	Version   string `json:"version"`
	Sha       string `json:"sha"`
	Buildtime string `json:"buildtime"`
}

func NewVersionCmd() *cobra.Command {
	cmder := &versionCommander{}

	cmd := &cobra.Command{
		Use:   "version",
		Short: "displays version",
		Long:  "displays the version, commit and build time of this binary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmder.run(cmd)
		},
	}

	cmd.Flags().BoolVar(&cmder.json, "json", false, "Print build info as JSON")

	return cmd
}

func (c *versionCommander) run(cmd *cobra.Command) error {
	w := cmd.OutOrStdout()
	if c.json {
		return json.NewEncoder(w).Encode(buildInfo{
			Version:   utils.Version,
			Sha:       utils.Sha,
			Buildtime: utils.Buildtime,
		})
	}

	_, err := fmt.Fprintf(w, "Version: %s\nSha: %s\nBuilt at: %s\n", utils.Version, utils.Sha, utils.Buildtime)
	return err
}
