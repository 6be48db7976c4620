package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rtdacademy/assessments/internal/course"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect course catalogs",
}

var catalogCheckCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Validate the embedded catalogs plus an optional directory",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) == 1 {
			dir = args[0]
		} else {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			dir = cfg.CatalogDir
		}
		reg, err := course.Load(dir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range reg.Courses() {
			items := reg.Assessments(c)
			fmt.Fprintf(out, "course %s: %d assessments\n", c, len(items))
			for _, a := range items {
				fmt.Fprintf(out, "  %-28s %-16s %s\n", a.ID, a.Type, a.Title)
			}
		}
		for _, w := range reg.Warnings() {
			fmt.Fprintf(out, "warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	catalogCmd.AddCommand(catalogCheckCmd)
}
