package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rtdacademy/assessments/internal/assessment"
	"github.com/rtdacademy/assessments/internal/gradebook"
	"github.com/rtdacademy/assessments/internal/gradebook/sqlstore"
)

var ltiCmd = &cobra.Command{
	Use:   "lti",
	Short: "Manage gradebook passback links",
}

var ltiLinkCmd = &cobra.Command{
	Use:   "link <courseId>",
	Short: "Link a course to an LTI platform context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f := cmd.Flags()
		link := gradebook.LTILink{CourseID: args[0]}
		link.PlatformIssuer, _ = f.GetString("issuer")
		link.DeploymentID, _ = f.GetString("deployment")
		link.ContextID, _ = f.GetString("context")
		link.ResourceLinkID, _ = f.GetString("resource-link")
		link.LineItemsURL, _ = f.GetString("lineitems-url")
		if link.PlatformIssuer == "" || link.LineItemsURL == "" {
			return fmt.Errorf("--issuer and --lineitems-url are required")
		}
		return withLedger(cmd, func(ctx context.Context, st *sqlstore.Store) error {
			return st.LinkCourse(ctx, link)
		})
	},
}

var ltiMapUserCmd = &cobra.Command{
	Use:   "map-user <studentIdentity> <platformSub>",
	Short: "Map a student to their platform user id",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer, _ := cmd.Flags().GetString("issuer")
		if issuer == "" {
			return fmt.Errorf("--issuer is required")
		}
		studentKey := assessment.NormalizeStudentKey(args[0])
		return withLedger(cmd, func(ctx context.Context, st *sqlstore.Store) error {
			return st.MapUser(ctx, issuer, studentKey, args[1])
		})
	},
}

func withLedger(cmd *cobra.Command, fn func(context.Context, *sqlstore.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()
	dbh, err := openSQL(ctx, cfg)
	if err != nil {
		return err
	}
	defer dbh.Close()
	return fn(ctx, &sqlstore.Store{DB: dbh})
}

func init() {
	ltiLinkCmd.Flags().String("issuer", "", "Platform issuer")
	ltiLinkCmd.Flags().String("deployment", "", "Deployment id")
	ltiLinkCmd.Flags().String("context", "", "Platform context id")
	ltiLinkCmd.Flags().String("resource-link", "", "Resource link id")
	ltiLinkCmd.Flags().String("lineitems-url", "", "AGS line items endpoint")
	ltiMapUserCmd.Flags().String("issuer", "", "Platform issuer")

	ltiCmd.AddCommand(ltiLinkCmd)
	ltiCmd.AddCommand(ltiMapUserCmd)
}
