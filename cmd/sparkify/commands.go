package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"sparkify/internal/catalog"
	"sparkify/internal/config"
	"sparkify/internal/provision"
)

func newRunCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Reset the schema, load staging and populate the analytics tables",
		Args:  cobra.NoArgs,
		RunE: o.wrap(func(cmd *cobra.Command, rec config.Record) error {
			orc, err := o.orchestrator(cmd.Context(), rec)
			if err != nil {
				return err
			}
			rep, err := orc.Run(cmd.Context(), rec)
			if err != nil {
				return err
			}
			printf(cmd, "run %s: %s in %s\n", rep.RunID, rep.State, rep.Elapsed.Round(time.Millisecond))
			for _, tb := range catalog.Tables() {
				if n, ok := rep.Staged[tb.Name()]; ok {
					printf(cmd, "  %-16s staged   %d\n", tb.Name(), n)
				}
				if n, ok := rep.Inserted[tb.Name()]; ok {
					printf(cmd, "  %-16s inserted %d\n", tb.Name(), n)
				}
			}
			return nil
		}),
	}
}

func newResetCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Drop and recreate every warehouse table",
		Args:  cobra.NoArgs,
		RunE: o.wrap(func(cmd *cobra.Command, rec config.Record) error {
			orc, err := o.orchestrator(cmd.Context(), rec)
			if err != nil {
				return err
			}
			return orc.Reset(cmd.Context(), rec)
		}),
	}
}

func newLoadCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "load",
		Short: "Load the staging tables from the configured event and song data",
		Args:  cobra.NoArgs,
		RunE: o.wrap(func(cmd *cobra.Command, rec config.Record) error {
			orc, err := o.orchestrator(cmd.Context(), rec)
			if err != nil {
				return err
			}
			res, err := orc.Load(cmd.Context(), rec)
			for _, t := range res.Tables {
				printf(cmd, "%-16s %d rows\n", t.Table, t.Rows)
			}
			return err
		}),
	}
}

func newTransformCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "transform",
		Short: "Populate the analytics tables from staging",
		Args:  cobra.NoArgs,
		RunE: o.wrap(func(cmd *cobra.Command, rec config.Record) error {
			orc, err := o.orchestrator(cmd.Context(), rec)
			if err != nil {
				return err
			}
			res, err := orc.Transform(cmd.Context(), rec)
			for _, t := range res.Tables {
				printf(cmd, "%-16s %d rows\n", t.Table, t.Rows)
			}
			return err
		}),
	}
}

// errChecksFailed is returned by verify when an integrity check finds rows.
var errChecksFailed = errors.New("integrity checks failed")

func newVerifyCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Count, fingerprint and integrity-check every table",
		Args:  cobra.NoArgs,
		RunE: o.wrap(func(cmd *cobra.Command, rec config.Record) error {
			orc, err := o.orchestrator(cmd.Context(), rec)
			if err != nil {
				return err
			}
			rep, err := orc.Check(cmd.Context(), rec)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tROWS\tFINGERPRINT")
			for _, t := range rep.Tables {
				fmt.Fprintf(w, "%s\t%d\t%s\n", t.Table, t.Rows, t.Hex())
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "CHECK\tTABLE\tVIOLATIONS")
			for _, c := range rep.Checks {
				fmt.Fprintf(w, "%s\t%s\t%d\n", c.Name, c.Table, c.Violations)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if !rep.OK() {
				return errChecksFailed
			}
			return nil
		}),
	}
}

func newValidateCmd(o *options) *cobra.Command {
	var provisioning bool
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file and exit",
		Args:  cobra.NoArgs,
		RunE: o.wrap(func(cmd *cobra.Command, rec config.Record) error {
			issues := config.Validate(rec)
			if provisioning {
				issues = config.ValidateProvisioning(rec)
			}
			for _, iss := range issues {
				printf(cmd, "%s: %s: %s\n", iss.Severity, iss.Path, iss.Message)
			}
			if err := config.Check(issues); err != nil {
				return err
			}
			printf(cmd, "configuration is valid: %s\n", o.configPath)
			return nil
		}),
	}
	cmd.Flags().BoolVar(&provisioning, "provisioning", false, "check only the fields provision and teardown need")
	return cmd
}

func newProvisionCmd(o *options) *cobra.Command {
	var writeBack bool
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create the IAM role, the Redshift cluster and its ingress rule",
		Args:  cobra.NoArgs,
		RunE: o.wrap(func(cmd *cobra.Command, rec config.Record) error {
			cfg, err := provision.AWSConfig(cmd.Context(), rec)
			if err != nil {
				return err
			}
			res, err := provision.New(o.logger, cfg).Up(cmd.Context(), rec)
			if err != nil {
				return err
			}
			printf(cmd, "host              %s\nport              %s\nstorage role arn  %s\ncluster role arn  %s\n",
				res.Host, res.Port, res.StorageRoleARN, res.ClusterRoleARN)
			if writeBack {
				if err := config.SaveResolved(o.configPath, res); err != nil {
					return err
				}
				printf(cmd, "updated %s\n", o.configPath)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&writeBack, "write-back", false, "store the resolved host, port and role ARNs in the config file")
	return cmd
}

func newTeardownCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "teardown",
		Short: "Delete the Redshift cluster and the IAM role",
		Args:  cobra.NoArgs,
		RunE: o.wrap(func(cmd *cobra.Command, rec config.Record) error {
			cfg, err := provision.AWSConfig(cmd.Context(), rec)
			if err != nil {
				return err
			}
			return provision.New(o.logger, cfg).Down(cmd.Context(), rec)
		}),
	}
}
