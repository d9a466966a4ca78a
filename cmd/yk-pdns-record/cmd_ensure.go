package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	crlog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/config"
	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/reconciler"
)

// ensureOutput is the structured result printed by ensure.
type ensureOutput struct {
	Changed bool           `json:"changed"`
	Action  string         `json:"action"`
	Record  *dns.Recordset `json:"record"`
}

func newCmdEnsure() *cobra.Command {
	var (
		file  string
		check bool
		spec  = config.DefaultRecordSpec()
	)

	cmd := &cobra.Command{
		Use:   "ensure",
		Short: "Converge one recordset (zone, name, type) to the desired state",
		Example: `  yk-pdns-record ensure --zone example.com --name www --type A --content 192.0.2.1 --ttl 300
  yk-pdns-record ensure --file record.yaml --check`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := crlog.Log.WithName("ensure")

			desired, err := resolveRecordSpec(cmd.Flags(), file, spec)
			if err != nil {
				return err
			}

			provider, err := buildProvider(cmd, log)
			if err != nil {
				return err
			}

			rec := reconciler.New(crlog.Log.WithName("reconciler"), provider, reconciler.WithCheckMode(check))
			res, err := rec.Reconcile(cmd.Context(), desired)
			if err != nil {
				return err
			}

			return writeJSON(cmd.OutOrStdout(), ensureOutput{
				Changed: res.Changed,
				Action:  string(res.Action),
				Record:  res.Record,
			})
		},
	}

	f := cmd.Flags()
	f.StringVarP(&file, "file", "f", "", "YAML file describing the desired recordset; flags override its values")
	f.BoolVar(&check, "check", false, "Report what would change without calling the mutating API")
	f.StringVar(&spec.Zone, "zone", "", "Zone holding the recordset")
	f.StringVar(&spec.Name, "name", "", "Record name; qualified with the zone when not already inside it")
	f.StringVar(&spec.Type, "type", "", "Record type (A, AAAA, CNAME, MX, PTR, SOA, SRV, TXT, LUA, NS, SSHFP, CAA)")
	f.StringSliceVar((*[]string)(&spec.Content), "content", nil, "Record content; repeat or comma-separate for several entries")
	f.IntVar(&spec.TTL, "ttl", spec.TTL, "Recordset TTL in seconds")
	f.BoolVar(&spec.Disabled, "disabled", false, "Store the records as disabled")
	f.BoolVar(&spec.Exclusive, "exclusive", spec.Exclusive, "Make the recordset contain exactly the given content")
	f.BoolVar(&spec.SetPTR, "set-ptr", false, "Ask the server to maintain reverse PTR records (A/AAAA only)")
	f.StringVar(&spec.State, "state", spec.State, "Desired state: present or absent")

	return cmd
}

// resolveRecordSpec layers explicitly set flags over the optional record
// file and converts the result into a desired state.
func resolveRecordSpec(flags *pflag.FlagSet, file string, fromFlags config.RecordSpec) (dns.DesiredState, error) {
	spec := fromFlags
	if file != "" {
		loaded, err := config.LoadRecordSpec(file)
		if err != nil {
			return dns.DesiredState{}, fmt.Errorf("unable to load record file: %w", err)
		}
		spec = loaded
		flags.Visit(func(fl *pflag.Flag) {
			switch fl.Name {
			case "zone":
				spec.Zone = fromFlags.Zone
			case "name":
				spec.Name = fromFlags.Name
			case "type":
				spec.Type = fromFlags.Type
			case "content":
				spec.Content = fromFlags.Content
			case "ttl":
				spec.TTL = fromFlags.TTL
			case "disabled":
				spec.Disabled = fromFlags.Disabled
			case "exclusive":
				spec.Exclusive = fromFlags.Exclusive
			case "set-ptr":
				spec.SetPTR = fromFlags.SetPTR
			case "state":
				spec.State = fromFlags.State
			}
		})
	}
	return spec.DesiredState()
}
