package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"github.com/spf13/cobra"
	crlog "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/config"
	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns"
	_ "github.com/yuriy-kovalchuk/yk-pdns-record/internal/dns/providers"
)

var Version = "dev"

func newRootCmd() *cobra.Command {
	opts := zap.Options{
		Development: true,
	}
	goFlags := flag.NewFlagSet("zap", flag.ContinueOnError)
	opts.BindFlags(goFlags)

	cmd := &cobra.Command{
		Use:           "yk-pdns-record",
		Short:         "Reconcile a single PowerDNS recordset against a desired state",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			crlog.SetLogger(zap.New(zap.UseFlagOptions(&opts), zap.WriteTo(os.Stderr)))
		},
	}

	cmd.PersistentFlags().AddGoFlagSet(goFlags)
	cmd.PersistentFlags().String("provider-config", "",
		"Provider config file (env DNS_PROVIDER_PATH, default "+config.DefaultProviderConfigPath+")")
	cmd.PersistentFlags().String("provider", "", "Override the provider named in the config file (e.g. memory)")

	cmd.AddCommand(newCmdEnsure(), newCmdServe(), newCmdVersion())
	return cmd
}

// buildProvider loads the provider config and creates the configured provider.
func buildProvider(cmd *cobra.Command, log logr.Logger) (dns.Provider, error) {
	name, _ := cmd.Flags().GetString("provider")
	path, _ := cmd.Flags().GetString("provider-config")

	cfg := &config.ProviderConfig{Provider: name, Settings: map[string]string{}}
	if name != "memory" {
		var (
			loaded *config.ProviderConfig
			err    error
		)
		if path == "" {
			loaded, err = config.LoadProviderConfig()
		} else {
			loaded, err = config.LoadProviderConfigFromPath(path)
		}
		if err != nil {
			return nil, fmt.Errorf("unable to load provider config: %w", err)
		}
		cfg = loaded
		if name != "" {
			cfg.Provider = name
		}
	}
	log.Info("loaded provider config", "provider", cfg.Provider)

	p, err := dns.NewProvider(cfg.Provider, crlog.Log.WithName("dns-"+cfg.Provider), cfg.Settings)
	if err != nil {
		return nil, fmt.Errorf("unable to create DNS provider: %w", err)
	}
	return p, nil
}

// failure is printed to stdout when a command fails.
type failure struct {
	Failed     bool   `json:"failed"`
	Message    string `json:"msg"`
	StatusCode int    `json:"status_code,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		f := failure{Failed: true, Message: err.Error()}
		var upstream *dns.UpstreamError
		if errors.As(err, &upstream) {
			f.StatusCode = upstream.StatusCode
		}
		_ = writeJSON(os.Stdout, f)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
