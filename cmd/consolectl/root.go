package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nerrad567/kapua-console/internal/client"
	"github.com/nerrad567/kapua-console/internal/infrastructure/config"
	"github.com/nerrad567/kapua-console/internal/infrastructure/logging"
)

// envPrefix scopes environment overrides, e.g. CONSOLECTL_URL.
const envPrefix = "consolectl"

// Flag defaults.
const (
	defaultURL     = "http://localhost:3000"
	defaultTimeout = 30 * time.Second
)

// app carries what every subcommand needs.
type app struct {
	v   *viper.Viper
	in  io.Reader
	out io.Writer
}

func newRootCmd(v *viper.Viper, in io.Reader, out io.Writer) *cobra.Command {
	a := &app{v: v, in: in, out: out}

	root := &cobra.Command{
		Use:           "consolectl",
		Short:         "consolectl manages devices through the Kapua console server",
		Long:          `consolectl logs in through the console server and lists or deletes devices using the same table and delete flow as the web console.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(in)
	root.SetOut(out)

	root.PersistentFlags().String("url", defaultURL, `base url of the console server`)
	root.PersistentFlags().String("token", "", `bearer token sent with device requests`)
	root.PersistentFlags().Duration("timeout", defaultTimeout, `per-request timeout`)
	root.PersistentFlags().String("log-level", "warn", `log level (debug, info, warn, error)`)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	for _, name := range []string{"url", "token", "timeout", "log-level"} {
		//nolint:errcheck // flag names are defined above
		v.BindPFlag(name, root.PersistentFlags().Lookup(name))
	}
	v.SetDefault("url", defaultURL)
	v.SetDefault("timeout", defaultTimeout)

	root.AddCommand(a.newLoginCmd(), a.newDevicesCmd())
	return root
}

// client builds a console client from the resolved flags.
func (a *app) client() (*client.Client, error) {
	opts := []client.Option{client.WithTimeout(a.v.GetDuration("timeout"))}
	if token := a.v.GetString("token"); token != "" {
		opts = append(opts, client.WithToken(token))
	}

	c, err := client.New(a.v.GetString("url"), opts...)
	if err != nil {
		return nil, fmt.Errorf("console url %q: %w", a.v.GetString("url"), err)
	}
	return c, nil
}

// logger writes to stderr-equivalent output at the configured level.
func (a *app) logger(w io.Writer) *logging.Logger {
	return logging.NewWithWriter(config.LoggingConfig{
		Level:  a.v.GetString("log-level"),
		Format: "text",
	}, version, w)
}
