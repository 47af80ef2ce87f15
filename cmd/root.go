package cmd

import (
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var (
	// Version of this software - filled in by ldflags in Makefile.
	Version string
	// BuildTime of this software - filled in by ldflags in Makefile.
	BuildTime string
)

func setupVersionBuild() {
	if Version == "" {
		Version = "v0.0.0"
	}
	if BuildTime == "" {
		BuildTime = "not recorded"
	}
}

var subcommandFns = map[string]func(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command{}

// NewRootCommand reads the map of subcommandFns and creates a top level cobra
// command with each of them as subcommands.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	setupVersionBuild()
	rc := &cobra.Command{
		Use:   "tripdk",
		Short: "tripdk - trip record ingestion toolkit",
		Long: `Tools for streaming taxi trip CSVs through validation
and batching into local storage.

Version: ` + Version + `
Build Time: ` + BuildTime + "\n",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			v := viper.New()
			return setAllConfig(v, cmd.Flags(), "TRIPDK")
		},
	}
	for _, subcomFn := range subcommandFns {
		rc.AddCommand(subcomFn(stdin, stdout, stderr))
	}
	rc.SetOutput(stderr)
	return rc
}

// setAllConfig treats the FlagSet as the full definition of the config
// surface and writes the final value of each option back through its flag.
// Priority is flag, then environment, then config file. Environment
// variables are the upper-cased flag names with dashes as underscores,
// prefixed with envPrefix and an underscore.
func setAllConfig(v *viper.Viper, flags *pflag.FlagSet, envPrefix string) error {
	if err := v.BindPFlags(flags); err != nil {
		return err
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if c := v.GetString("config"); c != "" {
		v.SetConfigFile(c)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return errors.Wrapf(err, "reading config file '%s'", c)
		}
	}

	var setErr error
	flags.VisitAll(func(f *pflag.Flag) {
		// A changed flag already holds the highest-priority value. Skipping it
		// also avoids Set on a stringSlice appending to what the flag parsed.
		if setErr != nil || f.Changed {
			return
		}
		if f.Value.Type() == "stringSlice" {
			// a slice in a config file comes back empty from GetString
			setErr = f.Value.Set(strings.Join(v.GetStringSlice(f.Name), ","))
			return
		}
		setErr = f.Value.Set(v.GetString(f.Name))
	})
	return setErr
}
