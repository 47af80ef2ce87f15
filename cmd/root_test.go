package cmd

import (
	"io/ioutil"
	"os"
	"reflect"
	"testing"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func newTestFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("strategy", "inclusive", "")
	flags.StringSlice("files", nil, "")
	return flags
}

func TestSetAllConfigPrecedence(t *testing.T) {
	flags := newTestFlags()
	if err := os.Setenv("TRIPDK_STRATEGY", "strict"); err != nil {
		t.Fatalf("setting env: %v", err)
	}
	defer os.Unsetenv("TRIPDK_STRATEGY")

	if err := setAllConfig(viper.New(), flags, "TRIPDK"); err != nil {
		t.Fatalf("setting config: %v", err)
	}
	if got, _ := flags.GetString("strategy"); got != "strict" {
		t.Fatalf("env should override default, got %q", got)
	}

	// a flag set on the command line beats the environment
	flags = newTestFlags()
	if err := flags.Set("strategy", "inclusive"); err != nil {
		t.Fatalf("setting flag: %v", err)
	}
	if err := setAllConfig(viper.New(), flags, "TRIPDK"); err != nil {
		t.Fatalf("setting config: %v", err)
	}
	if got, _ := flags.GetString("strategy"); got != "inclusive" {
		t.Fatalf("flag should override env, got %q", got)
	}
}

func TestSetAllConfigFileSlice(t *testing.T) {
	tf, err := ioutil.TempFile("", "tripdk-config")
	if err != nil {
		t.Fatalf("creating temp config: %v", err)
	}
	defer os.Remove(tf.Name())
	if _, err := tf.WriteString("files = [\"a.csv\", \"b.csv\"]\n"); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	tf.Close()

	flags := newTestFlags()
	if err := flags.Set("config", tf.Name()); err != nil {
		t.Fatalf("setting config flag: %v", err)
	}
	if err := setAllConfig(viper.New(), flags, "TRIPDK"); err != nil {
		t.Fatalf("setting config: %v", err)
	}
	got, _ := flags.GetStringSlice("files")
	if !reflect.DeepEqual(got, []string{"a.csv", "b.csv"}) {
		t.Fatalf("files from config file: %v", got)
	}
}

func TestSetAllConfigBadFile(t *testing.T) {
	flags := newTestFlags()
	if err := flags.Set("config", "/nonexistent/tripdk.toml"); err != nil {
		t.Fatalf("setting config flag: %v", err)
	}
	if err := setAllConfig(viper.New(), flags, "TRIPDK"); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
