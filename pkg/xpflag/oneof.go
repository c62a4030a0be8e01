package xpflag

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/exp/slices"
)

// OneOf is a pflag.Value restricted to a fixed set of strings, bad
// values fail at flag parsing time instead of deep inside a command.
type OneOf struct {
	allowed []string
	value   string
}

func New(def string, allowed ...string) *OneOf {
	return &OneOf{allowed: allowed, value: def}
}

// Set implements pflag.Value.
func (o *OneOf) Set(value string) error {
	if !slices.Contains(o.allowed, value) {
		return fmt.Errorf("unexpected value %q, expected one of [%s]", value, o.Variants())
	}
	o.value = value
	return nil
}

// String implements pflag.Value.
func (o *OneOf) String() string {
	return o.value
}

// Type implements pflag.Value.
func (o *OneOf) Type() string {
	return "string"
}

func (o *OneOf) Variants() string {
	return strings.Join(o.allowed, ", ")
}

// Complete plugs the allowed values into cobra's shell completion:
//
//	cmd.Flags().Var(level, "log-level", "one of "+level.Variants())
//	_ = cmd.RegisterFlagCompletionFunc("log-level", level.Complete)
func (o *OneOf) Complete(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return o.allowed, cobra.ShellCompDirectiveKeepOrder | cobra.ShellCompDirectiveNoFileComp
}

var _ pflag.Value = (*OneOf)(nil)
