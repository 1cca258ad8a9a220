// Package flags reads cobra flag values together with whether the user set them.
package flags

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const (
	boolFlagParseErrorTemplateConstant = "unable to parse flag %q: %w"
	flagNotDefinedMessageConstant      = "flag not defined"
	toggleYesValueConstant             = "yes"
	toggleNoValueConstant              = "no"
	toggleOnValueConstant              = "on"
	toggleOffValueConstant             = "off"
)

// ErrFlagNotDefined indicates that the requested flag is not present on the command.
var ErrFlagNotDefined = errors.New(flagNotDefinedMessageConstant)

// BoolFlag returns the flag value and whether it was set explicitly.
func BoolFlag(command *cobra.Command, name string) (bool, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return false, false, ErrFlagNotDefined
	}
	value, lookupError := flagSet.GetBool(name)
	if lookupError == nil {
		return value, flag.Changed, nil
	}

	parsedValue, parseError := parseToggleValue(flag.Value.String())
	if parseError != nil {
		return false, false, fmt.Errorf(boolFlagParseErrorTemplateConstant, name, parseError)
	}
	return parsedValue, flag.Changed, nil
}

// StringFlag returns the flag value and whether it was set explicitly.
func StringFlag(command *cobra.Command, name string) (string, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return "", false, ErrFlagNotDefined
	}
	value, lookupError := flagSet.GetString(name)
	if lookupError != nil {
		return "", false, lookupError
	}
	return value, flag.Changed, nil
}

// StringSliceFlag returns the flag values and whether they were set explicitly.
func StringSliceFlag(command *cobra.Command, name string) ([]string, bool, error) {
	flagSet, flag := locateFlag(command, name)
	if flag == nil {
		return nil, false, ErrFlagNotDefined
	}
	values, lookupError := flagSet.GetStringSlice(name)
	if lookupError != nil {
		return nil, false, lookupError
	}
	return values, flag.Changed, nil
}

func locateFlag(command *cobra.Command, name string) (*pflag.FlagSet, *pflag.Flag) {
	if command == nil {
		return nil, nil
	}

	candidateSets := []*pflag.FlagSet{
		command.Flags(),
		command.PersistentFlags(),
		command.InheritedFlags(),
	}
	if root := command.Root(); root != nil {
		candidateSets = append(candidateSets, root.PersistentFlags())
	}

	for _, set := range candidateSets {
		if set == nil {
			continue
		}
		if flag := set.Lookup(name); flag != nil {
			return set, flag
		}
	}
	return nil, nil
}

func parseToggleValue(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case toggleYesValueConstant, toggleOnValueConstant:
		return true, nil
	case toggleNoValueConstant, toggleOffValueConstant:
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(raw))
}
