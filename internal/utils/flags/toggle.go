package flags

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
)

const (
	toggleTrueCanonicalValue  = "true"
	toggleFalseCanonicalValue = "false"
	toggleAnnotationKey       = "repowatch_toggle"
	toggleParseErrorTemplate  = "invalid toggle value %q"
	toggleTruePlaceholder     = "<YES|no>"
	toggleFalsePlaceholder    = "<yes|NO>"
	toggleValueType           = "bool"
	longFlagPrefix            = "--"
	shortFlagPrefix           = "-"
	flagValueSeparator        = "="
)

var (
	trueLiteralSet  = map[string]struct{}{"true": {}, "yes": {}, "on": {}, "1": {}, "t": {}, "y": {}}
	falseLiteralSet = map[string]struct{}{"false": {}, "no": {}, "off": {}, "0": {}, "f": {}, "n": {}}
)

// AddToggleFlag registers a boolean flag accepting yes/no style values. A bare flag means true.
func AddToggleFlag(flagSet *pflag.FlagSet, target *bool, name string, shorthand string, defaultValue bool, usage string) {
	if flagSet == nil || len(name) == 0 {
		return
	}

	flagSet.VarP(newToggleValue(defaultValue, target), name, shorthand, formatToggleUsage(usage, defaultValue))
	flag := flagSet.Lookup(name)
	if flag == nil {
		return
	}
	flag.NoOptDefVal = toggleTrueCanonicalValue
	_ = flagSet.SetAnnotation(name, toggleAnnotationKey, []string{toggleTrueCanonicalValue})
}

// NormalizeToggleArguments rewrites "--flag value" into "--flag=value" for toggle flags found in flagSets,
// so that a separate yes/no word is consumed as the toggle value rather than a positional argument.
func NormalizeToggleArguments(arguments []string, flagSets ...*pflag.FlagSet) []string {
	if len(arguments) == 0 {
		return nil
	}

	normalized := make([]string, 0, len(arguments))
	for index := 0; index < len(arguments); index++ {
		current := arguments[index]
		if current == longFlagPrefix {
			normalized = append(normalized, arguments[index:]...)
			break
		}
		if index+1 < len(arguments) && isBareToggle(current, flagSets) && isToggleLiteral(arguments[index+1]) {
			normalized = append(normalized, current+flagValueSeparator+arguments[index+1])
			index++
			continue
		}
		normalized = append(normalized, current)
	}
	return normalized
}

func isBareToggle(argument string, flagSets []*pflag.FlagSet) bool {
	if strings.Contains(argument, flagValueSeparator) {
		return false
	}
	var lookup func(flagSet *pflag.FlagSet) *pflag.Flag
	switch {
	case strings.HasPrefix(argument, longFlagPrefix):
		name := strings.TrimPrefix(argument, longFlagPrefix)
		lookup = func(flagSet *pflag.FlagSet) *pflag.Flag { return flagSet.Lookup(name) }
	case strings.HasPrefix(argument, shortFlagPrefix) && len(argument) == 2:
		shorthand := strings.TrimPrefix(argument, shortFlagPrefix)
		lookup = func(flagSet *pflag.FlagSet) *pflag.Flag { return flagSet.ShorthandLookup(shorthand) }
	default:
		return false
	}

	for _, flagSet := range flagSets {
		if flagSet == nil {
			continue
		}
		if flag := lookup(flagSet); flag != nil {
			_, annotated := flag.Annotations[toggleAnnotationKey]
			return annotated
		}
	}
	return false
}

func isToggleLiteral(candidate string) bool {
	normalized := strings.ToLower(strings.TrimSpace(candidate))
	if _, isTrue := trueLiteralSet[normalized]; isTrue {
		return true
	}
	_, isFalse := falseLiteralSet[normalized]
	return isFalse
}

func formatToggleUsage(description string, defaultValue bool) string {
	placeholder := toggleFalsePlaceholder
	if defaultValue {
		placeholder = toggleTruePlaceholder
	}
	trimmed := strings.TrimSpace(description)
	if len(trimmed) == 0 {
		return fmt.Sprintf("`%s`", placeholder)
	}
	return fmt.Sprintf("`%s` %s", placeholder, trimmed)
}

type toggleValue struct {
	current bool
	target  *bool
}

func newToggleValue(defaultValue bool, target *bool) *toggleValue {
	if target != nil {
		*target = defaultValue
	}
	return &toggleValue{current: defaultValue, target: target}
}

func (value *toggleValue) Set(rawValue string) error {
	parsed, parseError := parseToggleValue(rawValue)
	if parseError != nil {
		return parseError
	}
	value.current = parsed
	if value.target != nil {
		*value.target = parsed
	}
	return nil
}

func (value *toggleValue) String() string {
	if value != nil && value.current {
		return toggleTrueCanonicalValue
	}
	return toggleFalseCanonicalValue
}

func (value *toggleValue) Type() string {
	return toggleValueType
}

func parseToggleValue(rawValue string) (bool, error) {
	normalized := strings.ToLower(strings.TrimSpace(rawValue))
	if len(normalized) == 0 {
		return true, nil
	}
	if _, isTrue := trueLiteralSet[normalized]; isTrue {
		return true, nil
	}
	if _, isFalse := falseLiteralSet[normalized]; isFalse {
		return false, nil
	}
	return false, fmt.Errorf(toggleParseErrorTemplate, rawValue)
}
