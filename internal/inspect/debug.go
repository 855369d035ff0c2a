package inspect

// Environment variables that switch on verbose diagnostics
var debugFlagNames = []string{"DEBUG", "NODE_ENV", "VERBOSE", "LOG_LEVEL", "ENABLE_LOGGING"}

// Flag is a debug flag found in the environment
type Flag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DebugFlags returns the debug flags lookup reports as set and non-empty, in
// a fixed order. Pass os.LookupEnv for the process environment.
func DebugFlags(lookup func(string) (string, bool)) []Flag {
	var flags []Flag
	for _, name := range debugFlagNames {
		if v, ok := lookup(name); ok && v != "" {
			flags = append(flags, Flag{Name: name, Value: v})
		}
	}
	return flags
}

// DevelopmentMode reports whether NODE_ENV selects a development build
func DevelopmentMode(lookup func(string) (string, bool)) bool {
	v, _ := lookup("NODE_ENV")
	return v == "development"
}
