package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/phrazzld/connkeeper/internal/dbpool"
)

// parseParams converts name=value pairs into named query parameters.
func parseParams(pairs []string) (dbpool.Params, error) {
	params := make(dbpool.Params, len(pairs))
	for _, pair := range pairs {
		name, raw, ok := strings.Cut(pair, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid parameter %q: expected name=value", pair)
		}
		if _, dup := params[name]; dup {
			return nil, fmt.Errorf("parameter %q given more than once", name)
		}
		params[name] = parseValue(raw)
	}
	return params, nil
}

// parseValue infers a value's type from its text.
func parseValue(raw string) any {
	if len(raw) >= 2 && strings.HasPrefix(raw, `"`) && strings.HasSuffix(raw, `"`) {
		return raw[1 : len(raw)-1]
	}

	switch raw {
	case "null":
		return nil
	case "true":
		return true
	case "false":
		return false
	}

	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	// ParseFloat also accepts words like "inf" and "nan"
	if strings.ContainsAny(raw, "0123456789") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
	}
	return raw
}
