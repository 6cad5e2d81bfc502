package source

// Config is the opaque per-source configuration blob from the config file.
// YAML decodes nested mappings to map[string]interface{}, so the accessors
// normalize the types sources actually care about.
type Config map[string]interface{}

// String returns a string value or the default.
func (c Config) String(key, def string) string {
	if v, ok := c[key].(string); ok {
		return v
	}
	return def
}

// Int returns an int value or the default.
func (c Config) Int(key string, def int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns a bool value or the default.
func (c Config) Bool(key string, def bool) bool {
	if v, ok := c[key].(bool); ok {
		return v
	}
	return def
}

// Strings returns a list of strings, skipping non-string elements.
func (c Config) Strings(key string) []string {
	raw, ok := c[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Maps returns a list of nested configuration blobs.
func (c Config) Maps(key string) []Config {
	raw, ok := c[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]Config, 0, len(raw))
	for _, item := range raw {
		if m, ok := item.(map[string]interface{}); ok {
			out = append(out, Config(m))
		}
	}
	return out
}
