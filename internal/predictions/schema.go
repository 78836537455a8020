// internal/predictions/schema.go
package predictions

// artifactSchema validates one latest_{PAIR}_h7.json artifact before its
// numbers are trusted. A failing artifact is published as ABSTAIN rather
// than breaking the whole response.
const artifactSchema = `{
	"type": "object",
	"required": ["pair", "p_up"],
	"properties": {
		"pair":         {"type": "string", "pattern": "^[A-Z]{3}_[A-Z]{3}$"},
		"p_up":         {"type": "number", "minimum": 0, "maximum": 1},
		"generated_at": {"type": "string"},
		"obs_date":     {"type": "string"},
		"model":        {"type": "string"}
	}
}`

// manifestSchema validates manifest.json, the run-level metadata document.
const manifestSchema = `{
	"type": "object",
	"required": ["horizon", "as_of_utc", "run_date"],
	"properties": {
		"horizon":  {"type": "string"},
		"as_of_utc": {"type": "string"},
		"run_date": {"type": "string"},
		"pairs":    {"type": "array", "items": {"type": "string"}},
		"timezone": {"type": "string"},
		"git_sha":  {"type": "string"}
	}
}`
