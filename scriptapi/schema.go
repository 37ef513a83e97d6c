package scriptapi

// FunctionRow describes one host function for client-side tooling:
// its name, a human-readable description, and the display names of
// its input and output types.
type FunctionRow struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Inputs      []string `json:"inputs"`
	Output      string   `json:"output"`
}

// Schema is the full set of functions a script may call, assembled
// once at world bootstrap and served read-only over HTTP.
type Schema struct {
	Imports []FunctionRow `json:"imports"`
}

// NewSchema returns the schema document for the builtins Functions
// registers. Kept in lockstep with Functions and Signatures by hand,
// since Go generics give no way to attach display metadata to a
// HostFunction value itself.
func NewSchema() Schema {
	return Schema{
		Imports: []FunctionRow{
			{Name: "console_log", Description: "Log a string", Inputs: []string{"String"}, Output: "()"},
			{Name: "log_scalar", Description: "Log a scalar value", Inputs: []string{"Scalar"}, Output: "()"},
			{Name: "move_bot", Description: "Move the bot to the given point", Inputs: []string{"Point"}, Output: "OperationResult"},
			{Name: "make_point", Description: "Create a point from x and y coordinates", Inputs: []string{"Scalar", "Scalar"}, Output: "Point"},
			{Name: "mine_resource", Description: "Extract from the given resource into the bot's carry", Inputs: []string{"EntityId"}, Output: "OperationResult"},
			{Name: "drop_resource", Description: "Unload the bot's carry into the given structure", Inputs: []string{"EntityId"}, Output: "OperationResult"},
			{Name: "build_structure", Description: "Erect a structure at the given point in the bot's room", Inputs: []string{"Point"}, Output: "OperationResult"},
		},
	}
}
