package model

import "github.com/hupe1980/modelgate/internal/util"

// NewToolDefinition constructs a function tool definition from an explicit
// JSON-Schema-like parameters map.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// ToolFromStruct derives the parameter schema from a struct using reflection.
// It is a convenience for simple argument containers; field names follow json
// tags and descriptions come from `description` tags.
//
// Example:
//
//	type WeatherArgs struct {
//	  City string `json:"city" description:"City name"`
//	}
//	tool := model.ToolFromStruct("get_weather", "Get current weather", WeatherArgs{})
func ToolFromStruct(name, description string, structType any) ToolDefinition {
	return NewToolDefinition(name, description, util.CreateSchema(structType))
}
