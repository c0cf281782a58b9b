// Package tool turns plain Go functions into tools a model can call. A
// [Tool] carries the name, description, and reflection-derived JSON schema
// advertised to the provider, and [Tool.Call] handles the JSON round trip
// including lenient parsing of the model-supplied arguments.
package tool
