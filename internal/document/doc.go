// Package document parses the declarative YAML documents that drive a run:
// the experiment (pipeline definition), the city manifest (available
// datasets), and the optional method document (declared choice vocabulary).
// Parsed entities are plain immutable structs; nothing in this package
// resolves references or touches the registry.
package document
