// Package types defines the configuration model, the ConfigStore interface,
// the lifecycle state machine, and the standard error types for the entity
// extension compiler.
//
// Entity and field configurations are addressed by ConfigID. The compiler in
// internal/extend reads them through ConfigStore, derives a SchemaDescriptor
// per entity, and writes the result back.
package types
