// Package loader materializes engine inputs from external representations.
//
// It converts FHIR R4 ValueSet resources into registry value sets, builds
// patient snapshots from FHIR bundles (parsed as generic JSON maps, the
// shape clinical-data collaborators hand over), and parses JSON measure
// definitions. Where the engine comes by its inputs is a collaborator's
// concern; this package only translates shapes, it performs no retrieval.
package loader
