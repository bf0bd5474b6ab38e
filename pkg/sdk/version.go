package sdk

// SupportedSchemaMajor is the major version of the swimlane://schema
// resource this client understands. Servers reporting another major version
// renamed or removed tools or fields.
const SupportedSchemaMajor = "1"
