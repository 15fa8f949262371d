// Package chartgen defines the domain model for AI-assisted chart
// generation: the request submitted by a caller, the lifecycle of a
// generation record on the server, and the saved chart entity.
//
// A generation request moves through a fixed lifecycle:
//
//	pending -> processing -> completed | failed
//
// Records are created pending by the API layer, claimed by a background
// worker (pending -> processing is an atomic compare-and-swap, so a
// record is processed exactly once), and finished with either a result
// or an error message. Clients observe the lifecycle exclusively by
// polling; they never mutate it.
//
// Saved charts are durable entities independent of the request that
// produced them. A chart's ArtifactURI locates its rendered artifact in
// the mlflow-artifacts scheme.
//
// Validation lives here so the client's pre-flight checks and the
// server's handlers reject the same inputs with the same messages.
package chartgen
