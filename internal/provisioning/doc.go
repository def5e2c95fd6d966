// Package provisioning provides the shared types and orchestration for the
// machine lifecycle pipeline.
//
// # Subpackages
//
//   - compute/: template, id allocation, clone, start, network, state and power phases
//   - destroy/: VM deletion and local cleanup
//
// # Core Types
//
// Session holds what one invocation shares across machines: the API client,
// the state registry, configuration, the observer and the machine store.
// Context carries a Session plus one machine and its per-run State.
// Phase defines a pipeline step with Name() and Provision() methods.
// Registry caches machine state and tracks provisioner completion.
package provisioning
