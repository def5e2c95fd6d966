// Package proxmox is a client for the subset of the Proxmox VE HTTP API that
// proxmate needs to provision guests.
//
// # Architecture
//
//   - client.go: client construction, login, request issuing and decoding
//   - credentials.go: session ticket/CSRF pair and the on-disk token cache
//   - errors.go: error taxonomy and HTTP status classification
//   - task.go: task handles (UPID) and the completion poller
//   - resources.go: cluster-wide VM scans, template resolution, id allocation
//   - vm.go: VM state, clone, configure and power operations
//   - agent.go: QEMU guest agent ping and IPv4 discovery
//   - storage.go, nodes.go: storage uploads and node queries
//   - metrics.go: prometheus collectors for requests and tasks
//
// # Asynchronous tasks
//
// Every mutating call returns a UPID. [Client.AwaitCompletion] polls the
// task status and its log at a fixed interval until an exit status appears
// or the budget runs out. The budget is the task timeout, or the larger image
// copy timeout for imgcopy tasks. An exit status other than "OK" is returned
// as a [TaskFailedError].
//
// # Authentication
//
// The client logs in lazily. It reuses in-memory credentials, then the token
// cache, and only then asks its password source for a password. Credentials
// older than two hours are never used. A 401 response drops the credentials so
// the next call authenticates again. The request itself is not retried.
package proxmox
