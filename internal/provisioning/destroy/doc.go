// Package destroy removes a machine from the cluster and clears its local data.
//
// A running machine is stopped before deletion. Local cleanup keeps the cwd
// marker so the project directory can still be found afterwards.
package destroy
