// Package async provides utilities for parallel task execution with
// error collection.
//
// [RunParallel] executes independent operations concurrently, optionally
// bounded, and returns every failure joined together. Multi-machine commands
// use it to drive one provisioning sequence per machine.
package async
