// Package retry provides the bounded retry executor used for every wait in proxmate.
//
// [Do] invokes an operation until it succeeds or its attempt budget is spent.
// Only errors tagged with [Again] are retried; everything else propagates on
// the first occurrence. This is how task polling, guest agent pings, guest IPv4
// discovery and SSH readiness checks express "not yet" without aborting.
package retry
