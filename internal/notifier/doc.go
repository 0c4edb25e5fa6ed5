// Package notifier delivers outbound reminder messages through a transport
// adapter with fixed spacing between consecutive sends and bounded retries.
package notifier
