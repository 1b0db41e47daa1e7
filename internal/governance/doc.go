// Package governance holds the retry and backoff controls used by nodes that
// call external services. A node owns its policy; the runner never retries.
package governance
