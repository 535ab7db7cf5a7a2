// Package notifications delivers conversion results to ntfy.
//
// The ntfy implementation posts plain-text messages to the topic URL from
// config.toml and degrades to a no-op when no topic is configured. Callers
// depend only on the Service interface.
package notifications
