// Package events provides an in-process broker for checkpoint lifecycle
// events: encode, rebuild, remove, and flush completions and failures.
// Pipelines publish from world rank 0; monitoring code subscribes.
package events
