// Package coordinator debounces a device's connection state and fans
// datapoint updates out to entities.
package coordinator
