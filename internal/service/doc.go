// Package service contains the application-specific use cases. It sits
// between the HTTP boundary and the persistence layer, validating
// submissions and handing accepted tasks to the background runner.
package service
