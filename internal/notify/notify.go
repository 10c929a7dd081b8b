// Package notify defines the cross-machine notification contracts. Machines
// depend on these small interfaces instead of looking siblings up by name.
package notify

// Severity classifies a toast notification.
type Severity string

const (
	SeveritySuccess Severity = "success"
	SeverityError   Severity = "error"
	SeverityInfo    Severity = "info"
)

// Toaster shows a transient user-visible notification.
type Toaster interface {
	Toast(severity Severity, message string)
}

// Navigator moves the user to another view.
type Navigator interface {
	NavigateTo(path string)
}
