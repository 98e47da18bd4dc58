package backends

import "fmt"

func errRequired(backend, field string) error {
	return fmt.Errorf("%s hook: %s is required", backend, field)
}

func errNotFound(command string) error {
	return fmt.Errorf("command not found: %s", command)
}
