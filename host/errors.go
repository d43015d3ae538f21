package host

import "fmt"

func errScriptNotFound(name string) error {
	return fmt.Errorf("script '%s' not found", name)
}
