/*
Package dsl builds macros in Go instead of YAML.

Example usage:

	m, err := dsl.New("modem-check").
		Send("AT").
		Expect("OK").FullLine().OnFail(domain.ExitMacro()).
		Send("ATI").
		Expect("OK").Within(2 * time.Second).OnFail(domain.DialogAndWait()).
		Build()

The result can be passed to Engine.StartMacro or added to a loader.Library.
*/
package dsl
