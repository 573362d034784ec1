// Package exitcodes defines the process exit codes of op-harness.
package exitcodes

// Exit code constants
//
// * Success (0): every admitted test passed, or no test was admitted
// * TestFailure (1): at least one test failed, errored or timed out
// * RuntimeErr (2): the run could not be performed (bad arguments, unloadable test module, panics)
const (
	Success     = 0 // All tests pass
	TestFailure = 1 // Test failures
	RuntimeErr  = 2 // Runtime errors
)
