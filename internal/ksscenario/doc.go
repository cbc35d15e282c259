// Package ksscenario runs scripted sequences of register operations
// described in YAML, and checks their observable outcomes.
//
// A scenario looks like:
//
//	name: replay
//	steps:
//	  - emit: {key: x, value: "1"}
//	  - subscribe: {name: f, key: x}
//	  - expect: {name: f, values: ["1"]}
//	  - cancel: {name: f}
//	  - stat: {key: x, present: true, has_value: true}
package ksscenario
