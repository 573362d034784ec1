// Command plugin builds the sample suite as a loadable test module:
//
//	go build -buildmode=plugin -o sample.so ./sample/plugin
//	op-harness sample.so --include-tags Fast
package main

import (
	"github.com/ethereum-optimism/infra/op-harness/registry"
	"github.com/ethereum-optimism/infra/op-harness/sample"
)

// APIVersion is checked by the loader against the registration API it supports
var APIVersion = registry.APIVersion

// Suite is the provider op-harness runs
var Suite registry.Provider = sample.Suite()

func main() {}
