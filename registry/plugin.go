package registry

import (
	"fmt"
	"os"
	"plugin"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/mod/semver"
)

// APIVersion is the version of the registration API test modules build against
const APIVersion = "v1.0.0"

// Symbols a compiled test module must export
const (
	SuiteSymbol      = "Suite"
	APIVersionSymbol = "APIVersion"
)

// LoadPlugin opens a compiled test module (a Go plugin built with
// -buildmode=plugin) and returns the Provider it exports as Suite.
// Suite may be a Provider variable, a *Registry variable, or a
// func() Provider. APIVersion must be a string variable.
func LoadPlugin(path string, logger log.Logger) (Provider, error) {
	if logger == nil {
		logger = log.New()
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("test module %s: %w", path, err)
	}

	logger.Debug("Opening test module", "path", path)
	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open test module %s: %w", path, err)
	}

	verSym, err := p.Lookup(APIVersionSymbol)
	if err != nil {
		return nil, fmt.Errorf("test module %s does not export %s: %w", path, APIVersionSymbol, err)
	}
	version, ok := verSym.(*string)
	if !ok {
		return nil, fmt.Errorf("test module %s: %s has type %T, want string", path, APIVersionSymbol, verSym)
	}
	if err := CheckAPIVersion(*version); err != nil {
		return nil, fmt.Errorf("test module %s: %w", path, err)
	}

	suiteSym, err := p.Lookup(SuiteSymbol)
	if err != nil {
		return nil, fmt.Errorf("test module %s does not export %s: %w", path, SuiteSymbol, err)
	}
	provider, err := providerFromSymbol(suiteSym)
	if err != nil {
		return nil, fmt.Errorf("test module %s: %w", path, err)
	}

	logger.Info("Loaded test module", "path", path, "apiVersion", *version)
	return provider, nil
}

// providerFromSymbol converts a looked-up plugin symbol into a Provider
func providerFromSymbol(sym plugin.Symbol) (Provider, error) {
	var provider Provider
	switch s := sym.(type) {
	case *Provider:
		provider = *s
	case **Registry:
		provider = *s
	case func() Provider:
		provider = s()
	case *func() Provider:
		provider = (*s)()
	default:
		return nil, fmt.Errorf("%s has unsupported type %T", SuiteSymbol, sym)
	}
	if provider == nil {
		return nil, fmt.Errorf("%s is nil", SuiteSymbol)
	}
	if r, ok := provider.(*Registry); ok && r == nil {
		return nil, fmt.Errorf("%s is nil", SuiteSymbol)
	}
	return provider, nil
}

// CheckAPIVersion verifies that a module built against version can be
// loaded by this runner: same major version, not newer than APIVersion.
func CheckAPIVersion(version string) error {
	if !semver.IsValid(version) {
		return fmt.Errorf("invalid API version %q", version)
	}
	if semver.Major(version) != semver.Major(APIVersion) {
		return fmt.Errorf("incompatible API version %s (runner supports %s)", version, semver.Major(APIVersion))
	}
	if semver.Compare(version, APIVersion) > 0 {
		return fmt.Errorf("test module built against newer API version %s (runner is %s)", version, APIVersion)
	}
	return nil
}
